package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waveSource yields a single fixed batch.KindWave Result then ends.
type waveSource struct {
	wave batch.Result
	sent bool
}

func (w *waveSource) GetBatch(maxBatchSize int) *batch.Cursor {
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		if w.sent {
			return batch.Result{}, false, nil
		}
		w.sent = true
		return w.wave, true, nil
	})
}

func identityFactory(rowsWritten *int32) WorkerFactory {
	return func(predecessor batch.Processor) batch.Processor {
		return identityProcessor{predecessor, rowsWritten}
	}
}

type identityProcessor struct {
	upstream    batch.Processor
	rowsWritten *int32
}

func (i identityProcessor) GetBatch(maxBatchSize int) *batch.Cursor {
	cursor := i.upstream.GetBatch(maxBatchSize)
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		r, ok, err := cursor.Next(ctx)
		if err != nil || !ok {
			return r, ok, err
		}
		if i.rowsWritten != nil {
			atomic.AddInt32(i.rowsWritten, int32(len(r.Chunk)))
		}
		return batch.RowResult(r.Chunk, stats.Stats{"rows_written": int64(len(r.Chunk))}), true, nil
	})
}

func makeWave(bucketSizes ...int) batch.Result {
	var buckets []batch.BucketBatch
	for i, n := range bucketSizes {
		rows := make([]rowvalue.Row, n)
		for j := range rows {
			rows[j] = rowvalue.Row{"id": rowvalue.Int64(int64(j))}
		}
		buckets = append(buckets, batch.BucketBatch{Row: i, Col: i, Rows: rows})
	}
	total := 0
	for _, n := range bucketSizes {
		total += n
	}
	return batch.WaveResult(buckets, stats.New(), total)
}

func TestProcessor_MergesBucketsWithinAWave(t *testing.T) {
	var written int32
	source := &waveSource{wave: makeWave(2, 3)}
	proc := New(source, identityFactory(&written), 4, 0)

	cursor := proc.GetBatch(10)
	results, err := batch.Drain(context.Background(), cursor)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 5, len(results[0].Chunk))
	assert.Equal(t, int64(5), results[0].Stats["rows_written"])
	assert.Equal(t, int32(5), atomic.LoadInt32(&written))
}

func TestProcessor_FailFastCancelsSiblingBuckets(t *testing.T) {
	var started int32
	failing := func(predecessor batch.Processor) batch.Processor {
		return failingProcessor{predecessor, &started}
	}

	source := &waveSource{wave: makeWave(1, 1, 1, 1)}
	proc := New(source, failing, 4, 0)

	cursor := proc.GetBatch(10)
	_, err := batch.Drain(context.Background(), cursor)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerFailure)
}

type failingProcessor struct {
	upstream batch.Processor
	started  *int32
}

var errBoom = errors.New("boom")

func (f failingProcessor) GetBatch(maxBatchSize int) *batch.Cursor {
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		n := atomic.AddInt32(f.started, 1)
		if n == 1 {
			// small delay so the other buckets have a chance to start
			// before this one fails and cancels them
			time.Sleep(10 * time.Millisecond)
			return batch.Result{}, false, errBoom
		}
		select {
		case <-ctx.Done():
			return batch.Result{}, false, ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return batch.Result{}, false, nil
		}
	})
}
