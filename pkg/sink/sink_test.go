package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	closed bool
	fail   bool
}

func (f *fakeSession) Run(ctx context.Context, rows []rowvalue.Row) (Counters, error) {
	if f.fail {
		return Counters{}, errors.New("write exploded")
	}
	return Counters{NodesCreated: int64(len(rows))}, nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type fixedUpstream struct {
	rows []rowvalue.Row
	sent bool
}

func (f *fixedUpstream) GetBatch(maxBatchSize int) *batch.Cursor {
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		if f.sent {
			return batch.Result{}, false, nil
		}
		f.sent = true
		return batch.RowResult(f.rows, stats.Stats{"rows_read": int64(len(f.rows))}), true, nil
	})
}

func TestSink_MergesCountersIntoStats(t *testing.T) {
	session := &fakeSession{}
	rows := []rowvalue.Row{{"id": rowvalue.Int64(1)}, {"id": rowvalue.Int64(2)}}
	upstream := &fixedUpstream{rows: rows}

	s := New(upstream, func(ctx context.Context) (Session, error) { return session, nil },
		func(ctx context.Context, session Session, rows []rowvalue.Row) (Counters, error) {
			return session.Run(ctx, rows)
		})

	results, err := batch.Drain(context.Background(), s.GetBatch(10))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int64(2), results[0].Stats["rows_read"])
	assert.Equal(t, int64(2), results[0].Stats["nodes_created"])
	assert.True(t, session.closed, "sink must close the session it opened")
}

func TestSink_WrapsWriteFailure(t *testing.T) {
	session := &fakeSession{fail: true}
	upstream := &fixedUpstream{rows: []rowvalue.Row{{"id": rowvalue.Int64(1)}}}

	s := New(upstream, func(ctx context.Context) (Session, error) { return session, nil },
		func(ctx context.Context, session Session, rows []rowvalue.Row) (Counters, error) {
			return session.Run(ctx, rows)
		})

	_, err := batch.Drain(context.Background(), s.GetBatch(10))
	assert.ErrorIs(t, err, ErrSinkFailure)
}

func TestCounters_Stats_CoversEveryReservedKey(t *testing.T) {
	c := Counters{
		NodesCreated: 1, NodesDeleted: 2,
		RelationshipsCreated: 3, RelationshipsDeleted: 4,
		PropertiesSet:      5,
		LabelsAdded:        6,
		LabelsRemoved:      7,
		IndexesAdded:       8,
		IndexesRemoved:     9,
		ConstraintsAdded:   10,
		ConstraintsRemoved: 11,
	}

	s := c.Stats()
	assert.Equal(t, int64(1), s["nodes_created"])
	assert.Equal(t, int64(2), s["nodes_deleted"])
	assert.Equal(t, int64(3), s["relationships_created"])
	assert.Equal(t, int64(4), s["relationships_deleted"])
	assert.Equal(t, int64(5), s["properties_set"])
	assert.Equal(t, int64(6), s["labels_added"])
	assert.Equal(t, int64(7), s["labels_removed"])
	assert.Equal(t, int64(8), s["indexes_added"])
	assert.Equal(t, int64(9), s["indexes_removed"])
	assert.Equal(t, int64(10), s["constraints_added"])
	assert.Equal(t, int64(11), s["constraints_removed"])
}

func TestSink_PassesThroughEmptyChunksWithoutOpeningASession(t *testing.T) {
	upstream := &fixedUpstream{rows: nil}
	opened := false

	s := New(upstream, func(ctx context.Context) (Session, error) {
		opened = true
		return &fakeSession{}, nil
	}, func(ctx context.Context, session Session, rows []rowvalue.Row) (Counters, error) {
		return Counters{}, nil
	})

	_, err := batch.Drain(context.Background(), s.GetBatch(10))
	require.NoError(t, err)
	assert.False(t, opened)
}
