package terminator

import (
	"context"
	"errors"
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/neo-technology-field/graph-etl-lib/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressCall struct {
	batchesDone int
	expected    *int
	cumulative  stats.Stats
}

type recordingReporter struct {
	calls []progressCall
}

func (r *recordingReporter) ReportProgress(t task.Task, batchesDone int, expectedBatches *int, cumulative stats.Stats) {
	r.calls = append(r.calls, progressCall{batchesDone: batchesDone, expected: expectedBatches, cumulative: cumulative})
}

type leafTask struct{ task.Base }

func (l *leafTask) Execute(ctx context.Context) task.TaskReturn { return task.Ok(nil) }

type sequenceSource struct {
	results []batch.Result
	i       int
	failAt  int
}

func (s *sequenceSource) GetBatch(maxBatchSize int) *batch.Cursor {
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		if s.failAt > 0 && s.i == s.failAt {
			return batch.Result{}, false, errors.New("source exploded")
		}
		if s.i >= len(s.results) {
			return batch.Result{}, false, nil
		}
		r := s.results[s.i]
		s.i++
		return r, true, nil
	})
}

func rows(n int) []rowvalue.Row {
	out := make([]rowvalue.Row, n)
	for i := range out {
		out[i] = rowvalue.Row{"id": rowvalue.Int64(int64(i))}
	}
	return out
}

func TestTerminator_ReportsActualRowCountNotRequestedHint(t *testing.T) {
	source := &sequenceSource{results: []batch.Result{
		batch.RowResult(rows(7), stats.Stats{"rows_written": 7}),
		batch.RowResult(rows(3), stats.Stats{"rows_written": 3}),
	}}
	term := New(source)

	// ask for a batch size that bears no relation to the actual row count
	result, err := term.Run(context.Background(), 1000)
	require.NoError(t, err)

	assert.Equal(t, 10, result.BatchSize, "must report the real total rows processed, not the requested hint")
	assert.Equal(t, int64(10), result.Stats["rows_written"])
}

func TestTerminator_ReportsProgressPerBatch(t *testing.T) {
	source := &sequenceSource{results: []batch.Result{
		batch.RowResult(rows(5), stats.Stats{"rows_written": 5}),
		batch.RowResult(rows(2), stats.Stats{"rows_written": 2}),
	}}
	reporter := &recordingReporter{}
	leaf := &leafTask{Base: task.NewBase("load")}
	expected := 2

	term := NewWithProgress(source, leaf, reporter, &expected)
	result, err := term.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Stats["rows_written"])

	require.Len(t, reporter.calls, 2)
	assert.Equal(t, 1, reporter.calls[0].batchesDone)
	assert.Equal(t, int64(5), reporter.calls[0].cumulative["rows_written"])
	assert.Equal(t, 2, reporter.calls[1].batchesDone)
	assert.Equal(t, int64(7), reporter.calls[1].cumulative["rows_written"])
	assert.Equal(t, &expected, reporter.calls[1].expected)
}

func TestTerminator_PropagatesUpstreamError(t *testing.T) {
	source := &sequenceSource{
		results: []batch.Result{batch.RowResult(rows(1), stats.New())},
		failAt:  1,
	}
	term := New(source)

	_, err := term.Run(context.Background(), 10)
	assert.Error(t, err)
}
