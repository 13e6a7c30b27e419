package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_PullsUntilExhausted(t *testing.T) {
	calls := 0
	cursor := NewCursor(func(ctx context.Context) (Result, bool, error) {
		calls++
		if calls > 2 {
			return Result{}, false, nil
		}
		return RowResult([]rowvalue.Row{{"a": rowvalue.Int64(int64(calls))}}, stats.New()), true, nil
	})

	results, err := Drain(context.Background(), cursor)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 3, calls)
}

func TestCursor_StopsAfterError(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	cursor := NewCursor(func(ctx context.Context) (Result, bool, error) {
		calls++
		return Result{}, true, sentinel
	})

	_, _, err := cursor.Next(context.Background())
	assert.ErrorIs(t, err, sentinel)

	// subsequent calls must not re-invoke the underlying func
	result, ok, err := cursor.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Equal(t, 1, calls)
}

func TestSingle_YieldsExactlyOnce(t *testing.T) {
	rows := []rowvalue.Row{{"a": rowvalue.String("x")}}
	single := NewSingle(RowResult(rows, stats.New()))

	cursor := single.GetBatch(10)
	r1, ok, err := cursor.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rows, r1.Chunk)

	_, ok, err = cursor.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaveResult_CarriesBatchSizeIndependently(t *testing.T) {
	r := WaveResult(nil, stats.New(), 42)
	assert.Equal(t, KindWave, r.Kind)
	assert.Equal(t, 42, r.BatchSize)
	assert.Nil(t, r.Buckets)
}
