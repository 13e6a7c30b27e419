package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type station struct {
	Name string `validate:"required"`
	Lat  float64 `validate:"gte=-90,lte=90"`
}

func stationSchema() Schema {
	return Schema{
		New: func() interface{} { return &station{} },
		Project: func(row rowvalue.Row, target interface{}) ([]FieldAlias, error) {
			s := target.(*station)
			if name, ok := row["name"].StringVal(); ok {
				s.Name = name
			}
			if lat, ok := row["lat"].Float64Val(); ok {
				s.Lat = lat
			}
			return []FieldAlias{{StructField: "Name", RowKey: "name"}, {StructField: "Lat", RowKey: "lat"}}, nil
		},
	}
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
		return batch.RowResult(f.rows, stats.New()), true, nil
	})
}

func TestStage_SeparatesValidFromInvalid(t *testing.T) {
	rows := []rowvalue.Row{
		{"name": rowvalue.String("Central"), "lat": rowvalue.Float64(51.5)},
		{"name": rowvalue.String(""), "lat": rowvalue.Float64(200)},
	}
	var errBuf bytes.Buffer
	stage := New(&fixedUpstream{rows: rows}, stationSchema(), &errBuf)

	results, err := batch.Drain(context.Background(), stage.GetBatch(10))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Len(t, results[0].Chunk, 1)
	assert.Equal(t, int64(1), results[0].Stats["valid_rows"])
	assert.Equal(t, int64(1), results[0].Stats["invalid_rows"])
	assert.Equal(t, 2, results[0].BatchSize, "batch_size reports rows read, not rows valid")

	var record ErrorRecord
	line := strings.TrimSpace(errBuf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.NotEmpty(t, record.Errors)
}

func TestStage_TranslatesFieldNamesBackToRowKeys(t *testing.T) {
	rows := []rowvalue.Row{{"name": rowvalue.String(""), "lat": rowvalue.Float64(10)}}
	var errBuf bytes.Buffer
	stage := New(&fixedUpstream{rows: rows}, stationSchema(), &errBuf)

	_, err := batch.Drain(context.Background(), stage.GetBatch(10))
	require.NoError(t, err)

	assert.Contains(t, errBuf.String(), "name")
	assert.NotContains(t, errBuf.String(), "\"Name:")
}

func TestStage_NilErrorSink_DoesNotPanic(t *testing.T) {
	rows := []rowvalue.Row{{"name": rowvalue.String(""), "lat": rowvalue.Float64(10)}}
	stage := New(&fixedUpstream{rows: rows}, stationSchema(), nil)

	results, err := batch.Drain(context.Background(), stage.GetBatch(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[0].Stats["invalid_rows"])
}
