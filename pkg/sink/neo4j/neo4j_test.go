package neo4j

import (
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/sink"
	"github.com/stretchr/testify/assert"
)

func TestRowsToParams_DropsOriginIndexAndUnwrapsValues(t *testing.T) {
	rows := []rowvalue.Row{
		{
			"id":                    rowvalue.Int64(7),
			"name":                  rowvalue.String("Central"),
			rowvalue.OriginIndexKey: rowvalue.Int64(0),
		},
	}

	params := RowsToParams(rows)
	require := assert.New(t)
	require.Len(params, 1)
	require.Equal(int64(7), params[0]["id"])
	require.Equal("Central", params[0]["name"])
	_, present := params[0][rowvalue.OriginIndexKey]
	require.False(present, "the reserved origin-index column must never reach the graph target")
}

func TestBatchParams_BindsRowsUnderReservedBatchName(t *testing.T) {
	rows := []rowvalue.Row{{"id": rowvalue.Int64(1)}}
	params := BatchParams(rows)

	assert.Contains(t, params, sink.BatchParamName)
	assert.Equal(t, "batch", sink.BatchParamName)
	bound, ok := params[sink.BatchParamName].([]map[string]interface{})
	assert.True(t, ok)
	assert.Len(t, bound, 1)
}
