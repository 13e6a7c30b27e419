// Package sql implements the SQL row source: a batch.Processor streaming
// rows out of a database/sql query one driver round-trip at a time. The
// reference wiring registers github.com/jackc/pgx/v5/stdlib as the
// database/sql driver, letting this source pull rows out of a Postgres
// staging table — landing bulk data in Postgres and then streaming it into
// the graph is a common shape for this kind of ETL run — but Source itself
// only depends on database/sql, so any registered driver works.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

// ErrSourceFailure wraps any error the query or the row scan returns.
var ErrSourceFailure = errors.New("sql: source failed")

// RowTransform optionally rewrites a row scanned off the driver before it
// joins its batch, e.g. to rename a column or derive a computed field.
type RowTransform func(row rowvalue.Row) rowvalue.Row

// Source streams rows out of one query.
type Source struct {
	DB        *sql.DB
	Query     string
	Args      []interface{}
	Transform RowTransform
}

// New builds a SQL Source. db is expected to already have its driver
// registered and opened by the caller (e.g. sql.Open("pgx", dsn)). A
// trailing semicolon on query is stripped, matching the convention that a
// query here is a fragment the driver's own streaming cursor wraps, not a
// standalone statement a client tool would execute.
func New(db *sql.DB, query string, args ...interface{}) *Source {
	return &Source{DB: db, Query: strings.TrimRight(strings.TrimSpace(query), ";"), Args: args}
}

// WithTransform sets a per-row transformer applied before a scanned row
// joins its batch.
func (s *Source) WithTransform(t RowTransform) *Source {
	s.Transform = t
	return s
}

func (s *Source) GetBatch(maxBatchSize int) *batch.Cursor {
	var rows *sql.Rows
	var columns []string
	opened := false
	originIndex := int64(0)

	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		if !opened {
			r, err := s.DB.QueryContext(ctx, s.Query, s.Args...)
			if err != nil {
				return batch.Result{}, false, errors.Join(ErrSourceFailure, err)
			}
			rows = r
			cols, err := rows.Columns()
			if err != nil {
				rows.Close()
				return batch.Result{}, false, errors.Join(ErrSourceFailure, err)
			}
			columns = cols
			opened = true
		}

		var chunk []rowvalue.Row
		for len(chunk) < maxBatchSize {
			if !rows.Next() {
				if err := rows.Err(); err != nil {
					rows.Close()
					return batch.Result{}, false, errors.Join(ErrSourceFailure, err)
				}
				break
			}

			values := make([]interface{}, len(columns))
			scanArgs := make([]interface{}, len(columns))
			for i := range values {
				scanArgs[i] = &values[i]
			}
			if err := rows.Scan(scanArgs...); err != nil {
				rows.Close()
				return batch.Result{}, false, errors.Join(ErrSourceFailure, err)
			}

			row := make(rowvalue.Row, len(columns)+1)
			for i, col := range columns {
				row[col] = rowvalue.FromAny(values[i])
			}
			row[rowvalue.OriginIndexKey] = rowvalue.Int64(originIndex)
			originIndex++
			if s.Transform != nil {
				row = s.Transform(row)
			}
			chunk = append(chunk, row)
		}

		if len(chunk) == 0 {
			rows.Close()
			return batch.Result{}, false, nil
		}

		return batch.RowResult(chunk, stats.Stats{"rows_read": int64(len(chunk))}), true, nil
	})
}
