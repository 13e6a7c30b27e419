// Package validate wraps github.com/go-playground/validator/v10 as a
// pipeline stage: each row is projected onto a plain Go struct tagged with
// validator rules, the struct is validated, and any failures are written
// out as NDJSON rather than failing the batch — a bad row is dropped, not
// a reason to abort the run.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

// FieldAlias maps a validator struct field name back to the row column it
// was projected from, so a validation error on the struct can be reported
// in terms the row's own schema understands.
type FieldAlias struct {
	StructField string
	RowKey      string
}

// Schema describes how to project one Row onto a validator-tagged struct.
// New returns a fresh, addressable instance (a pointer); Project fills its
// fields from row and returns the alias list needed to translate any
// validator.FieldError.Field() back to a row column name.
type Schema struct {
	New     func() interface{}
	Project func(row rowvalue.Row, target interface{}) ([]FieldAlias, error)
}

// ErrorRecord is one rejected row, written as a line of NDJSON to a Stage's
// error output. Row holds the row's values unwrapped with Value.Any.
type ErrorRecord struct {
	Row    map[string]interface{} `json:"row"`
	Errors []string               `json:"errors"`
}

// Stage is the validation pipeline stage.
type Stage struct {
	Upstream  batch.Processor
	Schema    Schema
	ErrorSink io.Writer
	validate  *validator.Validate
}

// New builds a validation Stage. errorSink may be nil, in which case
// rejected rows are silently dropped (still counted in Stats) rather than
// recorded anywhere.
func New(upstream batch.Processor, schema Schema, errorSink io.Writer) *Stage {
	return &Stage{
		Upstream:  upstream,
		Schema:    schema,
		ErrorSink: errorSink,
		validate:  validator.New(),
	}
}

func (s *Stage) GetBatch(maxBatchSize int) *batch.Cursor {
	upstream := s.Upstream.GetBatch(maxBatchSize)
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		result, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return batch.Result{}, ok, err
		}
		if result.Kind != batch.KindRows {
			return result, true, nil
		}

		valid := make([]rowvalue.Row, 0, len(result.Chunk))
		accepted := int64(0)
		rejected := int64(0)

		for _, row := range result.Chunk {
			target := s.Schema.New()
			aliases, err := s.Schema.Project(row, target)
			if err != nil {
				rejected++
				s.reject(row, []string{err.Error()})
				continue
			}

			if verr := s.validate.Struct(target); verr != nil {
				rejected++
				s.reject(row, translateErrors(verr, aliases))
				continue
			}

			accepted++
			valid = append(valid, row)
		}

		merged := result.Stats.Merge(stats.Stats{
			"valid_rows":   accepted,
			"invalid_rows": rejected,
		})
		out := batch.RowResult(valid, merged)
		out.BatchSize = result.BatchSize // rows read, not rows valid
		return out, true, nil
	})
}

func (s *Stage) reject(row rowvalue.Row, messages []string) {
	if s.ErrorSink == nil {
		return
	}
	plain := make(map[string]interface{}, len(row))
	for k, v := range row {
		plain[k] = v.Any()
	}
	record := ErrorRecord{Row: plain, Errors: messages}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	data = append(data, '\n')
	s.ErrorSink.Write(data)
}

// translateErrors renders a validator error into column-addressed messages,
// substituting the original row column name for the struct field name
// wherever an alias is known.
func translateErrors(err error, aliases []FieldAlias) []string {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return []string{err.Error()}
	}

	aliasOf := make(map[string]string, len(aliases))
	for _, a := range aliases {
		aliasOf[a.StructField] = a.RowKey
	}

	messages := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		field := fe.Field()
		if rowKey, ok := aliasOf[field]; ok {
			field = rowKey
		}
		messages = append(messages, fmt.Sprintf("%s: failed %q validation", field, fe.Tag()))
	}
	return messages
}
