// Package batch defines the pull-based streaming contract every stage of the
// pipeline implements: a Processor yields a finite sequence of BatchResults,
// one at a time, only when its consumer asks for the next one.
//
// Go gained range-over-func iterators (iter.Seq2) in 1.23, which would be
// the natural shape for this contract. This module targets go 1.21, so the
// same pull shape is hand-rolled as a Cursor: GetBatch returns a Cursor, and
// the consumer drives it by calling Next in a loop until ok is false or an
// error is returned. This keeps every stage lazy and finite without
// buffering more than one batch in flight between any two stages.
package batch

import (
	"context"

	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

// Kind distinguishes a row-chunk result from a wave (bucket) result; a
// Result carries exactly one of Chunk or Buckets, never both.
type Kind int

const (
	KindRows Kind = iota
	KindWave
)

// BucketBatch is one cell of the splitter's bucket grid handed to a wave's
// worker pool: the grid coordinates it was claimed from, and the rows
// queued in that cell at claim time.
type BucketBatch struct {
	Row  int
	Col  int
	Rows []rowvalue.Row
}

// Result is one unit of work flowing between two pipeline stages.
type Result struct {
	Kind      Kind
	Chunk     []rowvalue.Row
	Buckets   []BucketBatch
	Stats     stats.Stats
	BatchSize int
}

// RowResult builds a row-chunk Result, BatchSize defaulting to len(chunk).
func RowResult(chunk []rowvalue.Row, s stats.Stats) Result {
	return Result{Kind: KindRows, Chunk: chunk, Stats: s, BatchSize: len(chunk)}
}

// WaveResult builds a wave (bucket) Result. batchSize is the total row
// count across all buckets, supplied by the caller; Buckets may be empty,
// as on a splitter's final statistics-only wave.
func WaveResult(buckets []BucketBatch, s stats.Stats, batchSize int) Result {
	return Result{Kind: KindWave, Buckets: buckets, Stats: s, BatchSize: batchSize}
}

// Processor is the pull-based streaming contract. A source (CSV, SQL,
// Single) has no upstream; every other Processor wraps exactly one
// upstream Processor.
type Processor interface {
	// GetBatch returns a Cursor the caller drives to pull successive
	// Results. maxBatchSize is a hint, not a guarantee: a source may
	// return fewer rows (end of input) or, for a splitter, a whole wave
	// regardless of the hint.
	GetBatch(maxBatchSize int) *Cursor
}

// NextFunc pulls the next Result from a Cursor. ok is false once the
// Processor is exhausted; err surfaces any failure encountered while
// producing the next Result, and ends the sequence.
type NextFunc func(ctx context.Context) (result Result, ok bool, err error)

// Cursor is a single-use forward iterator over a Processor's output.
// It is not safe for concurrent use: exactly one goroutine may call Next at
// a time, matching the single-consumer-thread rule the bucket grid and
// prefetch queue both rely on.
type Cursor struct {
	next NextFunc
	done bool
}

// NewCursor wraps a NextFunc as a Cursor.
func NewCursor(next NextFunc) *Cursor {
	return &Cursor{next: next}
}

// Next pulls the next Result. Once it has returned ok=false or a non-nil
// error, every subsequent call returns ok=false, nil error without
// invoking the underlying NextFunc again.
func (c *Cursor) Next(ctx context.Context) (Result, bool, error) {
	if c.done {
		return Result{}, false, nil
	}
	result, ok, err := c.next(ctx)
	if !ok || err != nil {
		c.done = true
	}
	return result, ok, err
}

// Drain pulls every remaining Result from c and returns them in order,
// unmerged; on error it returns the Results pulled so far with the error.
func Drain(ctx context.Context, c *Cursor) ([]Result, error) {
	var results []Result
	for {
		r, ok, err := c.Next(ctx)
		if err != nil {
			return results, err
		}
		if !ok {
			return results, nil
		}
		results = append(results, r)
	}
}

// Single is the in-memory, one-batch Processor used as the synthetic
// predecessor a parallel wave worker's chain is built against: a
// WorkerFactory is handed a Single wrapping exactly the rows of one claimed
// bucket, and the chain it builds (validate -> sink -> ...) pulls that one
// Result and then sees end of input.
type Single struct {
	result Result
	filled bool
}

// NewSingle wraps one Result as a one-shot Processor.
func NewSingle(result Result) *Single {
	return &Single{result: result}
}

func (s *Single) GetBatch(maxBatchSize int) *Cursor {
	return NewCursor(func(ctx context.Context) (Result, bool, error) {
		if s.filled {
			return Result{}, false, nil
		}
		s.filled = true
		return s.result, true, nil
	})
}
