// Package terminator implements the closed loop that actually drives a
// pipeline: nothing upstream of a Terminator does any work until something
// calls Run, which pulls every remaining batch.Result from the chain and
// folds their statistics into one final report.
package terminator

import (
	"context"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/neo-technology-field/graph-etl-lib/pkg/task"
)

// Reporter is the slice of progress.Reporter the terminator needs; declared
// locally to avoid an import cycle (progress depends on task, not on
// terminator).
type Reporter interface {
	ReportProgress(t task.Task, batchesDone int, expectedBatches *int, cumulative stats.Stats)
}

// Terminator drains an upstream Processor to completion. Task and Reporter
// are optional: when both are set, Run calls Reporter.ReportProgress after
// every batch it pulls, per spec.md §4.7.
type Terminator struct {
	Upstream        batch.Processor
	Task            task.Task
	Reporter        Reporter
	ExpectedBatches *int
}

// New builds a Terminator over upstream with no progress reporting.
func New(upstream batch.Processor) *Terminator {
	return &Terminator{Upstream: upstream}
}

// NewWithProgress builds a Terminator that reports progress on t through
// reporter after each batch. expectedBatches may be nil when the total batch
// count isn't known ahead of time.
func NewWithProgress(upstream batch.Processor, t task.Task, reporter Reporter, expectedBatches *int) *Terminator {
	return &Terminator{Upstream: upstream, Task: t, Reporter: reporter, ExpectedBatches: expectedBatches}
}

// Run pulls every Result the upstream chain produces and returns one
// merged batch.Result: Stats is the element-wise sum of every pulled
// Result's Stats, and BatchSize is the actual total row count processed
// across the whole run, not an echo of maxBatchSize. A naive
// implementation is tempted to report the caller's requested batch size
// back as the run's total; that number only ever describes the hint given
// to the first GetBatch call; it says nothing about how many rows the run
// actually moved, so it is never used here.
func (t *Terminator) Run(ctx context.Context, maxBatchSize int) (batch.Result, error) {
	cursor := t.Upstream.GetBatch(maxBatchSize)

	total := stats.New()
	totalRows := 0
	batchesDone := 0

	for {
		result, ok, err := cursor.Next(ctx)
		if err != nil {
			return batch.Result{}, err
		}
		if !ok {
			break
		}
		total = total.Merge(result.Stats)
		totalRows += result.BatchSize
		batchesDone++
		if t.Reporter != nil && t.Task != nil {
			t.Reporter.ReportProgress(t.Task, batchesDone, t.ExpectedBatches, total)
		}
	}

	return batch.Result{
		Kind:      batch.KindRows,
		Stats:     total,
		BatchSize: totalRows,
	}, nil
}
