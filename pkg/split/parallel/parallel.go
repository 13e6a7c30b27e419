// Package parallel drives a splitter's waves through a bounded worker pool:
// every bucket in a wave is processed concurrently (up to MaxWorkers at a
// time), the first failure cancels every outstanding bucket in that wave,
// and waves themselves are processed strictly in the order the splitter
// emitted them (never two waves in flight at once), while the buckets
// within one wave finish in whatever order their workers happen to.
//
// A single prefetcher goroutine keeps the next wave's rows already pulled
// off the upstream splitter by the time the current wave's workers finish,
// so the worker pool is never left idle waiting on upstream I/O.
package parallel

import (
	"context"
	"errors"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"golang.org/x/sync/errgroup"
)

// ErrWorkerFailure wraps whatever error a bucket's worker chain returned.
var ErrWorkerFailure = errors.New("parallel: worker failed")

// WorkerFactory builds the processor chain run against exactly one
// bucket's rows. It is called once per bucket per wave; the batch.Single
// it's handed wraps that bucket's rows as a one-shot predecessor, so a
// factory typically returns something like
// sink.New(validate.New(predecessor, ...), ...).
type WorkerFactory func(predecessor batch.Processor) batch.Processor

// Processor consumes a splitter's wave output (batch.KindWave Results) and
// emits one batch.KindRows Result per wave: the concatenation of every
// bucket's processed rows plus the wave's merged statistics.
type Processor struct {
	Upstream      batch.Processor
	WorkerFactory WorkerFactory
	MaxWorkers    int
	Prefetch      int
}

// New builds a parallel wave Processor. prefetch is the number of waves
// kept pulled ahead of the consumer; a prefetch of 0 still keeps exactly
// one wave buffered (capacity prefetch+1).
func New(upstream batch.Processor, factory WorkerFactory, maxWorkers, prefetch int) *Processor {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if prefetch < 0 {
		prefetch = 0
	}
	return &Processor{Upstream: upstream, WorkerFactory: factory, MaxWorkers: maxWorkers, Prefetch: prefetch}
}

type waveFetch struct {
	result batch.Result
	err    error
}

func (p *Processor) GetBatch(maxBatchSize int) *batch.Cursor {
	upstream := p.Upstream.GetBatch(maxBatchSize)

	waves := make(chan waveFetch, p.Prefetch+1)
	prefetchCtx, cancelPrefetch := context.WithCancel(context.Background())

	go func() {
		defer close(waves)
		for {
			result, ok, err := upstream.Next(prefetchCtx)
			if err != nil {
				select {
				case waves <- waveFetch{err: err}:
				case <-prefetchCtx.Done():
				}
				return
			}
			if !ok {
				return
			}
			select {
			case waves <- waveFetch{result: result}:
			case <-prefetchCtx.Done():
				return
			}
		}
	}()

	closed := false
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		if closed {
			return batch.Result{}, false, nil
		}

		fetch, ok := <-waves
		if !ok {
			closed = true
			return batch.Result{}, false, nil
		}
		if fetch.err != nil {
			closed = true
			cancelPrefetch()
			return batch.Result{}, false, fetch.err
		}

		result, err := p.runWave(ctx, fetch.result)
		if err != nil {
			closed = true
			cancelPrefetch()
			return batch.Result{}, false, err
		}
		return result, true, nil
	})
}

// runWave fans bucket processing out across a bounded errgroup: the first
// bucket to fail cancels the shared context, which the sink/validate/etc.
// chain built by WorkerFactory is expected to observe on its own next
// session round-trip.
func (p *Processor) runWave(ctx context.Context, wave batch.Result) (batch.Result, error) {
	if wave.Kind != batch.KindWave {
		return wave, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.MaxWorkers)

	type bucketOutcome struct {
		rows  []rowvalue.Row
		stats stats.Stats
	}
	outcomes := make([]bucketOutcome, len(wave.Buckets))

	for i, bucket := range wave.Buckets {
		i, bucket := i, bucket
		eg.Go(func() error {
			single := batch.NewSingle(batch.RowResult(bucket.Rows, stats.New()))
			chain := p.WorkerFactory(single)
			results, err := batch.Drain(egCtx, chain.GetBatch(len(bucket.Rows)))
			if err != nil {
				return errors.Join(ErrWorkerFailure, err)
			}

			var rows []rowvalue.Row
			merged := stats.New()
			for _, r := range results {
				rows = append(rows, r.Chunk...)
				merged = merged.Merge(r.Stats)
			}
			outcomes[i] = bucketOutcome{rows: rows, stats: merged}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return batch.Result{}, err
	}

	var allRows []rowvalue.Row
	merged := wave.Stats
	if merged == nil {
		merged = stats.New()
	}
	for _, o := range outcomes {
		allRows = append(allRows, o.rows...)
		merged = merged.Merge(o.stats)
	}

	return batch.RowResult(allRows, merged), nil
}
