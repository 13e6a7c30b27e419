package split

import (
	"context"
	"fmt"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

const (
	// DefaultNearFullRatio is R in near_full = max(1, floor(M*R)).
	DefaultNearFullRatio = 0.85
	// DefaultBurstMultiplier is B in burst = B*M.
	DefaultBurstMultiplier = 25
)

// Processor buffers upstream rows into a bucket grid and emits them as
// waves. Per upstream batch consumed, its emission policy runs two loops,
// then a final drain loop once the upstream is exhausted:
//
//   - full emission loop: while select_wave(M) (pure "fully ready" seed) is
//     non-empty, extend it via select_wave(near_full, seed), then flush.
//   - burst emission loop: while some bucket has length >= burst, seed a
//     wave with the hottest such bucket and extend via
//     select_wave(near_full, seed), then flush.
//   - drain loop (upstream exhausted): while any bucket is non-empty,
//     select_wave(1) and flush.
//
// A flush extracts up to M rows from the head of each selected bucket
// (FIFO) and emits one wave Result aligned with the wave's bucket order.
//
// Running statistics are accumulated across every upstream chunk pulled,
// but withheld (the emitted Result's Stats is empty) on every wave except
// the very last one emitted, which carries the run's full merged total.
// When the grid is already empty as the upstream runs out, that last
// emission is a wave with no buckets.
type Processor struct {
	Upstream        batch.Processor
	Extractor       Extractor
	GridSize        int
	NearFullRatio   float64
	BurstMultiplier int
}

// Option configures a Processor at construction.
type Option func(*Processor)

// WithNearFullRatio overrides R (must be in (0, 1]).
func WithNearFullRatio(r float64) Option {
	return func(p *Processor) { p.NearFullRatio = r }
}

// WithBurstMultiplier overrides B (must be >= 1).
func WithBurstMultiplier(b int) Option {
	return func(p *Processor) { p.BurstMultiplier = b }
}

// New builds a splitting Processor. It fails construction if extractor's
// TableSize hint (when set) disagrees with gridSize, or if the derived
// thresholds' inputs fall outside their required ranges.
func New(upstream batch.Processor, extractor Extractor, gridSize int, opts ...Option) (*Processor, error) {
	if extractor.TableSize != 0 && extractor.TableSize != gridSize {
		return nil, fmt.Errorf("split: extractor built for table_size %d does not match grid size %d", extractor.TableSize, gridSize)
	}

	p := &Processor{
		Upstream:        upstream,
		Extractor:       extractor,
		GridSize:        gridSize,
		NearFullRatio:   DefaultNearFullRatio,
		BurstMultiplier: DefaultBurstMultiplier,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.NearFullRatio <= 0 || p.NearFullRatio > 1 {
		return nil, fmt.Errorf("split: near_full_ratio %v must be in (0, 1]", p.NearFullRatio)
	}
	if p.BurstMultiplier < 1 {
		return nil, fmt.Errorf("split: burst_multiplier %d must be >= 1", p.BurstMultiplier)
	}
	return p, nil
}

// thresholds derives near_full and burst from M per §4.5.3.
func (p *Processor) thresholds(maxBatchSize int) (nearFull, burst int) {
	nearFull = int(float64(maxBatchSize) * p.NearFullRatio)
	if nearFull < 1 {
		nearFull = 1
	}
	burst = p.BurstMultiplier * maxBatchSize
	return nearFull, burst
}

func (p *Processor) GetBatch(maxBatchSize int) *batch.Cursor {
	grid := NewGrid(p.GridSize, p.Extractor.Monopartite)
	upstream := p.Upstream.GetBatch(maxBatchSize)
	upstreamDone := false
	total := stats.New()
	nearFull, burst := p.thresholds(maxBatchSize)
	totalEmitted := false

	flush := func(wave Wave) batch.Result {
		buckets := make([]batch.BucketBatch, 0, len(wave))
		rowCount := 0
		for _, cell := range wave {
			rows := grid.ClaimUpTo(cell.r, cell.c, maxBatchSize)
			rowCount += len(rows)
			buckets = append(buckets, batch.BucketBatch{Row: cell.r, Col: cell.c, Rows: rows})
		}
		if grid.IsEmpty() && upstreamDone {
			totalEmitted = true
			return batch.WaveResult(buckets, total, rowCount)
		}
		return batch.WaveResult(buckets, stats.New(), rowCount)
	}

	route := func(res batch.Result) error {
		for _, row := range res.Chunk {
			r, c, err := p.Extractor.Map(row)
			if err != nil {
				return err
			}
			if p.Extractor.Monopartite && r > c {
				r, c = c, r
			}
			if err := grid.Put(r, c, row); err != nil {
				return err
			}
		}
		total = total.Merge(res.Stats)
		return nil
	}

	pullUpstream := func(ctx context.Context) (bool, error) {
		res, ok, err := upstream.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			upstreamDone = true
			return false, nil
		}
		if err := route(res); err != nil {
			return false, err
		}
		return true, nil
	}

	done := false

	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		for {
			if done {
				return batch.Result{}, false, nil
			}

			if !upstreamDone {
				// full emission loop
				if full := grid.selectWave(maxBatchSize, nil); len(full) > 0 {
					wave := grid.selectWave(nearFull, full)
					return flush(wave), true, nil
				}
				// burst emission loop
				if hot, ok := grid.hottestBucket(burst); ok {
					wave := grid.selectWave(nearFull, Wave{hot})
					return flush(wave), true, nil
				}
				if _, err := pullUpstream(ctx); err != nil {
					return batch.Result{}, false, err
				}
				continue
			}

			// upstream exhausted: drain loop, select_wave(1) until empty.
			if grid.IsEmpty() {
				done = true
				if !totalEmitted {
					totalEmitted = true
					return batch.WaveResult(nil, total, 0), true, nil
				}
				continue
			}
			wave := grid.selectWave(1, nil)
			return flush(wave), true, nil
		}
	})
}
