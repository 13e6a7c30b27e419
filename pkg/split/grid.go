// Package split implements the bucket-grid wave scheduler: rows destined
// for a relationship write are routed into a T×T grid of FIFO queues keyed
// by (row, col) grid coordinates derived from the two node identities the
// relationship connects, and emitted in "waves" — sets of buckets whose
// claims are pairwise disjoint — so that a parallel worker pool downstream
// can write every bucket in a wave at once without two workers ever taking
// a write lock on the same node partition at the same time.
package split

import (
	"errors"
	"fmt"

	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
)

// ErrBucketRange is returned when an Extractor yields a coordinate outside
// [0, T).
var ErrBucketRange = errors.New("split: bucket coordinate out of range")

// Grid is a T×T matrix of FIFO row queues. It is owned exclusively by the
// goroutine driving the enclosing Processor's Cursor; nothing else may
// touch it concurrently.
type Grid struct {
	size        int
	monopartite bool
	buckets     [][][]rowvalue.Row
}

// NewGrid allocates an empty size×size grid. monopartite selects the claim
// semantics selectWave uses: bi-partite buckets claim independent row/col
// slots, mono-partite buckets claim node indices directly.
func NewGrid(size int, monopartite bool) *Grid {
	buckets := make([][][]rowvalue.Row, size)
	for i := range buckets {
		buckets[i] = make([][]rowvalue.Row, size)
	}
	return &Grid{size: size, monopartite: monopartite, buckets: buckets}
}

func (g *Grid) Size() int { return g.size }

// Put appends row to bucket (r, c). Mono-partite canonicalization (r <= c)
// is the extractor's responsibility, applied before Put is called; Put
// itself only range-checks.
func (g *Grid) Put(r, c int, row rowvalue.Row) error {
	if r < 0 || r >= g.size || c < 0 || c >= g.size {
		return fmt.Errorf("%w: (%d, %d) outside [0, %d)", ErrBucketRange, r, c, g.size)
	}
	g.buckets[r][c] = append(g.buckets[r][c], row)
	return nil
}

// Len returns the number of rows currently queued at (r, c).
func (g *Grid) Len(r, c int) int {
	return len(g.buckets[r][c])
}

// IsEmpty reports whether every bucket in the grid is empty.
func (g *Grid) IsEmpty() bool {
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			if len(g.buckets[r][c]) > 0 {
				return false
			}
		}
	}
	return true
}

// ClaimUpTo removes and returns up to max rows from the head of bucket
// (r, c) FIFO-wise, leaving any remainder queued for the next flush.
func (g *Grid) ClaimUpTo(r, c, max int) []rowvalue.Row {
	bucket := g.buckets[r][c]
	if max <= 0 || max >= len(bucket) {
		g.buckets[r][c] = nil
		return bucket
	}
	taken := bucket[:max]
	g.buckets[r][c] = bucket[max:]
	return taken
}

// cellCoord is an internal (row, col) pair used while selecting a wave.
type cellCoord struct {
	r, c int
}

// nonEmptyCells lists every (r, c) with at least one queued row.
func (g *Grid) nonEmptyCells() []cellCoord {
	var cells []cellCoord
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			if len(g.buckets[r][c]) > 0 {
				cells = append(cells, cellCoord{r, c})
			}
		}
	}
	return cells
}

// hottestBucket returns the non-empty cell with the greatest queue length
// that is at least minLen, breaking ties on (r, c) for determinism.
func (g *Grid) hottestBucket(minLen int) (cellCoord, bool) {
	best := cellCoord{}
	bestLen := -1
	found := false
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			l := len(g.buckets[r][c])
			if l < minLen {
				continue
			}
			if l > bestLen || (l == bestLen && (r < best.r || (r == best.r && c < best.c))) {
				best, bestLen, found = cellCoord{r, c}, l, true
			}
		}
	}
	return best, found
}
