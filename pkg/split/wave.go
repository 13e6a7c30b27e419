package split

import "sort"

// Wave is the set of grid coordinates claimed for one parallel emission: no
// two cells share a claim, so a worker pool can write every cell in the
// wave at once without lock contention between workers.
type Wave []cellCoord

// claims returns the claim tokens cell (r, c) consumes, per §4.5.2: a
// bi-partite bucket claims an independent row-slot and col-slot; a
// mono-partite bucket claims the node index (or pair of indices) directly,
// collapsing to a singleton when r == c.
func claims(monopartite bool, r, c int) (rowClaim, colClaim int, sameClaim bool) {
	if !monopartite {
		return r, c, false
	}
	if r == c {
		return r, r, true
	}
	return r, c, false
}

// selectWave implements select_wave(L, seed) from §4.5.2: starting from the
// claims already used by seed, it greedily extends the wave with the
// longest remaining candidate buckets of length >= minLen whose claims
// don't collide, breaking ties on (r, c), until no more fit or the wave
// reaches g.size cells (the upper bound on parallelism).
func (g *Grid) selectWave(minLen int, seed Wave) Wave {
	wave := make(Wave, len(seed))
	copy(wave, seed)

	// Bi-partite claims live in two independent namespaces (row-slot,
	// col-slot); mono-partite claims are node indices drawn from a single
	// shared namespace, so (1,2) and (2,3) collide on node 2 even though
	// one looks like a "row" and the other a "col".
	usedRows := make(map[int]bool, g.size)
	usedCols := make(map[int]bool, g.size)
	usedNodes := make(map[int]bool, g.size)
	seedSet := make(map[cellCoord]bool, len(seed))
	for _, cell := range seed {
		r, c, _ := claims(g.monopartite, cell.r, cell.c)
		if g.monopartite {
			usedNodes[r] = true
			usedNodes[c] = true
		} else {
			usedRows[r] = true
			usedCols[c] = true
		}
		seedSet[cell] = true
	}

	candidates := g.nonEmptyCells()
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := g.Len(candidates[i].r, candidates[i].c), g.Len(candidates[j].r, candidates[j].c)
		if li != lj {
			return li > lj
		}
		if candidates[i].r != candidates[j].r {
			return candidates[i].r < candidates[j].r
		}
		return candidates[i].c < candidates[j].c
	})

	for _, cell := range candidates {
		if len(wave) >= g.size {
			break
		}
		if seedSet[cell] {
			continue
		}
		if g.Len(cell.r, cell.c) < minLen {
			continue
		}
		r, c, _ := claims(g.monopartite, cell.r, cell.c)
		if g.monopartite {
			if usedNodes[r] || usedNodes[c] {
				continue
			}
			wave = append(wave, cell)
			usedNodes[r] = true
			usedNodes[c] = true
			continue
		}
		if usedRows[r] || usedCols[c] {
			continue
		}
		wave = append(wave, cell)
		usedRows[r] = true
		usedCols[c] = true
	}
	return wave
}
