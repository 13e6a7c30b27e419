// Package stats defines the associative, commutative counter map that every
// stage in graph-etl-lib attaches to its BatchResult, and the Merge operation
// that lets a splitter or terminator fold many stages' counters into one.
package stats

// Stats is a flat counter map, e.g. {"rows_read": 100, "rows_written": 97,
// "rows_rejected": 3}. Reserved keys are a convention, not an enforced
// schema: any stage may add its own.
type Stats map[string]int64

// New returns an empty, non-nil Stats.
func New() Stats {
	return make(Stats)
}

// Merge returns a new Stats holding the element-wise sum of s and other.
// Neither input is mutated, so a Stats value can be safely handed to more
// than one caller (a wave's stats are merged into a running total without
// the wave's own copy changing underfoot).
func (s Stats) Merge(other Stats) Stats {
	out := make(Stats, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] += v
	}
	return out
}

// MergeAll folds a sequence of Stats left to right, starting from an empty map.
func MergeAll(all ...Stats) Stats {
	out := New()
	for _, s := range all {
		out = out.Merge(s)
	}
	return out
}

// Add returns a new Stats with key incremented by delta, leaving the
// receiver untouched.
func (s Stats) Add(key string, delta int64) Stats {
	out := make(Stats, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[key] += delta
	return out
}

// WithoutZeros returns a copy of s with every zero-valued entry dropped,
// used by the log progress reporter so a finished task's printed stats
// table only shows counters that actually moved.
func (s Stats) WithoutZeros() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}
