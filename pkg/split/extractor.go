package split

import (
	"fmt"

	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
)

// Extractor maps a row onto grid coordinates. TableSize is a hint the
// extractor was built for; New validates it against the grid's own size so
// a mismatched extractor/grid pairing fails fast instead of silently
// truncating coordinates. Monopartite extractors draw both endpoints from
// the same node-id space (e.g. a self-referential relationship between two
// nodes of the same label): the splitter canonicalizes their coordinates so
// (a, b) and (b, a) always land on the same bucket.
type Extractor struct {
	TableSize   int
	Monopartite bool
	Map         func(row rowvalue.Row) (r, c int, err error)
}

const defaultLastDigitTableSize = 10

// lastDigit returns the last base-10 digit of the absolute value of id,
// matching the reference implementation's int(str(id)[-1]).
func lastDigit(id int64) int {
	if id < 0 {
		id = -id
	}
	return int(id % 10)
}

// hashInt reduces id into [0, mod) via the Knuth multiplicative hash
// (multiply by 2654435761, mask to 32 bits, reduce modulo mod).
func hashInt(id int64, mod int) int {
	if mod <= 0 {
		return 0
	}
	const knuth = 2654435761
	mixed := (uint64(id) * knuth) & 0xFFFFFFFF
	return int(mixed % uint64(mod))
}

// TupleLastDigitExtractor builds a bi-partite Extractor from two distinct
// integer-valued columns: fromKey feeds the row coordinate, toKey the
// column coordinate, each reduced to its last base-10 digit. gridSize of 0
// defaults to 10, matching the last-digit extractor's natural range.
func TupleLastDigitExtractor(fromKey, toKey string, gridSize int) Extractor {
	if gridSize <= 0 {
		gridSize = defaultLastDigitTableSize
	}
	return Extractor{
		TableSize: gridSize,
		Map: func(row rowvalue.Row) (int, int, error) {
			fromID, ok := row[fromKey].Int64Val()
			if !ok {
				return 0, 0, fmt.Errorf("split: column %q is not an integer", fromKey)
			}
			toID, ok := row[toKey].Int64Val()
			if !ok {
				return 0, 0, fmt.Errorf("split: column %q is not an integer", toKey)
			}
			return lastDigit(fromID) % gridSize, lastDigit(toID) % gridSize, nil
		},
	}
}

// DictLastDigitExtractor is TupleLastDigitExtractor with its two endpoint
// column names passed as one pair: keys[0] feeds the row coordinate,
// keys[1] the column coordinate.
func DictLastDigitExtractor(keys [2]string, gridSize int) Extractor {
	return TupleLastDigitExtractor(keys[0], keys[1], gridSize)
}

// CanonicalHashMonoPartiteExtractor builds a mono-partite Extractor: both
// endpoints are drawn from the same node-id space (e.g. a self-referential
// relationship like FOLLOWS between two Person nodes) and hashed through
// the same canonical function, then canonicalized so r <= c — (a, b) and
// (b, a) always resolve to the exact same bucket, which is what actually
// prevents lock contention when both ends of a relationship share a label.
func CanonicalHashMonoPartiteExtractor(fromKey, toKey string, gridSize int) Extractor {
	return Extractor{
		TableSize:   gridSize,
		Monopartite: true,
		Map: func(row rowvalue.Row) (int, int, error) {
			fromID, ok := row[fromKey].Int64Val()
			if !ok {
				return 0, 0, fmt.Errorf("split: column %q is not an integer", fromKey)
			}
			toID, ok := row[toKey].Int64Val()
			if !ok {
				return 0, 0, fmt.Errorf("split: column %q is not an integer", toKey)
			}
			r, c := hashInt(fromID, gridSize), hashInt(toID, gridSize)
			if r > c {
				r, c = c, r
			}
			return r, c, nil
		},
	}
}
