package energy

type readingKey struct {
	datetime string
	location string
	power    float64
}

func (r Reading) key() readingKey {
	return readingKey{datetime: r.Datetime, location: r.Location, power: r.Power}
}

// Merge returns the union of earlier and later: earlier's rows first, then
// later's, each (datetime, location, power) triple appearing once.
// Identical triples on different days collapse into one row.
func Merge(earlier, later []Reading) []Reading {
	seen := make(map[readingKey]struct{}, len(earlier)+len(later))
	out := make([]Reading, 0, len(earlier)+len(later))
	for _, side := range [][]Reading{earlier, later} {
		for _, r := range side {
			k := r.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
