package energy

import "time"

// CadenceMinutes is the sampling interval kept by ReduceCadence.
const CadenceMinutes = 10

// OnCadence reports whether t falls on a 10-minute boundary.
func OnCadence(t time.Time) bool {
	return t.Minute()%CadenceMinutes == 0
}

// ReduceCadence keeps the readings whose minute is a multiple of
// CadenceMinutes, preserving order. The input is not modified.
func ReduceCadence(readings []Reading) []Reading {
	out := make([]Reading, 0, len(readings)/CadenceMinutes+1)
	for _, r := range readings {
		if OnCadence(r.Time) {
			out = append(out, r)
		}
	}
	return out
}

// FilterLocation keeps the readings tagged with location, or with
// CampusLocation when location is empty.
func FilterLocation(readings []Reading, location string) []Reading {
	if location == "" {
		location = CampusLocation
	}
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r.Location == location {
			out = append(out, r)
		}
	}
	return out
}
