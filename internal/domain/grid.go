package domain

import (
	"slices"
	"time"
)

const day = 24 * time.Hour

// Grid returns one row per calendar day from the earliest to the latest input
// date. Days without an input row get the location and the preceding row's
// vaccine and source URL, with every counter nil. Input dates must be unique;
// the input slice is not modified. Grid is idempotent.
func Grid(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Row) int { return a.Date.Compare(b.Date) })

	first, last := sorted[0].Date, sorted[len(sorted)-1].Date
	out := make([]Row, 0, daysBetween(first, last)+1)

	next := 0
	for d := first; !d.After(last); d = d.Add(day) {
		if next < len(sorted) && sorted[next].Date.Equal(d) {
			out = append(out, sorted[next])
			next++
			continue
		}
		prev := out[len(out)-1]
		out = append(out, Row{Observation: Observation{
			Location:  prev.Location,
			Date:      d,
			Vaccine:   prev.Vaccine,
			SourceURL: prev.SourceURL,
		}})
	}
	return out
}

// daysBetween returns the whole number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / day)
}

// Truncate returns t as a UTC midnight.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
