package domain

import (
	"slices"
	"time"
)

// BuildSeries reconstructs the daily series of one real location from its
// validated observations.
func BuildSeries(location string, obs []Observation, today time.Time) Series {
	clean := CleanObservations(obs, today)
	rows := make([]Row, len(clean))
	for i, o := range clean {
		rows[i] = Row{Observation: o}
	}
	return Series{Location: location, Rows: Derive(TrimLeading(rows))}
}

// CleanObservations merges same-day rows and drops observations dated today
// or later, since partial-day reporting is never trusted. The result is sorted
// by date and is what gets published as the location's raw table.
func CleanObservations(obs []Observation, today time.Time) []Observation {
	today = Truncate(today)
	merged := MergeVaccineRows(obs)
	out := merged[:0]
	for _, o := range merged {
		if o.Date.Before(today) {
			out = append(out, o)
		}
	}
	return out
}

// Derive runs the gap-filling chain on rows of one location: grid, zero-fill,
// forward-fill, raw deltas and the smoothed rate.
func Derive(rows []Row) []Row {
	rows = Grid(rows)
	if len(rows) == 0 {
		return nil
	}

	// Interpolation runs on the sparse total, before any fill.
	interpolated := Interpolate(counterValues(rows, totalVaccinations))

	rows = ForwardFill(ZeroFillUnreported(rows))

	raw := Deltas(rows, totalVaccinations)
	smoothed := Smooth(floatDeltas(interpolated))
	for i := range rows {
		rows[i].NewVaccinations = raw[i]
		rows[i].NewVaccinationsSmoothed = smoothed[i]
	}
	return rows
}

// TrimLeading drops rows, in date order, until the first one carrying any
// counter. The result is sorted by date.
func TrimLeading(rows []Row) []Row {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Row) int { return a.Date.Compare(b.Date) })
	for i, r := range sorted {
		if !r.Counters.empty() {
			return sorted[i:]
		}
	}
	return nil
}

// MergeVaccineRows collapses observations that share a date, as produced by
// sources reporting one row per vaccine: counters are summed (nil when no row
// knows the counter), vaccine names are unioned and the last source URL wins.
// The result is sorted by date.
func MergeVaccineRows(obs []Observation) []Observation {
	byDate := make(map[time.Time]int, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		i, ok := byDate[o.Date]
		if !ok {
			byDate[o.Date] = len(out)
			out = append(out, o)
			continue
		}
		m := &out[i]
		m.Vaccine = JoinVaccines(append(SplitVaccines(m.Vaccine), SplitVaccines(o.Vaccine)...))
		if o.SourceURL != "" {
			m.SourceURL = o.SourceURL
		}
		m.TotalVaccinations = addNullable(m.TotalVaccinations, o.TotalVaccinations)
		m.PeopleVaccinated = addNullable(m.PeopleVaccinated, o.PeopleVaccinated)
		m.PeopleFullyVaccinated = addNullable(m.PeopleFullyVaccinated, o.PeopleFullyVaccinated)
	}
	slices.SortStableFunc(out, func(a, b Observation) int { return a.Date.Compare(b.Date) })
	return out
}

func addNullable(a, b *int64) *int64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return ptr(*b)
	case b == nil:
		return ptr(*a)
	default:
		return ptr(*a + *b)
	}
}
