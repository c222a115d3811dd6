package domain

import "slices"

// ZeroFillUnreported sets people_vaccinated and people_fully_vaccinated to 0
// on every row when the location never reported that counter. Total
// vaccinations are never zero-filled.
func ZeroFillUnreported(rows []Row) []Row {
	out := slices.Clone(rows)
	if allNil(out, func(r Row) *int64 { return r.PeopleVaccinated }) {
		for i := range out {
			out[i].PeopleVaccinated = ptr(int64(0))
		}
	}
	if allNil(out, func(r Row) *int64 { return r.PeopleFullyVaccinated }) {
		for i := range out {
			out[i].PeopleFullyVaccinated = ptr(int64(0))
		}
	}
	return out
}

func allNil(rows []Row, get func(Row) *int64) bool {
	for _, r := range rows {
		if get(r) != nil {
			return false
		}
	}
	return true
}

// ForwardFill replaces each nil counter with the nearest preceding known value
// of the same counter. Leading nils stay nil.
func ForwardFill(rows []Row) []Row {
	out := slices.Clone(rows)
	var total, people, fully *int64
	for i := range out {
		c := &out[i].Counters
		total = carry(&c.TotalVaccinations, total)
		people = carry(&c.PeopleVaccinated, people)
		fully = carry(&c.PeopleFullyVaccinated, fully)
	}
	return out
}

// carry fills *field from last when nil and returns the value to carry on.
func carry(field **int64, last *int64) *int64 {
	if *field == nil {
		if last != nil {
			*field = ptr(*last)
		}
		return last
	}
	return *field
}

// Interpolate fills nils that lie strictly between two known values by
// linear interpolation over their positions. Nils before the first or after
// the last known value stay nil.
func Interpolate(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	prev := -1
	for i, v := range values {
		if v == nil {
			continue
		}
		out[i] = ptr(*v)
		if prev >= 0 && i-prev > 1 {
			lo, hi := *values[prev], *v
			step := (hi - lo) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				out[j] = ptr(lo + step*float64(j-prev))
			}
		}
		prev = i
	}
	return out
}

// counterValues converts one counter column to float64 for interpolation.
func counterValues(rows []Row, get func(Row) *int64) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		if v := get(r); v != nil {
			out[i] = ptr(float64(*v))
		}
	}
	return out
}
