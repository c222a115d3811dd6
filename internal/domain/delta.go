package domain

// Deltas returns get(rows[i]) - get(rows[i-1]) for each row whose date is
// exactly one day after its predecessor and where both values are known.
// The first row never has a delta. Negative deltas are kept.
func Deltas(rows []Row, get func(Row) *int64) []*int64 {
	out := make([]*int64, len(rows))
	for i := 1; i < len(rows); i++ {
		if !rows[i].Date.Equal(rows[i-1].Date.Add(day)) {
			continue
		}
		cur, prev := get(rows[i]), get(rows[i-1])
		if cur == nil || prev == nil {
			continue
		}
		out[i] = ptr(*cur - *prev)
	}
	return out
}

// floatDeltas is the float64 counterpart of Deltas used on interpolated
// values, which lie on a contiguous grid by construction.
func floatDeltas(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i] == nil || values[i-1] == nil {
			continue
		}
		out[i] = ptr(*values[i] - *values[i-1])
	}
	return out
}

func totalVaccinations(r Row) *int64 { return r.TotalVaccinations }
