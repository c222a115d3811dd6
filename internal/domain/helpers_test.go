package domain

import (
	"time"
)

var day0 = time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC)

// dayN returns day0 shifted by n days.
func dayN(n int) time.Time { return day0.AddDate(0, 0, n) }

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

// obs builds an observation with only a total.
func obs(location string, n int, total int64) Observation {
	return Observation{
		Location: location,
		Date:     dayN(n),
		Counters: Counters{TotalVaccinations: i64(total)},
	}
}

// obs3 builds an observation with all three counters.
func obs3(location string, n int, total, people, fully int64) Observation {
	return Observation{
		Location: location,
		Date:     dayN(n),
		Counters: Counters{
			TotalVaccinations:     i64(total),
			PeopleVaccinated:      i64(people),
			PeopleFullyVaccinated: i64(fully),
		},
	}
}

// values dereferences a column, mapping nil to -1 for compact assertions.
func values(rows []Row, get func(Row) *int64) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		if v := get(r); v != nil {
			out[i] = *v
		} else {
			out[i] = -1
		}
	}
	return out
}

func total(r Row) *int64    { return r.TotalVaccinations }
func people(r Row) *int64   { return r.PeopleVaccinated }
func fully(r Row) *int64    { return r.PeopleFullyVaccinated }
func raw(r Row) *int64      { return r.NewVaccinations }
func smoothed(r Row) *int64 { return r.NewVaccinationsSmoothed }
