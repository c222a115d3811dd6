package domain

import (
	"errors"
	"fmt"
	"time"
)

// CheckSanity verifies the fully transformed series: cumulative counters and
// smoothed rates must not be negative, and the smoothed per-million rate must
// stay below MaxDailyVaccinationsPerMillion. Every violation is reported,
// each wrapping ErrSanity.
func CheckSanity(series []Series) error {
	var errs []error
	for _, s := range series {
		for _, r := range s.Rows {
			where := s.Location + " " + r.Date.Format(time.DateOnly)
			for _, c := range []struct {
				name string
				v    *int64
			}{
				{"total_vaccinations", r.TotalVaccinations},
				{"people_vaccinated", r.PeopleVaccinated},
				{"people_fully_vaccinated", r.PeopleFullyVaccinated},
				{"daily_vaccinations", r.NewVaccinationsSmoothed},
			} {
				if c.v != nil && *c.v < 0 {
					errs = append(errs, fmt.Errorf("%w: %s: negative %s (%d)", ErrSanity, where, c.name, *c.v))
				}
			}
			if v := r.DailyVaccinationsPerMillion; v != nil && *v > MaxDailyVaccinationsPerMillion {
				errs = append(errs, fmt.Errorf("%w: %s: daily_vaccinations_per_million %d exceeds %d",
					ErrSanity, where, *v, MaxDailyVaccinationsPerMillion))
			}
		}
	}
	return errors.Join(errs...)
}
