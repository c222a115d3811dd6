package domain

import (
	"errors"
	"fmt"
	"time"
)

// ValidateObservations checks the raw table of one location against the
// input contract and returns every violation joined, each wrapping ErrSchema.
func ValidateObservations(location string, obs []Observation, today time.Time) error {
	today = Truncate(today)

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrSchema, location, fmt.Sprintf(format, args...)))
	}

	type key struct {
		date    time.Time
		vaccine string
	}
	seen := make(map[key]bool, len(obs))

	for _, o := range obs {
		date := o.Date.Format(time.DateOnly)

		if o.Location == "" {
			fail("%s: empty location", date)
		} else if o.Location != location {
			fail("%s: row belongs to %q", date, o.Location)
		}

		k := key{date: o.Date, vaccine: o.Vaccine}
		if seen[k] {
			fail("%s: duplicate date", date)
		}
		seen[k] = true

		if o.Date.Before(EarliestDate) {
			fail("%s: date before %s", date, EarliestDate.Format(time.DateOnly))
		}
		if o.Date.After(today) {
			fail("%s: date in the future", date)
		}

		for _, v := range SplitVaccines(o.Vaccine) {
			if !IsKnownVaccine(v) {
				fail("%s: unknown vaccine %q", date, v)
			}
		}

		if err := checkOrdering(o.Counters); err != nil {
			fail("%s: %v", date, err)
		}
	}
	return errors.Join(errs...)
}

// checkOrdering enforces total >= people >= fully >= 0 among known counters.
func checkOrdering(c Counters) error {
	for _, f := range []struct {
		name string
		v    *int64
	}{
		{"total_vaccinations", c.TotalVaccinations},
		{"people_vaccinated", c.PeopleVaccinated},
		{"people_fully_vaccinated", c.PeopleFullyVaccinated},
	} {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("negative %s", f.name)
		}
	}
	if c.PeopleFullyVaccinated != nil && c.PeopleVaccinated != nil && *c.PeopleFullyVaccinated > *c.PeopleVaccinated {
		return errors.New("people_fully_vaccinated > people_vaccinated")
	}
	if c.PeopleVaccinated != nil && c.TotalVaccinations != nil && *c.PeopleVaccinated > *c.TotalVaccinations {
		return errors.New("people_vaccinated > total_vaccinations")
	}
	return nil
}
