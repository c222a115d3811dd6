package domain

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// MaxDailyVaccinationsPerMillion is the plausibility ceiling for the smoothed
// per-million rate.
const MaxDailyVaccinationsPerMillion = 120_000

// Population maps locations to their population. Territories folded into a
// parent have no entry of their own and resolve to the parent.
type Population struct {
	counts  map[string]int64
	parents map[string]string
}

// NewPopulation builds a population table, adding each folded territory's
// population to its parent and removing the territory entry.
func NewPopulation(counts map[string]int64, folds map[string]string) Population {
	p := Population{
		counts:  maps.Clone(counts),
		parents: maps.Clone(folds),
	}
	if p.counts == nil {
		p.counts = make(map[string]int64)
	}
	for territory, parent := range folds {
		if n, ok := p.counts[territory]; ok {
			p.counts[parent] += n
			delete(p.counts, territory)
		}
	}
	return p
}

// Lookup returns the population used for location, resolving folded territories.
func (p Population) Lookup(location string) (int64, bool) {
	if parent, ok := p.parents[location]; ok {
		location = parent
	}
	n, ok := p.counts[location]
	return n, ok
}

// Has reports whether location has an entry of its own.
func (p Population) Has(location string) bool {
	_, ok := p.counts[location]
	return ok
}

// Locations returns the sorted names with an entry of their own.
func (p Population) Locations() []string {
	return slices.Sorted(maps.Keys(p.counts))
}

// DerivePerCapita joins every series to its population and fills the
// per-hundred and per-million metrics. A fully-vaccinated count of exactly 0
// is a zero-fill placeholder and is nulled together with its per-hundred
// value. It also returns the coverage of real, non-subnational locations
// relative to World.
func DerivePerCapita(series []Series, pop Population, geo Geography, aggregates map[string]bool) ([]Series, Coverage, error) {
	var missing []error
	out := make([]Series, len(series))

	for i, s := range series {
		n, ok := pop.Lookup(s.Location)
		if !ok || n <= 0 {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingPopulation, s.Location))
			continue
		}
		rows := slices.Clone(s.Rows)
		for j := range rows {
			rows[j].PerCapita = perCapita(rows[j], float64(n))
			if f := rows[j].PeopleFullyVaccinated; f != nil && *f == 0 {
				rows[j].PeopleFullyVaccinated = nil
				rows[j].PeopleFullyVaccinatedPerHundred = nil
			}
		}
		out[i] = Series{Location: s.Location, Rows: rows}
	}
	if len(missing) > 0 {
		return nil, Coverage{}, errors.Join(missing...)
	}

	cov, err := coverage(series, pop, geo, aggregates)
	if err != nil {
		return nil, Coverage{}, err
	}
	return out, cov, nil
}

func perCapita(r Row, population float64) PerCapita {
	return PerCapita{
		TotalVaccinationsPerHundred:     perHundred(r.TotalVaccinations, population),
		PeopleVaccinatedPerHundred:      perHundred(r.PeopleVaccinated, population),
		PeopleFullyVaccinatedPerHundred: perHundred(r.PeopleFullyVaccinated, population),
		DailyVaccinationsPerMillion:     perMillion(r.NewVaccinationsSmoothed, population),
	}
}

func perHundred(v *int64, population float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(math.Round(float64(*v)*100/population*100) / 100)
}

func perMillion(v *int64, population float64) *int64 {
	if v == nil {
		return nil
	}
	return ptr(int64(math.Round(float64(*v) * 1_000_000 / population)))
}

func coverage(series []Series, pop Population, geo Geography, aggregates map[string]bool) (Coverage, error) {
	world, ok := pop.Lookup(World)
	if !ok || world <= 0 {
		return Coverage{}, fmt.Errorf("%w: %s", ErrMissingPopulation, World)
	}

	var cov Coverage
	var covered int64
	for _, s := range series {
		if aggregates[s.Location] || geo.IsSubnational(s.Location) {
			continue
		}
		n, _ := pop.Lookup(s.Location)
		cov.Locations++
		covered += n
	}
	cov.WorldPopulationShare = float64(covered) / float64(world) * 100
	return cov, nil
}
