package domain

import (
	"fmt"
	"time"
)

// Counters holds the three cumulative counters of a report. Nil means unknown.
type Counters struct {
	TotalVaccinations     *int64 `json:"total_vaccinations,omitempty"`
	PeopleVaccinated      *int64 `json:"people_vaccinated,omitempty"`
	PeopleFullyVaccinated *int64 `json:"people_fully_vaccinated,omitempty"`
}

// empty reports whether no counter is known.
func (c Counters) empty() bool {
	return c.TotalVaccinations == nil && c.PeopleVaccinated == nil && c.PeopleFullyVaccinated == nil
}

// Observation is one row of a location's raw table.
type Observation struct {
	Location  string
	Date      time.Time // UTC midnight
	Vaccine   string    // comma-joined brands, may be empty
	SourceURL string
	Counters
}

// PerCapita holds the population-normalized metrics of a row.
type PerCapita struct {
	TotalVaccinationsPerHundred     *float64
	PeopleVaccinatedPerHundred      *float64
	PeopleFullyVaccinatedPerHundred *float64
	DailyVaccinationsPerMillion     *int64
}

// Row is one day of a reconstructed series.
type Row struct {
	Observation

	// NewVaccinations is the day-over-day change of the forward-filled total
	// (published as daily_vaccinations_raw).
	NewVaccinations *int64
	// NewVaccinationsSmoothed is the adaptive trailing mean of interpolated
	// daily changes (published as daily_vaccinations).
	NewVaccinationsSmoothed *int64

	PerCapita
}

// Series is the ordered daily rows of one location, real or aggregate.
type Series struct {
	Location string
	Rows     []Row
}

// LastDate returns the date of the final row, or the zero time for an empty series.
func (s Series) LastDate() time.Time {
	if len(s.Rows) == 0 {
		return time.Time{}
	}
	return s.Rows[len(s.Rows)-1].Date
}

// Metadata describes one real location and governs whether it enters the run.
type Metadata struct {
	Location   string
	Automated  bool
	Include    bool
	SourceName string
	SourceURL  string
}

// Geography carries the reporting relationships between locations.
type Geography struct {
	// Subnational maps reporting units that belong to a country which is
	// already counted (England -> United Kingdom). They never enter World
	// and are not counted in coverage.
	Subnational map[string]string `yaml:"subnational" validate:"dive,keys,required,endkeys,required"`
	// PopulationFolds maps territories whose population is published as part
	// of a parent (Guam -> United States).
	PopulationFolds map[string]string `yaml:"population_folds" validate:"dive,keys,required,endkeys,required"`
	// Aggregates lists extra synthetic locations on top of the defaults.
	Aggregates []AggregateSpec `yaml:"aggregates" validate:"dive"`
}

// IsSubnational reports whether a location is a subnational unit or a folded territory.
func (g Geography) IsSubnational(location string) bool {
	if _, ok := g.Subnational[location]; ok {
		return true
	}
	_, ok := g.PopulationFolds[location]
	return ok
}

// Inputs is everything the pipeline reads before transforming.
type Inputs struct {
	Metadata     []Metadata
	Observations map[string][]Observation
	Population   Population
	Continents   map[string]string // location -> continent
	EUMembers    []string
	ISOCodes     map[string]string
	Geography    Geography
}

// Coverage summarizes how much of the world the real locations represent.
type Coverage struct {
	Locations            int
	WorldPopulationShare float64 // percent
}

// Dataset is the transformed output handed to loaders.
type Dataset struct {
	RunID       string
	GeneratedAt time.Time
	Metadata    []Metadata
	// Raw holds the validated observations per real location, partial day removed.
	Raw        map[string][]Observation
	Series     []Series // real locations in metadata order, then aggregates
	ISOCodes   map[string]string
	Aggregates map[string]bool
	Coverage   Coverage
}

// IsAggregate reports whether the named location is synthetic.
func (d Dataset) IsAggregate(location string) bool {
	return d.Aggregates[location]
}

func ptr[T any](v T) *T { return &v }

// Validate checks map keys and values are non-empty and every extra
// aggregate is well formed.
func (g Geography) Validate() error {
	specs := make([]AggregateSpec, len(g.Aggregates))
	for i, s := range g.Aggregates {
		specs[i] = s.normalized()
	}
	g.Aggregates = specs
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: geography: %v", ErrInvalidAggregate, err)
	}
	return nil
}
