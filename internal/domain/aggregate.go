package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// Well-known aggregate names.
const (
	World         = "World"
	EuropeanUnion = "European Union"
)

var validate = validator.New()

// AggregateSpec defines a synthetic location by an include list or by an
// exclude list applied to every other real location, never both. A spec with
// neither list excludes nothing. An empty list counts as absent.
type AggregateSpec struct {
	Name              string   `yaml:"name" validate:"required"`
	IncludedLocations []string `yaml:"included_locations" validate:"excluded_with=ExcludedLocations"`
	ExcludedLocations []string `yaml:"excluded_locations" validate:"excluded_with=IncludedLocations"`
}

// Validate checks that the spec is named and does not use both membership lists.
func (s AggregateSpec) Validate() error {
	if err := validate.Struct(s.normalized()); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAggregate, s.Name, err)
	}
	return nil
}

// normalized returns s with empty membership lists set to nil, so that
// "included_locations: []" reads the same as an omitted list.
func (s AggregateSpec) normalized() AggregateSpec {
	if len(s.IncludedLocations) == 0 {
		s.IncludedLocations = nil
	}
	if len(s.ExcludedLocations) == 0 {
		s.ExcludedLocations = nil
	}
	return s
}

// ValidateAggregates validates every spec and rejects names defined twice.
func ValidateAggregates(specs []AggregateSpec) error {
	var errs []error
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w %q: name is defined more than once", ErrInvalidAggregate, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}

// Members resolves the spec against the available real locations. Aggregate
// names are never members. The result follows the order of locations.
func (s AggregateSpec) Members(locations []string, aggregates map[string]bool) []string {
	var set map[string]bool
	if len(s.IncludedLocations) > 0 {
		set = toSet(s.IncludedLocations)
	} else {
		set = toSet(s.ExcludedLocations)
	}
	include := len(s.IncludedLocations) > 0

	var out []string
	for _, loc := range locations {
		if aggregates[loc] || loc == s.Name {
			continue
		}
		if set[loc] == include {
			out = append(out, loc)
		}
	}
	return out
}

// DefaultAggregates returns World (every real location except subnational
// units), the European Union when members are known and one aggregate per
// continent, followed by any extra aggregates from the geography.
func DefaultAggregates(continents map[string]string, euMembers []string, geo Geography) []AggregateSpec {
	specs := []AggregateSpec{
		{Name: World, ExcludedLocations: slices.Sorted(maps.Keys(geo.Subnational))},
	}
	if len(euMembers) > 0 {
		specs = append(specs, AggregateSpec{Name: EuropeanUnion, IncludedLocations: slices.Clone(euMembers)})
	}

	byContinent := make(map[string][]string)
	for loc, c := range continents {
		byContinent[c] = append(byContinent[c], loc)
	}
	for _, c := range slices.Sorted(maps.Keys(byContinent)) {
		members := byContinent[c]
		slices.Sort(members)
		specs = append(specs, AggregateSpec{Name: c, IncludedLocations: members})
	}

	return append(specs, geo.Aggregates...)
}

// AggregateNames returns the set of names defined by specs.
func AggregateNames(specs []AggregateSpec) map[string]bool {
	out := make(map[string]bool, len(specs))
	for _, s := range specs {
		out[s.Name] = true
	}
	return out
}

// BuildAggregate sums the member series of spec on the union of their dates.
// Each member is forward-filled independently on that axis and unknown values
// count as zero. A final day equal to today is dropped. The summed series then
// goes through the same derivation as a real location. It returns false when
// the spec resolves to no member with data.
func BuildAggregate(spec AggregateSpec, series []Series, aggregates map[string]bool, today time.Time) (Series, bool) {
	today = Truncate(today)

	byLocation := make(map[string]Series, len(series))
	locations := make([]string, 0, len(series))
	for _, s := range series {
		byLocation[s.Location] = s
		locations = append(locations, s.Location)
	}

	members := spec.Members(locations, aggregates)
	axis := unionDates(members, byLocation)
	if len(axis) == 0 {
		return Series{Location: spec.Name}, false
	}

	sums := make([]Counters, len(axis))
	for _, m := range members {
		for i, c := range alignForwardFilled(byLocation[m].Rows, axis) {
			sums[i].TotalVaccinations = addAsZero(sums[i].TotalVaccinations, c.TotalVaccinations)
			sums[i].PeopleVaccinated = addAsZero(sums[i].PeopleVaccinated, c.PeopleVaccinated)
			sums[i].PeopleFullyVaccinated = addAsZero(sums[i].PeopleFullyVaccinated, c.PeopleFullyVaccinated)
		}
	}

	if axis[len(axis)-1].Equal(today) {
		axis, sums = axis[:len(axis)-1], sums[:len(sums)-1]
	}
	if len(axis) == 0 {
		return Series{Location: spec.Name}, false
	}

	rows := make([]Row, len(axis))
	for i, d := range axis {
		rows[i] = Row{Observation: Observation{Location: spec.Name, Date: d, Counters: sums[i]}}
	}
	return Series{Location: spec.Name, Rows: Derive(rows)}, true
}

// unionDates returns the sorted distinct dates across the named series.
func unionDates(members []string, byLocation map[string]Series) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, m := range members {
		for _, r := range byLocation[m].Rows {
			if !seen[r.Date] {
				seen[r.Date] = true
				out = append(out, r.Date)
			}
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// alignForwardFilled places a member's counters on the axis (the cartesian
// product of one location with every date) and forward-fills the gaps.
func alignForwardFilled(rows []Row, axis []time.Time) []Counters {
	byDate := make(map[time.Time]Counters, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r.Counters
	}
	aligned := make([]Row, len(axis))
	for i, d := range axis {
		aligned[i] = Row{Observation: Observation{Date: d, Counters: byDate[d]}}
	}
	aligned = ForwardFill(aligned)

	out := make([]Counters, len(aligned))
	for i, r := range aligned {
		out[i] = r.Counters
	}
	return out
}

// addAsZero adds b to a treating nil as zero; the result is never nil.
func addAsZero(a, b *int64) *int64 {
	var sum int64
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}
