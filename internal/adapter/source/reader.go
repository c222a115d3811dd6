package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Input table names relative to the input root.
const (
	MetadataFile   = "metadata.csv"
	PopulationFile = "population.csv"
	ContinentsFile = "continents.csv"
	EUFile         = "eu_countries.csv"
	ISOCodesFile   = "iso_codes.csv"
)

var (
	metadataColumns    = []string{"location", "automated", "include", "source_name", "source_url"}
	observationColumns = []string{
		"location", "date", "vaccine", "source_url",
		"total_vaccinations", "people_vaccinated", "people_fully_vaccinated",
	}
	requiredObservationColumns = []string{"location", "date", "source_url", "total_vaccinations"}
)

// LocationFile returns the name of a location's raw table: automated sources
// live under automated/, manually curated ones under manual/.
func LocationFile(m domain.Metadata) string {
	dir := "manual"
	if m.Automated {
		dir = "automated"
	}
	return dir + "/" + m.Location + ".csv"
}

// Reader reads every input table of a run through an Opener.
// It implements pipeline.Extractor.
type Reader struct {
	opener        Opener
	geographyFile string
	workers       int
	logger        *slog.Logger
}

// NewReader creates a Reader. geographyFile overrides the embedded geography
// when non-empty. workers bounds concurrent per-location reads.
func NewReader(opener Opener, geographyFile string, workers int, logger *slog.Logger) *Reader {
	if workers < 1 {
		workers = 1
	}
	return &Reader{opener: opener, geographyFile: geographyFile, workers: workers, logger: logger}
}

// Extract reads metadata, reference tables and the raw table of every
// included location.
func (r *Reader) Extract(ctx context.Context) (domain.Inputs, error) {
	geo, err := LoadGeography(r.geographyFile)
	if err != nil {
		return domain.Inputs{}, err
	}

	meta, err := r.readMetadata(ctx)
	if err != nil {
		return domain.Inputs{}, err
	}
	population, err := r.readPopulation(ctx)
	if err != nil {
		return domain.Inputs{}, err
	}
	continents, err := r.readPairs(ctx, ContinentsFile, "continent")
	if err != nil {
		return domain.Inputs{}, err
	}
	isoCodes, err := r.readPairs(ctx, ISOCodesFile, "iso_code")
	if err != nil {
		return domain.Inputs{}, err
	}
	euMembers, err := r.readList(ctx, EUFile)
	if err != nil {
		return domain.Inputs{}, err
	}
	observations, err := r.readObservations(ctx, meta)
	if err != nil {
		return domain.Inputs{}, err
	}

	r.logger.Info("inputs read",
		"locations", len(observations),
		"population_entries", len(population),
		"eu_members", len(euMembers),
	)
	return domain.Inputs{
		Metadata:     meta,
		Observations: observations,
		Population:   domain.NewPopulation(population, geo.PopulationFolds),
		Continents:   continents,
		EUMembers:    euMembers,
		ISOCodes:     isoCodes,
		Geography:    geo,
	}, nil
}

func (r *Reader) open(ctx context.Context, name string, allowed, required []string) (*table, error) {
	rc, err := r.opener.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readTable(rc, name, allowed, required)
}

// readMetadata returns the metadata rows ordered by location.
func (r *Reader) readMetadata(ctx context.Context) ([]domain.Metadata, error) {
	t, err := r.open(ctx, MetadataFile, metadataColumns, metadataColumns)
	if err != nil {
		return nil, err
	}

	var errs []error
	seen := make(map[string]bool, len(t.rows))
	out := make([]domain.Metadata, 0, len(t.rows))
	for i, row := range t.rows {
		m := domain.Metadata{
			Location:   t.get(row, "location"),
			SourceName: t.get(row, "source_name"),
			SourceURL:  t.get(row, "source_url"),
		}
		if m.Location == "" {
			errs = append(errs, t.rowError(i, "empty location"))
			continue
		}
		if seen[m.Location] {
			errs = append(errs, t.rowError(i, "duplicate location %q", m.Location))
			continue
		}
		seen[m.Location] = true

		var err error
		if m.Automated, err = strconv.ParseBool(t.get(row, "automated")); err != nil {
			errs = append(errs, t.rowError(i, "invalid automated flag %q", t.get(row, "automated")))
		}
		if m.Include, err = strconv.ParseBool(t.get(row, "include")); err != nil {
			errs = append(errs, t.rowError(i, "invalid include flag %q", t.get(row, "include")))
		}
		out = append(out, m)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b domain.Metadata) int { return strings.Compare(a.Location, b.Location) })
	return out, nil
}

func (r *Reader) readPopulation(ctx context.Context) (map[string]int64, error) {
	cols := []string{"location", "population"}
	t, err := r.open(ctx, PopulationFile, cols, cols)
	if err != nil {
		return nil, err
	}

	var errs []error
	out := make(map[string]int64, len(t.rows))
	for i, row := range t.rows {
		loc := t.get(row, "location")
		n, err := parseCount(t.get(row, "population"))
		switch {
		case loc == "":
			errs = append(errs, t.rowError(i, "empty location"))
		case err != nil:
			errs = append(errs, t.rowError(i, "%s: %v", loc, err))
		case n == nil:
			errs = append(errs, t.rowError(i, "%s: empty population", loc))
		default:
			out[loc] = *n
		}
	}
	return out, errors.Join(errs...)
}

// readPairs reads a location -> value table.
func (r *Reader) readPairs(ctx context.Context, name, valueColumn string) (map[string]string, error) {
	cols := []string{"location", valueColumn}
	t, err := r.open(ctx, name, cols, cols)
	if err != nil {
		return nil, err
	}

	var errs []error
	out := make(map[string]string, len(t.rows))
	for i, row := range t.rows {
		loc, v := t.get(row, "location"), t.get(row, valueColumn)
		if loc == "" || v == "" {
			errs = append(errs, t.rowError(i, "empty location or %s", valueColumn))
			continue
		}
		if prev, ok := out[loc]; ok && prev != v {
			errs = append(errs, t.rowError(i, "%s: conflicting %s %q and %q", loc, valueColumn, prev, v))
			continue
		}
		out[loc] = v
	}
	return out, errors.Join(errs...)
}

// readList reads a single-column list of locations.
func (r *Reader) readList(ctx context.Context, name string) ([]string, error) {
	cols := []string{"location"}
	t, err := r.open(ctx, name, cols, cols)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		if loc := t.get(row, "location"); loc != "" && !slices.Contains(out, loc) {
			out = append(out, loc)
		}
	}
	return out, nil
}

// readObservations reads the raw table of every included location
// concurrently. Schema violations of all files are reported together.
func (r *Reader) readObservations(ctx context.Context, meta []domain.Metadata) (map[string][]domain.Observation, error) {
	var included []domain.Metadata
	for _, m := range meta {
		if m.Include {
			included = append(included, m)
		}
	}

	results := make([][]domain.Observation, len(included))
	schemaErrs := make([]error, len(included))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, m := range included {
		g.Go(func() error {
			obs, err := r.readLocation(gctx, m)
			if errors.Is(err, domain.ErrSchema) {
				schemaErrs[i] = err
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", m.Location, err)
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(schemaErrs...); err != nil {
		return nil, err
	}

	out := make(map[string][]domain.Observation, len(included))
	for i, m := range included {
		out[m.Location] = results[i]
	}
	return out, nil
}

func (r *Reader) readLocation(ctx context.Context, m domain.Metadata) ([]domain.Observation, error) {
	name := LocationFile(m)
	t, err := r.open(ctx, name, observationColumns, requiredObservationColumns)
	if err != nil {
		return nil, err
	}

	var errs []error
	out := make([]domain.Observation, 0, len(t.rows))
	for i, row := range t.rows {
		o := domain.Observation{
			Location:  t.get(row, "location"),
			Vaccine:   t.get(row, "vaccine"),
			SourceURL: t.get(row, "source_url"),
		}
		var err error
		if o.Date, err = parseDate(t.get(row, "date")); err != nil {
			errs = append(errs, t.rowError(i, "%v", err))
			continue
		}
		for _, c := range []struct {
			col string
			dst **int64
		}{
			{"total_vaccinations", &o.TotalVaccinations},
			{"people_vaccinated", &o.PeopleVaccinated},
			{"people_fully_vaccinated", &o.PeopleFullyVaccinated},
		} {
			if *c.dst, err = parseCount(t.get(row, c.col)); err != nil {
				errs = append(errs, t.rowError(i, "%s: %v", c.col, err))
			}
		}
		out = append(out, o)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	r.logger.Debug("location table read", "location", m.Location, "file", name, "rows", len(out))
	return out, nil
}
