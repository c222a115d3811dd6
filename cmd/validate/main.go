// Command validate re-reads a published output directory and checks the
// invariants of the dataset: grid completeness, presence monotonicity of the
// cumulative counters, World summation and zero-vs-null semantics.
//
// Usage:
//
//	go run ./cmd/validate -output-dir data/output
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/export"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/source"
	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outputDir := flag.String("output-dir", "", "directory written by the etl command")
	geographyFile := flag.String("geography", "", "geography YAML used by the run (default: embedded)")
	flag.Parse()

	if *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*outputDir, *geographyFile, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(outputDir, geographyFile string, out io.Writer) int {
	fmt.Fprintln(out, "=== Vaccination Dataset Validation ===")
	fmt.Fprintln(out)

	geo, err := source.LoadGeography(geographyFile)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load geography: %v\n", err)
		return 1
	}

	long, err := loadCSV(filepath.Join(outputDir, export.LongTableFile))
	if err != nil {
		fmt.Fprintf(out, "FATAL: load long table: %v\n", err)
		return 1
	}
	locations, err := loadCSV(filepath.Join(outputDir, export.LocationsFile))
	if err != nil {
		fmt.Fprintf(out, "FATAL: load locations: %v\n", err)
		return 1
	}

	schema := &phase{name: "Phase 1: Schema"}
	byLocation := parseLongTable(schema, long)
	published := realLocations(locations)

	phases := []*phase{
		schema,
		validateGrid(byLocation),
		validateMonotonicPresence(byLocation),
		validateWorldSum(byLocation, published, geo),
		validateZeroVsNull(byLocation),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d long table, %d locations, %d series\n", len(long.rows), len(locations.rows), len(byLocation))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

type csvTable struct {
	header []string
	rows   []csvRow
}

func loadCSV(path string) (csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return csvTable{}, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return csvTable{}, err
	}
	if len(all) == 0 {
		return csvTable{}, fmt.Errorf("no header in %s", path)
	}

	t := csvTable{header: all[0]}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(t.header))
		for j, h := range t.header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		t.rows = append(t.rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return t, nil
}

// locationRows holds the parsed long-table rows of one location in file order.
type locationRows struct {
	location string
	records  []domain.Record
	lines    []int
}

func parseLongTable(p *phase, t csvTable) []*locationRows {
	if !slices.Equal(t.header, export.LongColumns) {
		p.errorf("header: expected %v, got %v", export.LongColumns, t.header)
		return nil
	}

	var out []*locationRows
	index := make(map[string]*locationRows)
	for _, row := range t.rows {
		rec, err := parseRecord(row.fields)
		if err != nil {
			p.errorf("line %d: %v", row.lineNum, err)
			continue
		}
		lr, ok := index[rec.Location]
		if !ok {
			lr = &locationRows{location: rec.Location}
			index[rec.Location] = lr
			out = append(out, lr)
		}
		lr.records = append(lr.records, rec)
		lr.lines = append(lr.lines, row.lineNum)
	}
	return out
}

func parseRecord(f map[string]string) (domain.Record, error) {
	if f["location"] == "" {
		return domain.Record{}, fmt.Errorf("empty location")
	}
	date, err := time.Parse(time.DateOnly, f["date"])
	if err != nil {
		return domain.Record{}, fmt.Errorf("date %q: %w", f["date"], err)
	}
	rec := domain.Record{
		Location:  f["location"],
		ISOCode:   f["iso_code"],
		Date:      date,
		Vaccine:   f["vaccine"],
		SourceURL: f["source_url"],
	}
	ints := []struct {
		col string
		dst **int64
	}{
		{"total_vaccinations", &rec.TotalVaccinations},
		{"people_vaccinated", &rec.PeopleVaccinated},
		{"people_fully_vaccinated", &rec.PeopleFullyVaccinated},
		{"daily_vaccinations_raw", &rec.DailyVaccinationsRaw},
		{"daily_vaccinations", &rec.DailyVaccinations},
		{"daily_vaccinations_per_million", &rec.DailyVaccinationsPerMillion},
	}
	for _, c := range ints {
		if v := f[c.col]; v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return domain.Record{}, fmt.Errorf("%s %q: not an integer", c.col, v)
			}
			*c.dst = &n
		}
	}
	floats := []struct {
		col string
		dst **float64
	}{
		{"total_vaccinations_per_hundred", &rec.TotalVaccinationsPerHundred},
		{"people_vaccinated_per_hundred", &rec.PeopleVaccinatedPerHundred},
		{"people_fully_vaccinated_per_hundred", &rec.PeopleFullyVaccinatedPerHundred},
	}
	for _, c := range floats {
		if v := f[c.col]; v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return domain.Record{}, fmt.Errorf("%s %q: not a number", c.col, v)
			}
			*c.dst = &x
		}
	}
	return rec, nil
}

func realLocations(t csvTable) map[string]bool {
	out := make(map[string]bool, len(t.rows))
	for _, row := range t.rows {
		out[row.fields["location"]] = true
	}
	return out
}

// ── Phase 2: Grid completeness ──
// Every location has exactly one row per day between its first and last date.

func validateGrid(locations []*locationRows) *phase {
	p := &phase{name: "Phase 2: Grid completeness"}
	for _, lr := range locations {
		for i := 1; i < len(lr.records); i++ {
			prev, cur := lr.records[i-1].Date, lr.records[i].Date
			if !cur.Equal(prev.AddDate(0, 0, 1)) {
				p.errorf("%s line %d: %s follows %s", lr.location, lr.lines[i], cur.Format(time.DateOnly), prev.Format(time.DateOnly))
			}
		}
	}
	return p
}

// ── Phase 3: Presence monotonicity ──
// Once a cumulative counter is known for a location it stays known.

func validateMonotonicPresence(locations []*locationRows) *phase {
	p := &phase{name: "Phase 3: Presence monotonicity"}
	counters := []struct {
		name string
		get  func(domain.Record) *int64
	}{
		{"total_vaccinations", func(r domain.Record) *int64 { return r.TotalVaccinations }},
		{"people_vaccinated", func(r domain.Record) *int64 { return r.PeopleVaccinated }},
	}
	for _, lr := range locations {
		for _, c := range counters {
			seen := false
			for i, r := range lr.records {
				v := c.get(r)
				if v != nil {
					seen = true
				} else if seen {
					p.errorf("%s line %d: %s missing after first report", lr.location, lr.lines[i], c.name)
					break
				}
			}
		}
	}
	return p
}

// ── Phase 4: World summation ──
// World equals the forward-filled sum of every real, non-subnational location.

func validateWorldSum(locations []*locationRows, published map[string]bool, geo domain.Geography) *phase {
	p := &phase{name: "Phase 4: World summation"}

	var world *locationRows
	var members []*locationRows
	for _, lr := range locations {
		_, subnational := geo.Subnational[lr.location]
		switch {
		case lr.location == domain.World:
			world = lr
		case published[lr.location] && !subnational:
			members = append(members, lr)
		}
	}
	if world == nil {
		if len(members) > 0 {
			p.errorf("no %s series", domain.World)
		}
		return p
	}

	for i, w := range world.records {
		var want int64
		for _, m := range members {
			if v := totalAsOf(m.records, w.Date); v != nil {
				want += *v
			}
		}
		if w.TotalVaccinations == nil || *w.TotalVaccinations != want {
			got := "null"
			if w.TotalVaccinations != nil {
				got = strconv.FormatInt(*w.TotalVaccinations, 10)
			}
			p.errorf("line %d: %s total on %s is %s, members sum to %d",
				world.lines[i], domain.World, w.Date.Format(time.DateOnly), got, want)
		}
	}
	return p
}

// totalAsOf returns the last known total at or before date.
func totalAsOf(records []domain.Record, date time.Time) *int64 {
	var last *int64
	for _, r := range records {
		if r.Date.After(date) {
			break
		}
		if r.TotalVaccinations != nil {
			last = r.TotalVaccinations
		}
	}
	return last
}

// ── Phase 5: Zero vs null ──
// Untracked second doses are published as null, never as zero, and the
// smoothed rate stays plausible.

func validateZeroVsNull(locations []*locationRows) *phase {
	p := &phase{name: "Phase 5: Zero vs null"}
	for _, lr := range locations {
		for i, r := range lr.records {
			if r.PeopleFullyVaccinated != nil && *r.PeopleFullyVaccinated == 0 {
				p.errorf("%s line %d: people_fully_vaccinated is 0", lr.location, lr.lines[i])
			}
			if r.PeopleFullyVaccinated == nil && r.PeopleFullyVaccinatedPerHundred != nil {
				p.errorf("%s line %d: per-hundred value without people_fully_vaccinated", lr.location, lr.lines[i])
			}
			if r.DailyVaccinationsPerMillion != nil && *r.DailyVaccinationsPerMillion > domain.MaxDailyVaccinationsPerMillion {
				p.errorf("%s line %d: daily_vaccinations_per_million %d above %d",
					lr.location, lr.lines[i], *r.DailyVaccinationsPerMillion, domain.MaxDailyVaccinationsPerMillion)
			}
		}
	}
	return p
}
