package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time { return time.Date(2021, time.January, 1+n, 0, 0, 0, 0, time.UTC) }

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

// testDataset has one real location over two days and a World aggregate.
func testDataset() domain.Dataset {
	chileRaw := []domain.Observation{
		{Location: "Chile", Date: day(3), Vaccine: "Pfizer/BioNTech", SourceURL: "https://www.minsal.cl/", Counters: domain.Counters{TotalVaccinations: i64(100)}},
		{Location: "Chile", Date: day(4), Vaccine: "Pfizer/BioNTech, Sinovac", SourceURL: "https://www.minsal.cl/", Counters: domain.Counters{TotalVaccinations: i64(250), PeopleVaccinated: i64(200)}},
	}
	chile := domain.Series{Location: "Chile", Rows: []domain.Row{
		{
			Observation: chileRaw[0],
			PerCapita:   domain.PerCapita{TotalVaccinationsPerHundred: f64(0.01)},
		},
		{
			Observation:             chileRaw[1],
			NewVaccinations:         i64(150),
			NewVaccinationsSmoothed: i64(150),
			PerCapita:               domain.PerCapita{TotalVaccinationsPerHundred: f64(0.03), PeopleVaccinatedPerHundred: f64(0.02), DailyVaccinationsPerMillion: i64(15)},
		},
	}}
	world := domain.Series{Location: "World", Rows: []domain.Row{
		{Observation: domain.Observation{Location: "World", Date: day(3), Counters: domain.Counters{TotalVaccinations: i64(100)}}},
	}}
	return domain.Dataset{
		RunID:       "run-42",
		GeneratedAt: time.Date(2021, time.January, 6, 8, 0, 0, 0, time.UTC),
		Metadata: []domain.Metadata{
			{Location: "Chile", Include: true, SourceName: "Ministry of Health", SourceURL: "https://www.minsal.cl/"},
		},
		Raw:        map[string][]domain.Observation{"Chile": chileRaw},
		Series:     []domain.Series{chile, world},
		ISOCodes:   map[string]string{"Chile": "CHL"},
		Aggregates: map[string]bool{"World": true},
		Coverage:   domain.Coverage{Locations: 1, WorldPopulationShare: 12.5},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_Load(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "files", w.Name())

	require.NoError(t, w.Load(context.Background(), testDataset()))

	raw := readCSV(t, filepath.Join(dir, CountryDataDir, "Chile.csv"))
	require.Len(t, raw, 3)
	assert.Equal(t, RawColumns, raw[0])
	assert.Equal(t, []string{"Chile", "2021-01-05", "Pfizer/BioNTech, Sinovac", "https://www.minsal.cl/", "250", "200", ""}, raw[2])

	long := readCSV(t, filepath.Join(dir, LongTableFile))
	require.Len(t, long, 4)
	assert.Equal(t, LongColumns, long[0])
	assert.Equal(t, []string{
		"Chile", "CHL", "2021-01-05", "Pfizer/BioNTech, Sinovac", "https://www.minsal.cl/",
		"250", "200", "", "150", "150", "15", "0.03", "0.02", "",
	}, long[2])
	assert.Equal(t, "World", long[3][0])
	assert.Empty(t, long[3][1])

	grapher := readCSV(t, filepath.Join(dir, GrapherFile))
	require.Len(t, grapher, 4)
	assert.Equal(t, []string{"Country", "Year"}, grapher[0][:2])
	assert.Len(t, grapher[0], 2+len(metricColumns))
	assert.Equal(t, []string{"Chile", "3"}, grapher[1][:2])

	locations := readCSV(t, filepath.Join(dir, LocationsFile))
	require.Len(t, locations, 2)
	assert.Equal(t, []string{"Chile", "CHL", "Pfizer/BioNTech, Sinovac", "2021-01-05", "Ministry of Health", "https://www.minsal.cl/"}, locations[1])

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	var docs []CountryDocument
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 1, "World has no ISO code")
	assert.Equal(t, "CHL", docs[0].ISOCode)
	require.Len(t, docs[0].Data, 2)
	assert.Equal(t, "2021-01-04", docs[0].Data[0].Date)
	assert.NotContains(t, string(data), "people_fully_vaccinated\"")

	report, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "run-42")
	assert.Contains(t, string(report), "Locations with data: 1")
	assert.Contains(t, string(report), "Share of world population: 12.50%")
	assert.Contains(t, string(report), "Aggregates: World;")
	assert.Contains(t, string(report), "| Chile | Pfizer/BioNTech, Sinovac | 2021-01-05 |")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "temporary file left behind: %s", e.Name())
	}
}

func TestWriter_Load_ReplacesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LongTableFile), []byte("stale"), 0o644))
	w := NewWriter(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, w.Load(context.Background(), testDataset()))

	data, err := os.ReadFile(filepath.Join(dir, LongTableFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "location,iso_code,date"))
}

func TestWriter_Load_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWriter(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := w.Load(ctx, testDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrapherYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC), 9},
		{time.Date(2020, time.December, 15, 0, 0, 0, 0, time.UTC), -17},
		{time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC), 59},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format(dateLayout), func(t *testing.T) {
			assert.Equal(t, tt.want, GrapherYear(tt.date))
		})
	}
}

func TestCountryDocuments_GroupsByLocation(t *testing.T) {
	records := []domain.Record{
		{Location: "A", ISOCode: "AAA", Date: day(0)},
		{Location: "A", ISOCode: "AAA", Date: day(1)},
		{Location: "Europe", Date: day(0)},
		{Location: "B", ISOCode: "BBB", Date: day(0)},
	}

	docs := CountryDocuments(records)

	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Country)
	assert.Len(t, docs[0].Data, 2)
	assert.Equal(t, "B", docs[1].Country)
}
