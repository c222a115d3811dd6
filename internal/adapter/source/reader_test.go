package source_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/source"
	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockInputDir = filepath.Join("..", "..", "..", "data", "mock", "input")

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// mapOpener serves input tables from memory.
type mapOpener map[string]string

func (m mapOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	s, ok := m[name]
	if !ok {
		return nil, source.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

// minimalInputs is a valid input set with a single location "Chile".
func minimalInputs() mapOpener {
	return mapOpener{
		source.MetadataFile:   "location,automated,include,source_name,source_url\nChile,true,true,Ministry of Health,https://www.minsal.cl/\n",
		source.PopulationFile: "location,population\nChile,19116209\nWorld,7794798729\n",
		source.ContinentsFile: "location,continent\nChile,South America\n",
		source.EUFile:         "location\n",
		source.ISOCodesFile:   "location,iso_code\nChile,CHL\n",
		"automated/Chile.csv": "location,date,source_url,total_vaccinations\nChile,2021-01-04,https://www.minsal.cl/,10000\n",
	}
}

func TestReader_Extract_MockData(t *testing.T) {
	r := source.NewReader(source.DirOpener{Root: mockInputDir}, "", 2, discardLogger())

	in, err := r.Extract(context.Background())
	require.NoError(t, err)

	locations := make([]string, len(in.Metadata))
	for i, m := range in.Metadata {
		locations[i] = m.Location
	}
	assert.Equal(t, []string{"Atlantis", "Chile", "England", "Fiji", "Samoa", "United Kingdom"}, locations)
	assert.False(t, in.Metadata[0].Include)
	assert.True(t, in.Metadata[1].Automated)
	assert.False(t, in.Metadata[2].Automated)

	assert.Len(t, in.Observations, 5)
	assert.NotContains(t, in.Observations, "Atlantis")
	assert.Len(t, in.Observations["Samoa"], 3, "per-vaccine rows are merged later")

	chile := in.Observations["Chile"]
	require.Len(t, chile, 4)
	assert.Equal(t, "Pfizer/BioNTech, Sinovac", chile[3].Vaccine)
	assert.Nil(t, chile[0].PeopleFullyVaccinated)
	assert.Equal(t, int64(26000), *chile[3].TotalVaccinations)

	for _, o := range in.Observations["Fiji"] {
		assert.Nil(t, o.PeopleVaccinated, "absent optional column reads as unknown")
	}

	guam, ok := in.Population.Lookup("Guam")
	require.True(t, ok)
	assert.Equal(t, int64(331002647+168783), guam)
	assert.False(t, in.Population.Has("Guam"))

	assert.Equal(t, "Oceania", in.Continents["Fiji"])
	assert.Equal(t, []string{"France", "Germany"}, in.EUMembers)
	assert.Equal(t, "OWID_WRL", in.ISOCodes["World"])
	assert.True(t, in.Geography.IsSubnational("Wales"))
}

func TestReader_Extract_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantMsg string
	}{
		{
			name:    "unexpected column",
			file:    "automated/Chile.csv",
			content: "location,date,source_url,total_vaccinations,doses\nChile,2021-01-04,u,1,1\n",
			wantMsg: `unexpected column "doses"`,
		},
		{
			name:    "missing required column",
			file:    "automated/Chile.csv",
			content: "location,date,source_url\nChile,2021-01-04,u\n",
			wantMsg: `missing column "total_vaccinations"`,
		},
		{
			name:    "bad date",
			file:    "automated/Chile.csv",
			content: "location,date,source_url,total_vaccinations\nChile,04/01/2021,u,1\n",
			wantMsg: `automated/Chile.csv:2: invalid date "04/01/2021"`,
		},
		{
			name:    "fractional count",
			file:    "automated/Chile.csv",
			content: "location,date,source_url,total_vaccinations\nChile,2021-01-04,u,1.5\n",
			wantMsg: `total_vaccinations: invalid count "1.5"`,
		},
		{
			name:    "bad metadata flag",
			file:    source.MetadataFile,
			content: "location,automated,include,source_name,source_url\nChile,yes,true,M,u\n",
			wantMsg: `invalid automated flag "yes"`,
		},
		{
			name:    "duplicate metadata location",
			file:    source.MetadataFile,
			content: "location,automated,include,source_name,source_url\nChile,true,true,M,u\nChile,true,true,M,u\n",
			wantMsg: `duplicate location "Chile"`,
		},
		{
			name:    "empty population",
			file:    source.PopulationFile,
			content: "location,population\nChile,\n",
			wantMsg: "Chile: empty population",
		},
		{
			name:    "conflicting continent",
			file:    source.ContinentsFile,
			content: "location,continent\nChile,South America\nChile,Europe\n",
			wantMsg: "conflicting continent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := minimalInputs()
			in[tt.file] = tt.content
			r := source.NewReader(in, "", 1, discardLogger())

			_, err := r.Extract(context.Background())

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSchema))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReader_Extract_ReportsEveryLocation(t *testing.T) {
	in := minimalInputs()
	in[source.MetadataFile] += "Peru,false,true,Minsa,https://www.minsa.gob.pe/\n"
	in["automated/Chile.csv"] = "location,date,source_url,total_vaccinations\nChile,2021-01-04,u,ten\n"
	in["manual/Peru.csv"] = "location,date,source_url,total_vaccinations\nPeru,yesterday,u,1\n"
	r := source.NewReader(in, "", 4, discardLogger())

	_, err := r.Extract(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "automated/Chile.csv")
	assert.Contains(t, err.Error(), "manual/Peru.csv")
}

func TestReader_Extract_MissingLocationFile(t *testing.T) {
	in := minimalInputs()
	delete(in, "automated/Chile.csv")
	r := source.NewReader(in, "", 1, discardLogger())

	_, err := r.Extract(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrNotFound)
	assert.Contains(t, err.Error(), "read Chile")
}

func TestDirOpener_RejectsEscapingNames(t *testing.T) {
	o := source.DirOpener{Root: mockInputDir}
	for _, name := range []string{"../secrets.csv", "/etc/passwd", "manual/../../x.csv", ""} {
		_, err := o.Open(context.Background(), name)
		assert.Error(t, err, name)
	}

	_, err := o.Open(context.Background(), "manual/Nowhere.csv")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestLoadGeography(t *testing.T) {
	t.Run("embedded default", func(t *testing.T) {
		geo, err := source.LoadGeography("")
		require.NoError(t, err)
		assert.Len(t, geo.Subnational, 4)
		assert.Equal(t, "United States", geo.PopulationFolds["Guam"])
		assert.Empty(t, geo.Aggregates)
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "geo.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
subnational:
  Wales: United Kingdom
aggregates:
  - name: High income
    included_locations: [Chile, United Kingdom]
`), 0o600))

		geo, err := source.LoadGeography(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Wales": "United Kingdom"}, geo.Subnational)
		require.Len(t, geo.Aggregates, 1)
		assert.Equal(t, []string{"Chile", "United Kingdom"}, geo.Aggregates[0].IncludedLocations)
	})

	t.Run("empty list beside the other list", func(t *testing.T) {
		geo, err := source.ParseGeography([]byte(`
aggregates:
  - name: Everyone but Chile
    included_locations: []
    excluded_locations: [Chile]
`))
		require.NoError(t, err)
		require.Len(t, geo.Aggregates, 1)
		assert.Equal(t, []string{"Fiji"}, geo.Aggregates[0].Members([]string{"Chile", "Fiji"}, nil))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := source.LoadGeography(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseGeography_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key": "subnationals:\n  Wales: United Kingdom\n",
		"both lists":  "aggregates:\n  - name: X\n    included_locations: [A]\n    excluded_locations: [B]\n",
		"empty name":  "aggregates:\n  - included_locations: [A]\n",
		"not yaml":    "subnational: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := source.ParseGeography([]byte(doc))
			assert.Error(t, err)
		})
	}
}
