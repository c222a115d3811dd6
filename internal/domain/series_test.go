package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSeries_GapScenario(t *testing.T) {
	// Location A reports 100 on day 0 and 150 on day 2; day 1 is missing.
	s := BuildSeries("A", []Observation{obs("A", 0, 100), obs("A", 2, 150)}, dayN(10))

	require.Len(t, s.Rows, 3)
	assert.Equal(t, "A", s.Location)
	assert.Equal(t, []int64{100, 100, 150}, values(s.Rows, total))
	assert.Equal(t, []int64{-1, 0, 50}, values(s.Rows, raw))
	assert.Equal(t, []int64{-1, 25, 25}, values(s.Rows, smoothed))
	assert.Equal(t, []int64{0, 0, 0}, values(s.Rows, fully), "never reported second doses read as zero before output")
}

func TestBuildSeries_DropsPartialDay(t *testing.T) {
	s := BuildSeries("A", []Observation{obs("A", 0, 10), obs("A", 1, 20), obs("A", 2, 30)}, dayN(2))

	require.Len(t, s.Rows, 2)
	assert.Equal(t, dayN(1), s.LastDate())
}

func TestBuildSeries_TrimsLeadingEmptyRows(t *testing.T) {
	empty := Observation{Location: "A", Date: dayN(0), SourceURL: "u"}
	s := BuildSeries("A", []Observation{empty, obs("A", 3, 10), obs("A", 4, 12)}, dayN(10))

	require.Len(t, s.Rows, 2)
	assert.Equal(t, dayN(3), s.Rows[0].Date)
	assert.Nil(t, s.Rows[0].NewVaccinations, "first row of a location has no delta")
}

func TestBuildSeries_MergesVaccineRows(t *testing.T) {
	a := obs3("A", 0, 60, 50, 10)
	a.Vaccine = "Pfizer/BioNTech"
	b := obs3("A", 0, 40, 30, 10)
	b.Vaccine = "Moderna"

	s := BuildSeries("A", []Observation{a, b}, dayN(5))

	require.Len(t, s.Rows, 1)
	assert.Equal(t, int64(100), *s.Rows[0].TotalVaccinations)
	assert.Equal(t, int64(80), *s.Rows[0].PeopleVaccinated)
	assert.Equal(t, int64(20), *s.Rows[0].PeopleFullyVaccinated)
	assert.Equal(t, "Moderna, Pfizer/BioNTech", s.Rows[0].Vaccine)
}

func TestBuildSeries_Empty(t *testing.T) {
	s := BuildSeries("A", nil, dayN(0))
	assert.Empty(t, s.Rows)
	assert.True(t, s.LastDate().IsZero())
}

func TestMergeVaccineRows(t *testing.T) {
	a := Observation{Location: "A", Date: dayN(1), SourceURL: "first", Counters: Counters{TotalVaccinations: i64(5)}}
	b := Observation{Location: "A", Date: dayN(1), SourceURL: "second"}
	c := obs("A", 0, 1)

	got := MergeVaccineRows([]Observation{a, b, c})

	require.Len(t, got, 2)
	assert.Equal(t, dayN(0), got[0].Date)
	assert.Equal(t, "second", got[1].SourceURL)
	assert.Equal(t, int64(5), *got[1].TotalVaccinations)
	assert.Nil(t, got[1].PeopleVaccinated)
}

func TestCleanObservations(t *testing.T) {
	got := CleanObservations([]Observation{
		obs("A", 2, 30),
		obs("A", 0, 10),
		obs("A", 5, 50),
		obs("A", 4, 40),
	}, dayN(4))

	require.Len(t, got, 2)
	assert.Equal(t, dayN(0), got[0].Date)
	assert.Equal(t, dayN(2), got[1].Date)
}
