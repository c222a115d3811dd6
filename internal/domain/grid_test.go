package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid(t *testing.T) {
	t.Run("fills missing days", func(t *testing.T) {
		rows := []Row{
			{Observation: Observation{Location: "A", Date: dayN(0), Vaccine: "Moderna", SourceURL: "u0", Counters: Counters{TotalVaccinations: i64(100)}}},
			{Observation: Observation{Location: "A", Date: dayN(4), Vaccine: "Moderna", SourceURL: "u4", Counters: Counters{TotalVaccinations: i64(300)}}},
		}

		got := Grid(rows)

		require.Len(t, got, 5)
		for i, r := range got {
			assert.Equal(t, dayN(i), r.Date)
			assert.Equal(t, "A", r.Location)
			assert.Equal(t, "Moderna", r.Vaccine)
		}
		assert.Nil(t, got[1].TotalVaccinations)
		assert.Nil(t, got[3].TotalVaccinations)
		assert.Equal(t, "u0", got[3].SourceURL)
		assert.Equal(t, "u4", got[4].SourceURL)
	})

	t.Run("sorts unordered input", func(t *testing.T) {
		rows := []Row{
			{Observation: obs("A", 2, 30)},
			{Observation: obs("A", 0, 10)},
		}

		got := Grid(rows)

		require.Len(t, got, 3)
		assert.Equal(t, []int64{10, -1, 30}, values(got, total))
	})

	t.Run("row count matches date span", func(t *testing.T) {
		rows := []Row{{Observation: obs("A", 3, 1)}, {Observation: obs("A", 40, 2)}, {Observation: obs("A", 17, 3)}}
		got := Grid(rows)
		assert.Len(t, got, daysBetween(dayN(3), dayN(40))+1)
	})

	t.Run("idempotent", func(t *testing.T) {
		rows := []Row{{Observation: obs("A", 0, 1)}, {Observation: obs("A", 5, 9)}}
		once := Grid(rows)
		twice := Grid(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("grid not idempotent (-once +twice):\n%s", diff)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Grid(nil))
	})
}
