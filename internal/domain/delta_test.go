package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltas(t *testing.T) {
	t.Run("contiguous rows", func(t *testing.T) {
		rows := ForwardFill(Grid([]Row{{Observation: obs("A", 0, 100)}, {Observation: obs("A", 2, 150)}}))
		got := Deltas(rows, total)
		assert.Equal(t, []int64{-1, 0, 50}, values(rowsWith(got), raw))
	})

	t.Run("no delta across a date gap", func(t *testing.T) {
		rows := []Row{{Observation: obs("A", 0, 100)}, {Observation: obs("A", 3, 130)}, {Observation: obs("A", 4, 140)}}
		got := Deltas(rows, total)
		assert.Nil(t, got[0])
		assert.Nil(t, got[1])
		assert.Equal(t, int64(10), *got[2])
	})

	t.Run("downward corrections are kept", func(t *testing.T) {
		rows := []Row{{Observation: obs("A", 0, 100)}, {Observation: obs("A", 1, 90)}}
		got := Deltas(rows, total)
		assert.Equal(t, int64(-10), *got[1])
	})

	t.Run("unknown neighbour", func(t *testing.T) {
		rows := []Row{{Observation: Observation{Location: "A", Date: dayN(0)}}, {Observation: obs("A", 1, 90)}}
		got := Deltas(rows, total)
		assert.Nil(t, got[1])
	})
}

// rowsWith wraps deltas as rows so they can be read with values.
func rowsWith(deltas []*int64) []Row {
	rows := make([]Row, len(deltas))
	for i, d := range deltas {
		rows[i].NewVaccinations = d
	}
	return rows
}
