package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaselineStore(t *testing.T) {
	store := NewBaselineStore()

	_, ok := store.Lookup("Coastal North")
	assert.False(t, ok, "empty store must miss")

	store.Put(HistoricalBaseline{UnitName: "Coastal North", Precipitation: [12]float64{1: 42}})
	store.Put(HistoricalBaseline{UnitName: "Coastal North", Precipitation: [12]float64{1: 58}})

	b, ok := store.Lookup("Coastal North")
	assert.True(t, ok)
	assert.Equal(t, 58.0, b.Precipitation[1], "second put replaces the record")
	assert.Equal(t, 1, store.Len(), "at most one record per name")
}

func TestInterpolateBaseline_SingleMonth(t *testing.T) {
	// Window 2026-03-05 + 16 days stays inside March (31 days).
	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	var monthly [12]float64
	monthly[2] = 62 // March

	t.Run("precipitation uses calendar table", func(t *testing.T) {
		got := InterpolateBaseline(Precipitation, start, monthly)
		assert.InDelta(t, 62.0*16/31, got, 1e-9)
	})

	t.Run("temperature uses fixed 30-day denominator", func(t *testing.T) {
		got := InterpolateBaseline(Temperature, start, monthly)
		assert.InDelta(t, 62.0*16/30, got, 1e-9)
	})
}

func TestInterpolateBaseline_CrossMonth(t *testing.T) {
	// Start 2 days before the end of March (31 days): d1=2 days in March,
	// d2=14 days in April (30 days).
	start := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)
	var monthly [12]float64
	monthly[2] = 62 // March
	monthly[3] = 30 // April

	expected := 62.0/31*2 + 30.0/30*14

	t.Run("precipitation", func(t *testing.T) {
		got := InterpolateBaseline(Precipitation, start, monthly)
		assert.InDelta(t, expected, got, 1e-9)
	})

	t.Run("temperature cross-month also uses the calendar table", func(t *testing.T) {
		got := InterpolateBaseline(Temperature, start, monthly)
		assert.InDelta(t, expected, got, 1e-9)
	})
}

func TestInterpolateBaseline_DecemberWrapsToJanuary(t *testing.T) {
	start := time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC) // d1=4, d2=12
	var monthly [12]float64
	monthly[11] = 31 // December
	monthly[0] = 62  // January

	got := InterpolateBaseline(Precipitation, start, monthly)
	assert.InDelta(t, 31.0/31*4+62.0/31*12, got, 1e-9)
}

func TestInterpolateBaseline_FebruaryStaysAt28(t *testing.T) {
	// 2024 was a leap year; the table deliberately ignores that.
	start := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC) // d1 = 28-20+1 = 9
	var monthly [12]float64
	monthly[1] = 28 // February
	monthly[2] = 31 // March

	got := InterpolateBaseline(Precipitation, start, monthly)
	assert.InDelta(t, 28.0/28*9+31.0/31*7, got, 1e-9)
}

func TestInterpolateBaseline_ExactFit(t *testing.T) {
	// d1 == 16 exactly: single-month branch.
	start := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	var monthly [12]float64
	monthly[2] = 31

	got := InterpolateBaseline(Precipitation, start, monthly)
	assert.InDelta(t, 31.0*16/31, got, 1e-9)
}
