package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPastDeviation_Precipitation(t *testing.T) {
	var monthly [12]float64
	monthly[4] = 50  // May
	monthly[5] = 60  // June
	monthly[6] = 100 // July

	observations := []MonthlyObservation{
		{Month: time.May, Raw: 0.055, OK: true},  // 55 mm → +5
		{Month: time.June, Raw: 0.060, OK: true}, // 60 mm → 0
		{Month: time.July, OK: false},            // missing → zero-fill → −100
	}

	got := PastDeviation(Precipitation, observations, monthly)
	assert.InDelta(t, 5+0-100, got, 1e-9)
}

func TestPastDeviation_Temperature(t *testing.T) {
	var monthly [12]float64
	monthly[4] = 20
	monthly[5] = 25
	monthly[6] = 30

	observations := []MonthlyObservation{
		{Month: time.May, Raw: 295.15, OK: true},  // 22°C → +2
		{Month: time.June, Raw: 297.15, OK: true}, // 24°C → −1
		{Month: time.July, OK: false},             // missing → baseline fallback → 0
	}

	got := PastDeviation(Temperature, observations, monthly)
	assert.InDelta(t, 2-1+0, got, 1e-9)
}

func TestPastDeviation_MissingTemperatureNeverFabricatesColdAnomaly(t *testing.T) {
	var monthly [12]float64
	monthly[0] = 5

	// A naive K→C conversion of a missing (zero) raster value would yield
	// −273.15°C and a −278.15 deviation.
	got := PastDeviation(Temperature, []MonthlyObservation{{Month: time.January, OK: false}}, monthly)
	assert.Zero(t, got)
}

func TestPastDeviation_NoObservations(t *testing.T) {
	var monthly [12]float64
	assert.Zero(t, PastDeviation(Precipitation, nil, monthly))
}
