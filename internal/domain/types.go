package domain

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Parameter selects which weather variable an analysis run computes.
type Parameter string

const (
	Precipitation Parameter = "precipitation"
	Temperature   Parameter = "temperature"
)

// Valid reports whether p is one of the supported parameters.
func (p Parameter) Valid() bool {
	return p == Precipitation || p == Temperature
}

// SpatialUnit is an administrative district polygon. Units are read-only
// reference data loaded once per process; the display name is the join key
// into the baseline store.
type SpatialUnit struct {
	ID       string
	Name     string
	Boundary orb.MultiPolygon
}

// HistoricalBaseline holds the long-term monthly normals for one unit,
// keyed by the unit's display name. Index 0 is January.
type HistoricalBaseline struct {
	UnitName      string
	Precipitation [12]float64 // monthly total, mm
	Temperature   [12]float64 // monthly mean, °C
}

// Monthly returns the 12 monthly normals for the given parameter.
func (b HistoricalBaseline) Monthly(p Parameter) [12]float64 {
	if p == Temperature {
		return b.Temperature
	}
	return b.Precipitation
}

// ForecastSample is one instantaneous model value for a unit.
type ForecastSample struct {
	UnitID string
	Run    time.Time // model run timestamp; only the latest run is used
	Hour   int       // forecast-hour offset from the run
	Value  float64   // mm/s for precipitation, °C for temperature
}

// MonthlyObservation is one zonal raster reduction for a calendar month.
// OK is false when the backend's reduction returned no value for the unit.
type MonthlyObservation struct {
	Month time.Month
	Raw   float64 // meters for precipitation, Kelvin for temperature
	OK    bool
}

// AnomalyResult is the per-unit outcome of an analysis run. All three
// diffs share the parameter's physical unit. Invalid results (no baseline
// record for the unit) carry NaN in every diff so they can never be
// mistaken for a legitimate zero.
type AnomalyResult struct {
	UnitID       string  `json:"unit_id"`
	UnitName     string  `json:"unit_name"`
	PastDiff     float64 `json:"past_diff"`
	ForecastDiff float64 `json:"forecast_diff"`
	CombinedDiff float64 `json:"combined_diff"`
	Valid        bool    `json:"valid"`
}

// InvalidResult builds the sentinel result for a unit with no baseline.
func InvalidResult(unit SpatialUnit) AnomalyResult {
	nan := math.NaN()
	return AnomalyResult{
		UnitID:       unit.ID,
		UnitName:     unit.Name,
		PastDiff:     nan,
		ForecastDiff: nan,
		CombinedDiff: nan,
	}
}

// daysInMonth is the fixed day-count table used for baseline weighting.
// February stays at 28: the indicator never applies a leap-year correction.
var daysInMonth = [12]float64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the table entry for m.
func DaysInMonth(m time.Month) float64 {
	return daysInMonth[m-1]
}
