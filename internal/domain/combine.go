package domain

// CombineAnomaly merges the pipeline outputs for one unit into its final
// result. hasBaseline is the outcome of the baseline lookup for the unit's
// name: without a record there is nothing to deviate from, so the result
// is the invalid sentinel. Otherwise
//
//	forecast_diff = forecastValue − forecastBaseline
//	combined_diff = past_diff + forecast_diff
//
// This is pure combination logic; the missing-baseline branch is its only
// failure mode.
func CombineAnomaly(unit SpatialUnit, hasBaseline bool, forecastValue, forecastBaseline, pastDiff float64) AnomalyResult {
	if !hasBaseline {
		return InvalidResult(unit)
	}

	forecastDiff := forecastValue - forecastBaseline
	return AnomalyResult{
		UnitID:       unit.ID,
		UnitName:     unit.Name,
		PastDiff:     pastDiff,
		ForecastDiff: forecastDiff,
		CombinedDiff: pastDiff + forecastDiff,
		Valid:        true,
	}
}
