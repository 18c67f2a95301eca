package domain

const (
	metersToMillimeters = 1000
	kelvinOffset        = 273.15
)

// PastDeviation sums the per-month deviations of observed values from the
// unit's monthly baselines over the backward observation window (the 3
// most recent complete months).
//
// Precipitation reductions arrive in meters and are converted to
// millimeters; a missing reduction is treated as zero rainfall, so the
// month contributes the full negative of its baseline. Temperature
// reductions arrive in Kelvin and are converted to Celsius only when a
// value is actually present; a missing reduction falls back to the
// month's baseline, contributing zero deviation rather than a spurious
// cold anomaly.
func PastDeviation(p Parameter, observations []MonthlyObservation, monthly [12]float64) float64 {
	var total float64
	for _, obs := range observations {
		baseline := monthly[obs.Month-1]
		total += observedValue(p, obs, baseline) - baseline
	}
	return total
}

func observedValue(p Parameter, obs MonthlyObservation, baseline float64) float64 {
	if p == Temperature {
		if !obs.OK {
			return baseline
		}
		return obs.Raw - kelvinOffset
	}
	if !obs.OK {
		return 0
	}
	return obs.Raw * metersToMillimeters
}
