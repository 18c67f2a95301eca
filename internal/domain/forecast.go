package domain

import "time"

// Forecast sample spacing: hourly values through hour 120, then 3-hourly
// through hour 384. Each sample's rate applies to the whole interval.
const (
	hourlyEnd      = 120
	threeHourStart = 123
	threeHourEnd   = 384
	threeHourStep  = 3

	secondsPerHour  = 3600
	secondsPer3Hour = 10800
)

// AggregateForecast reduces a unit's forecast samples to a single value
// over the 16-day horizon. Only the latest model run (maximum run
// timestamp) contributes; older runs are discarded.
//
// Precipitation integrates rate samples over their validity intervals and
// sums them; a missing offset contributes zero. Temperature is the
// arithmetic mean of whatever samples are present — missing offsets are
// excluded from the mean, not zero-filled.
func AggregateForecast(p Parameter, samples []ForecastSample) float64 {
	latest := latestRun(samples)
	if latest.IsZero() {
		return 0
	}

	byHour := make(map[int]float64, len(samples))
	for _, s := range samples {
		if s.Run.Equal(latest) {
			byHour[s.Hour] = s.Value
		}
	}

	if p == Temperature {
		return meanOver(byHour)
	}

	var total float64
	for h := 1; h <= hourlyEnd; h++ {
		total += byHour[h] * secondsPerHour
	}
	for h := threeHourStart; h <= threeHourEnd; h += threeHourStep {
		total += byHour[h] * secondsPer3Hour
	}
	return total
}

func latestRun(samples []ForecastSample) time.Time {
	var latest time.Time
	for _, s := range samples {
		if s.Run.After(latest) {
			latest = s.Run
		}
	}
	return latest
}

func meanOver(byHour map[int]float64) float64 {
	if len(byHour) == 0 {
		return 0
	}
	var sum float64
	for _, v := range byHour {
		sum += v
	}
	return sum / float64(len(byHour))
}
