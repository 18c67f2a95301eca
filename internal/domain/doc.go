// Package domain models district-level weather-anomaly indicators.
//
// # Signal Definition
//
// An anomaly is the deviation of observed or forecast weather from a
// long-term monthly baseline, computed per spatial unit (an administrative
// district polygon). Two windows contribute:
//
//	past:     the 3 most recent complete calendar months of observations,
//	          each compared against that month's baseline value.
//	forecast: a fixed 16-day forward window, compared against a baseline
//	          interpolated across the months the window touches.
//
// combined = past + forecast. Positive means wetter/warmer than normal,
// negative means drier/cooler.
//
// # Units
//
// Precipitation baselines are monthly totals in millimeters. The remote
// raster backend reports monthly precipitation sums in meters (×1000 → mm)
// and forecast precipitation as a rate in mm/s, integrated over each
// sample's validity interval: hourly samples for forecast hours 1–120
// (×3600 s), 3-hourly samples for hours 123–384 (×10800 s). Temperature
// baselines are monthly means in degrees Celsius; raster reductions arrive
// in Kelvin (−273.15 → °C) and forecast samples in Celsius.
//
// # Calendar Conventions
//
// Day weighting uses a fixed 12-entry days-per-month table with February
// at 28 days; leap years are deliberately not corrected. The temperature
// branch of the 16-day interpolation uses a fixed 30-day month length when
// the window stays inside a single month, but the calendar table when it
// crosses a month boundary. Both quirks match the published indicator and
// are pinned by tests.
//
// # Missing Data
//
// Missing data never aborts a computation. Precipitation gaps are
// zero-filled (a missing raster month counts as zero rainfall); missing
// temperature rasters fall back to the month's baseline value, suppressing
// the anomaly signal for that month instead of fabricating an absolute-zero
// reading. A unit with no baseline record at all yields an invalid result
// whose diffs are NaN, excluded before rendering.
//
// # Color Index
//
// For rendering, each layer is scaled by its maximum absolute value into a
// 7-point ordinal index: 0 = most negative, 3 = on baseline, 6 = most
// positive, matching a 7-color diverging palette.
package domain
