package domain

import "math"

// Layer selects which diff of an AnomalyResult a rendering pass uses.
type Layer string

const (
	LayerPast     Layer = "past"
	LayerForecast Layer = "forecast"
	LayerCombined Layer = "combined"
)

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	return l == LayerPast || l == LayerForecast || l == LayerCombined
}

// Value returns the layer's diff from r.
func (r AnomalyResult) Value(l Layer) float64 {
	switch l {
	case LayerPast:
		return r.PastDiff
	case LayerForecast:
		return r.ForecastDiff
	default:
		return r.CombinedDiff
	}
}

// paletteMax is the top of the 7-point diverging color scale (indices 0–6,
// 3 = on baseline).
const paletteMax = 6

// MaxAbs returns the largest absolute layer value across the valid
// results, or 1 when every value is zero so callers never divide by zero.
func MaxAbs(results []AnomalyResult, l Layer) float64 {
	var maxAbs float64
	for _, r := range results {
		if !r.Valid {
			continue
		}
		if v := math.Abs(r.Value(l)); v > maxAbs {
			maxAbs = v
		}
	}
	if maxAbs == 0 {
		return 1
	}
	return maxAbs
}

// ColorIndex maps a layer value onto the diverging palette: the value is
// scaled into [−1, 1] by maxAbs, shifted to [0, 1], spread over the
// palette and clamped.
func ColorIndex(value, maxAbs float64) float64 {
	idx := (value/maxAbs + 1) / 2 * paletteMax
	return math.Min(math.Max(idx, 0), paletteMax)
}
