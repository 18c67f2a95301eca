// Package analysis orchestrates anomaly runs: it partitions the district
// list into batches, drives each batch through the remote zonal backend
// and the domain combination logic, and holds the finalized result set.
package analysis

import (
	"context"
	"time"

	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
)

// ReductionValue is one zonal raster reduction for a unit. OK is false
// when the backend computed no value over the unit's footprint.
type ReductionValue struct {
	Raw float64
	OK  bool
}

// Aggregator is the remote geospatial aggregation capability. Both calls
// cover a whole batch of units; an error means the batch as a whole
// failed and is skipped without retry.
type Aggregator interface {
	// ForecastSamples fetches all forecast samples (possibly spanning
	// several model runs) for the given units.
	ForecastSamples(ctx context.Context, unitIDs []string, p domain.Parameter) (map[string][]domain.ForecastSample, error)

	// MonthlyReduction computes the zonal reduction of one monthly
	// observation raster over each unit's footprint. Units absent from
	// the returned map, or present with OK=false, had no value.
	MonthlyReduction(ctx context.Context, unitIDs []string, period time.Time, p domain.Parameter) (map[string]ReductionValue, error)
}

// ResultSink receives the finalized valid results of a committed run.
type ResultSink interface {
	PublishResults(ctx context.Context, p domain.Parameter, results []domain.AnomalyResult) error
}
