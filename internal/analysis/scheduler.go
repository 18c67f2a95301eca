package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

// observationMonths is the fixed backward window: the 3 most recent
// complete calendar months before the run's start date.
const observationMonths = 3

// Progress reports which batch is being dispatched.
type Progress struct {
	Batch int // 1-based
	Total int
}

// ProgressFunc receives a notification as each batch starts.
type ProgressFunc func(Progress)

// Scheduler drives spatial units through the anomaly pipeline in strictly
// sequential fixed-size batches. The inter-batch delay exists to respect
// the zonal backend's rate limits, not for correctness; only one batch is
// ever in flight.
type Scheduler struct {
	backend   Aggregator
	baselines *domain.BaselineStore
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	batchSize int
	delay     time.Duration
}

// NewScheduler creates a Scheduler. batchSize must be positive.
func NewScheduler(backend Aggregator, baselines *domain.BaselineStore, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, batchSize int, delay time.Duration) *Scheduler {
	return &Scheduler{
		backend:   backend,
		baselines: baselines,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		batchSize: batchSize,
		delay:     delay,
	}
}

// Run processes all units for one parameter and returns the valid results
// in input order. A failed batch is logged, counted, and skipped — its
// units are simply absent from the output. Run returns the accumulated
// results with ctx.Err() if cancelled mid-run.
func (s *Scheduler) Run(ctx context.Context, units []domain.SpatialUnit, p domain.Parameter, start time.Time, onProgress ProgressFunc) ([]domain.AnomalyResult, error) {
	total := (len(units) + s.batchSize - 1) / s.batchSize
	results := make([]domain.AnomalyResult, 0, len(units))

	s.logger.Info("analysis run started",
		"parameter", p, "units", len(units), "batches", total, "batch_size", s.batchSize)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if onProgress != nil {
			onProgress(Progress{Batch: i + 1, Total: total})
		}

		end := (i + 1) * s.batchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[i*s.batchSize : end]

		batchStart := s.clock.Now()
		batchResults, err := s.processBatch(ctx, batch, p, start)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			s.logger.Error("batch failed, skipping",
				"batch", i+1, "total", total, "units", len(batch), "error", err)
			s.metrics.BatchFailures.Inc()
		} else {
			results = append(results, batchResults...)
		}
		s.metrics.BatchDuration.Observe(s.clock.Since(batchStart).Seconds())

		if i < total-1 && !s.throttle(ctx) {
			return results, ctx.Err()
		}
	}

	s.logger.Info("analysis run finished", "parameter", p, "valid_results", len(results))
	return results, nil
}

// processBatch dispatches one batch to the backend and combines the
// responses into per-unit results. Any backend error fails the whole
// batch.
func (s *Scheduler) processBatch(ctx context.Context, batch []domain.SpatialUnit, p domain.Parameter, start time.Time) ([]domain.AnomalyResult, error) {
	ids := make([]string, len(batch))
	for i, u := range batch {
		ids[i] = u.ID
	}

	forecasts, err := s.backend.ForecastSamples(ctx, ids, p)
	if err != nil {
		return nil, err
	}

	periods := observationPeriods(start)
	reductions := make([]map[string]ReductionValue, len(periods))
	for i, period := range periods {
		reductions[i], err = s.backend.MonthlyReduction(ctx, ids, period, p)
		if err != nil {
			return nil, err
		}
	}

	results := make([]domain.AnomalyResult, 0, len(batch))
	for _, unit := range batch {
		s.metrics.UnitsProcessed.Inc()

		res := s.combineUnit(unit, p, start, periods, forecasts[unit.ID], reductions)
		if !res.Valid {
			s.metrics.InvalidUnits.Inc()
			s.logger.Debug("no baseline record for unit", "unit", unit.Name)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Scheduler) combineUnit(unit domain.SpatialUnit, p domain.Parameter, start time.Time, periods []time.Time, samples []domain.ForecastSample, reductions []map[string]ReductionValue) domain.AnomalyResult {
	baseline, ok := s.baselines.Lookup(unit.Name)
	if !ok {
		return domain.CombineAnomaly(unit, false, 0, 0, 0)
	}
	monthly := baseline.Monthly(p)

	observations := make([]domain.MonthlyObservation, len(periods))
	for i, period := range periods {
		rv := reductions[i][unit.ID]
		observations[i] = domain.MonthlyObservation{Month: period.Month(), Raw: rv.Raw, OK: rv.OK}
	}

	pastDiff := domain.PastDeviation(p, observations, monthly)
	forecastValue := domain.AggregateForecast(p, samples)
	forecastBaseline := domain.InterpolateBaseline(p, start, monthly)

	return domain.CombineAnomaly(unit, true, forecastValue, forecastBaseline, pastDiff)
}

// throttle waits out the inter-batch delay, returning false if the
// context was cancelled first.
func (s *Scheduler) throttle(ctx context.Context) bool {
	if s.delay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(s.delay):
		return true
	}
}

// observationPeriods returns the first day of each of the 3 complete
// months preceding start, oldest first.
func observationPeriods(start time.Time) []time.Time {
	monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	periods := make([]time.Time, 0, observationMonths)
	for k := observationMonths; k >= 1; k-- {
		periods = append(periods, monthStart.AddDate(0, -k, 0))
	}
	return periods
}
