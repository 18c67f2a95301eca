package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

// RunState is the lifecycle of the current analysis run.
type RunState string

const (
	StatePending RunState = "pending" // no run started yet
	StateRunning RunState = "running"
	StateDone    RunState = "done"
)

// Status is a snapshot of the current run for the presentation layer.
type Status struct {
	State      RunState         `json:"state"`
	Parameter  domain.Parameter `json:"parameter,omitempty"`
	Generation uint64           `json:"generation"`
	Batch      int              `json:"batch,omitempty"`
	Total      int              `json:"total_batches,omitempty"`
	ValidUnits int              `json:"valid_units"`
}

// ErrInvalidParameter is returned by Start for an unknown parameter.
var ErrInvalidParameter = errors.New("invalid parameter")

// Service owns analysis runs and the finalized result set. Starting a new
// run does not cancel a run already in flight; instead every run carries a
// generation token and only the run whose token is still current at
// completion time commits its results. Stale completions are discarded.
type Service struct {
	scheduler *Scheduler
	units     []domain.SpatialUnit
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	sink      ResultSink // optional; nil disables publishing

	// ctx bounds run lifetimes: runs outlive the HTTP request that
	// triggered them and stop only on service shutdown.
	ctx context.Context

	mu         sync.Mutex
	generation uint64
	status     Status
	parameter  domain.Parameter
	results    []domain.AnomalyResult
	byID       map[string]domain.AnomalyResult
}

// NewService creates a Service over the loaded boundary set.
func NewService(ctx context.Context, scheduler *Scheduler, units []domain.SpatialUnit, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, sink ResultSink) *Service {
	return &Service{
		scheduler: scheduler,
		units:     units,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		sink:      sink,
		ctx:       ctx,
		status:    Status{State: StatePending},
	}
}

// CheckReadiness reports whether reference data is loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if len(s.units) == 0 {
		return errors.New("boundary dataset is empty")
	}
	return nil
}

// Start begins a new analysis run for the parameter and returns its
// generation token. The run executes in the background; progress and
// results are observed via Status, Results and ResultFor.
func (s *Service) Start(p domain.Parameter) (uint64, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParameter, p)
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.status = Status{State: StateRunning, Parameter: p, Generation: gen}
	s.mu.Unlock()

	go s.run(gen, p)
	return gen, nil
}

func (s *Service) run(gen uint64, p domain.Parameter) {
	s.metrics.RunInProgress.Set(1)
	defer s.metrics.RunInProgress.Set(0)

	start := s.clock.Now()
	results, err := s.scheduler.Run(s.ctx, s.units, p, start, func(prog Progress) {
		s.setProgress(gen, prog)
	})
	s.metrics.RunDuration.Observe(s.clock.Since(start).Seconds())

	if err != nil {
		s.logger.Info("analysis run aborted", "generation", gen, "reason", err)
		return
	}
	s.commit(gen, p, results)
}

// setProgress records batch progress, unless a newer run owns the status.
func (s *Service) setProgress(gen uint64, prog Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.status.Batch = prog.Batch
	s.status.Total = prog.Total
}

// commit installs a finished run's results if its generation is still
// current; otherwise the run is stale and its output is dropped.
func (s *Service) commit(gen uint64, p domain.Parameter, results []domain.AnomalyResult) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.metrics.StaleRuns.Inc()
		s.logger.Warn("discarding stale run", "generation", gen, "current", s.generation)
		return
	}

	byID := make(map[string]domain.AnomalyResult, len(results))
	for _, r := range results {
		byID[r.UnitID] = r
	}
	s.parameter = p
	s.results = results
	s.byID = byID
	s.status.State = StateDone
	s.status.ValidUnits = len(results)
	s.mu.Unlock()

	if len(results) == 0 {
		s.logger.Warn("run produced no valid results", "generation", gen, "parameter", p)
	}
	s.publish(p, results)
}

// publish forwards results to the optional sink, best-effort.
func (s *Service) publish(p domain.Parameter, results []domain.AnomalyResult) {
	if s.sink == nil || len(results) == 0 {
		return
	}
	if err := s.sink.PublishResults(s.ctx, p, results); err != nil {
		s.logger.Error("result sink publish failed", "error", err)
	}
}

// Status returns a snapshot of the current run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Results returns the finalized valid results and their parameter.
// ok is false until a run has committed.
func (s *Service) Results() (p domain.Parameter, results []domain.AnomalyResult, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != StateDone {
		return "", nil, false
	}
	return s.parameter, s.results, true
}

// ResultFor resolves a unit ID to its latest valid result. It satisfies
// the query index's lookup interface.
func (s *Service) ResultFor(unitID string) (domain.AnomalyResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[unitID]
	return r, ok
}
