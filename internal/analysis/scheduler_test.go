package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

var errBackendDown = errors.New("backend unavailable")

// --- mocks ---

type mockBackend struct {
	mu            sync.Mutex
	forecastCalls int
	failBatches   map[int]bool // 1-based ForecastSamples call number → fail
	reducePeriods []time.Time
	samples       map[string][]domain.ForecastSample
	reductions    map[string]analysis.ReductionValue

	// When set, the first ForecastSamples call closes blocked and then
	// waits for gate, simulating a slow in-flight batch.
	gate    chan struct{}
	blocked chan struct{}
}

func (m *mockBackend) ForecastSamples(ctx context.Context, unitIDs []string, _ domain.Parameter) (map[string][]domain.ForecastSample, error) {
	m.mu.Lock()
	m.forecastCalls++
	call := m.forecastCalls
	gate, blocked := m.gate, m.blocked
	m.gate, m.blocked = nil, nil
	m.mu.Unlock()

	if gate != nil {
		close(blocked)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.failBatches[call] {
		return nil, errBackendDown
	}

	out := make(map[string][]domain.ForecastSample)
	for _, id := range unitIDs {
		if s, ok := m.samples[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *mockBackend) MonthlyReduction(_ context.Context, unitIDs []string, period time.Time, _ domain.Parameter) (map[string]analysis.ReductionValue, error) {
	m.mu.Lock()
	m.reducePeriods = append(m.reducePeriods, period)
	m.mu.Unlock()

	out := make(map[string]analysis.ReductionValue)
	for _, id := range unitIDs {
		out[id] = m.reductions[id]
	}
	return out, nil
}

func (m *mockBackend) periods() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.reducePeriods...)
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forecastCalls
}

// --- helpers ---

var testStart = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func makeUnits(n int) []domain.SpatialUnit {
	units := make([]domain.SpatialUnit, n)
	for i := range units {
		units[i] = domain.SpatialUnit{
			ID:   fmt.Sprintf("u%02d", i+1),
			Name: fmt.Sprintf("District %02d", i+1),
		}
	}
	return units
}

func makeBaselines(units []domain.SpatialUnit) *domain.BaselineStore {
	store := domain.NewBaselineStore()
	for _, u := range units {
		store.Put(domain.HistoricalBaseline{UnitName: u.Name})
	}
	return store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(backend analysis.Aggregator, baselines *domain.BaselineStore, clock clockwork.Clock, batchSize int, delay time.Duration) *analysis.Scheduler {
	return analysis.NewScheduler(backend, baselines, testLogger(), observability.NewMetricsForTesting(), clock, batchSize, delay)
}

func unitIDs(results []domain.AnomalyResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.UnitID
	}
	return ids
}

// --- tests ---

func TestScheduler_Run_PartitionsInOrder(t *testing.T) {
	units := makeUnits(12)
	backend := &mockBackend{}
	s := newScheduler(backend, makeBaselines(units), clockwork.NewRealClock(), 5, 0)

	var progress []analysis.Progress
	results, err := s.Run(context.Background(), units, domain.Precipitation, testStart, func(p analysis.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	// ceil(12/5) = 3 batches of sizes 5, 5, 2.
	assert.Equal(t, []analysis.Progress{{Batch: 1, Total: 3}, {Batch: 2, Total: 3}, {Batch: 3, Total: 3}}, progress)
	assert.Equal(t, 3, backend.calls())

	require.Len(t, results, 12)
	expected := make([]string, 12)
	for i := range expected {
		expected[i] = fmt.Sprintf("u%02d", i+1)
	}
	if diff := cmp.Diff(expected, unitIDs(results)); diff != "" {
		t.Fatalf("result order mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_Run_ObservationWindow(t *testing.T) {
	units := makeUnits(1)
	backend := &mockBackend{}
	s := newScheduler(backend, makeBaselines(units), clockwork.NewRealClock(), 5, 0)

	_, err := s.Run(context.Background(), units, domain.Temperature, testStart, nil)
	require.NoError(t, err)

	// The 3 complete months before August 2026, oldest first.
	assert.Equal(t, []time.Time{
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}, backend.periods())
}

func TestScheduler_Run_FailedBatchSkipped(t *testing.T) {
	units := makeUnits(12)
	backend := &mockBackend{failBatches: map[int]bool{2: true}}
	s := newScheduler(backend, makeBaselines(units), clockwork.NewRealClock(), 5, 0)

	results, err := s.Run(context.Background(), units, domain.Precipitation, testStart, nil)
	require.NoError(t, err, "a failed batch must not fail the run")

	// Batch 1 (5) + batch 3 (2); batch 2's units are simply absent.
	assert.Equal(t, []string{"u01", "u02", "u03", "u04", "u05", "u11", "u12"}, unitIDs(results))
}

func TestScheduler_Run_MissingBaselineExcluded(t *testing.T) {
	units := makeUnits(3)
	baselines := domain.NewBaselineStore()
	baselines.Put(domain.HistoricalBaseline{UnitName: "District 01"})
	baselines.Put(domain.HistoricalBaseline{UnitName: "District 03"})

	s := newScheduler(&mockBackend{}, baselines, clockwork.NewRealClock(), 5, 0)

	results, err := s.Run(context.Background(), units, domain.Precipitation, testStart, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"u01", "u03"}, unitIDs(results))
}

func TestScheduler_Run_CombinedInvariant(t *testing.T) {
	units := makeUnits(1)
	baselines := domain.NewBaselineStore()
	b := domain.HistoricalBaseline{UnitName: "District 01"}
	for i := range b.Precipitation {
		b.Precipitation[i] = 60
	}
	baselines.Put(b)

	backend := &mockBackend{
		samples: map[string][]domain.ForecastSample{
			"u01": {{UnitID: "u01", Run: testStart, Hour: 1, Value: 0.01}},
		},
		reductions: map[string]analysis.ReductionValue{
			"u01": {Raw: 0.070, OK: true}, // 70 mm per observed month
		},
	}
	s := newScheduler(backend, baselines, clockwork.NewRealClock(), 5, 0)

	results, err := s.Run(context.Background(), units, domain.Precipitation, testStart, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Valid)
	assert.InDelta(t, 3*(70-60), r.PastDiff, 1e-9)
	// Aug 26 + 16 days crosses into September: 6/31 of Aug + 10/30 of Sep.
	forecastBaseline := 60.0/31*6 + 60.0/30*10
	assert.InDelta(t, 0.01*3600-forecastBaseline, r.ForecastDiff, 1e-9)
	assert.InDelta(t, r.PastDiff+r.ForecastDiff, r.CombinedDiff, 1e-9)
}

func TestScheduler_Run_ThrottlesBetweenBatches(t *testing.T) {
	units := makeUnits(2)
	clock := clockwork.NewFakeClock()
	backend := &mockBackend{}
	s := newScheduler(backend, makeBaselines(units), clock, 1, 5*time.Second)

	done := make(chan []domain.AnomalyResult, 1)
	go func() {
		results, err := s.Run(context.Background(), units, domain.Precipitation, testStart, nil)
		assert.NoError(t, err)
		done <- results
	}()

	// The scheduler must suspend on the throttle before batch 2.
	clock.BlockUntil(1)
	assert.Equal(t, 1, backend.calls(), "second batch must not start during the delay")

	clock.Advance(5 * time.Second)
	select {
	case results := <-done:
		assert.Len(t, results, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after the throttle delay elapsed")
	}
}

func TestScheduler_Run_CancelledDuringThrottle(t *testing.T) {
	units := makeUnits(2)
	clock := clockwork.NewFakeClock()
	s := newScheduler(&mockBackend{}, makeBaselines(units), clock, 1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var results []domain.AnomalyResult
	go func() {
		var err error
		results, err = s.Run(ctx, units, domain.Precipitation, testStart, nil)
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, results, 1, "completed batches are kept")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}

func TestScheduler_Run_CancelledBeforeStart(t *testing.T) {
	units := makeUnits(2)
	s := newScheduler(&mockBackend{}, makeBaselines(units), clockwork.NewRealClock(), 5, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.Run(ctx, units, domain.Precipitation, testStart, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
