package analysis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

type mockSink struct {
	mu        sync.Mutex
	params    []domain.Parameter
	published [][]domain.AnomalyResult
}

func (m *mockSink) PublishResults(_ context.Context, p domain.Parameter, results []domain.AnomalyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = append(m.params, p)
	m.published = append(m.published, results)
	return nil
}

func (m *mockSink) calls() []domain.Parameter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Parameter(nil), m.params...)
}

func newService(t *testing.T, backend analysis.Aggregator, units []domain.SpatialUnit, metrics *observability.Metrics, sink analysis.ResultSink) *analysis.Service {
	t.Helper()
	clock := clockwork.NewRealClock()
	scheduler := analysis.NewScheduler(backend, makeBaselines(units), testLogger(), metrics, clock, 5, 0)
	return analysis.NewService(context.Background(), scheduler, units, testLogger(), metrics, clock, sink)
}

func waitDone(t *testing.T, svc *analysis.Service, gen uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := svc.Status()
		return st.State == analysis.StateDone && st.Generation == gen
	}, 5*time.Second, 10*time.Millisecond, "run %d did not finish", gen)
}

func TestService_StartAndCommit(t *testing.T) {
	units := makeUnits(7)
	sink := &mockSink{}
	svc := newService(t, &mockBackend{}, units, observability.NewMetricsForTesting(), sink)

	assert.Equal(t, analysis.StatePending, svc.Status().State)

	gen, err := svc.Start(domain.Precipitation)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	waitDone(t, svc, gen)

	st := svc.Status()
	assert.Equal(t, 2, st.Total, "ceil(7/5) batches")
	assert.Equal(t, 2, st.Batch)
	assert.Equal(t, 7, st.ValidUnits)

	p, results, ok := svc.Results()
	require.True(t, ok)
	assert.Equal(t, domain.Precipitation, p)
	assert.Len(t, results, 7)

	r, ok := svc.ResultFor("u03")
	require.True(t, ok)
	assert.Equal(t, "District 03", r.UnitName)

	_, ok = svc.ResultFor("u99")
	assert.False(t, ok)

	assert.Equal(t, []domain.Parameter{domain.Precipitation}, sink.calls())
}

func TestService_InvalidParameter(t *testing.T) {
	svc := newService(t, &mockBackend{}, makeUnits(1), observability.NewMetricsForTesting(), nil)

	_, err := svc.Start(domain.Parameter("wind"))
	assert.ErrorIs(t, err, analysis.ErrInvalidParameter)
}

func TestService_ResultsBeforeFirstRun(t *testing.T) {
	svc := newService(t, &mockBackend{}, makeUnits(1), observability.NewMetricsForTesting(), nil)

	_, _, ok := svc.Results()
	assert.False(t, ok)
}

func TestService_StaleRunDiscarded(t *testing.T) {
	units := makeUnits(2)
	metrics := observability.NewMetricsForTesting()
	gate := make(chan struct{})
	blocked := make(chan struct{})
	backend := &mockBackend{
		gate:    gate,
		blocked: blocked,
	}
	sink := &mockSink{}
	svc := newService(t, backend, units, metrics, sink)

	// Run 1 blocks inside its first batch.
	gen1, err := svc.Start(domain.Precipitation)
	require.NoError(t, err)
	<-blocked

	// Run 2 supersedes it and completes normally.
	gen2, err := svc.Start(domain.Temperature)
	require.NoError(t, err)
	assert.Greater(t, gen2, gen1)
	waitDone(t, svc, gen2)

	// Release run 1; its completion must be discarded, not committed.
	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleRuns) == 1
	}, 5*time.Second, 10*time.Millisecond, "stale run was never discarded")

	p, _, ok := svc.Results()
	require.True(t, ok)
	assert.Equal(t, domain.Temperature, p, "stale run must not overwrite the newer result set")
	assert.Equal(t, []domain.Parameter{domain.Temperature}, sink.calls(), "stale run must not publish")
}

func TestService_ReadinessRequiresBoundaries(t *testing.T) {
	svc := newService(t, &mockBackend{}, nil, observability.NewMetricsForTesting(), nil)
	assert.Error(t, svc.CheckReadiness(context.Background()))

	svc = newService(t, &mockBackend{}, makeUnits(1), observability.NewMetricsForTesting(), nil)
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}
