// Package zonal talks to the remote geospatial aggregation backend: zonal
// raster reductions over district footprints and forecast sample extraction.
package zonal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

var (
	errServerError = errors.New("zonal backend server error")
	errRateLimited = errors.New("zonal backend rate limited")
	errTransport   = errors.New("zonal backend unreachable")
	errCircuitOpen = errors.New("zonal backend circuit open")
)

// Client implements analysis.Aggregator over the backend's HTTP API. The
// backend is rate limited and occasionally flaky, so requests run behind
// a circuit breaker with a small bounded retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics

	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a zonal backend client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "zonal-backend",
			Timeout: 30 * time.Second,
		}),
		logger:     logger,
		metrics:    metrics,
		maxRetries: 2,
		retryDelay: 100 * time.Millisecond,
	}
}

// ForecastSamples fetches every stored forecast sample for the units.
// Run selection happens in the domain layer, so all runs come back.
func (c *Client) ForecastSamples(ctx context.Context, unitIDs []string, p domain.Parameter) (map[string][]domain.ForecastSample, error) {
	req := forecastRequest{Units: unitIDs, Parameter: string(p)}
	var resp forecastResponse
	if err := c.doJSON(ctx, "forecast", "/v1/forecast", req, &resp); err != nil {
		return nil, err
	}

	samples := make(map[string][]domain.ForecastSample, len(unitIDs))
	for _, s := range resp.Samples {
		samples[s.Unit] = append(samples[s.Unit], domain.ForecastSample{
			UnitID: s.Unit,
			Run:    s.Run,
			Hour:   s.Hour,
			Value:  s.Value,
		})
	}
	return samples, nil
}

// MonthlyReduction reduces one monthly observation raster over each
// unit's footprint: a sum for precipitation, a mean for temperature.
func (c *Client) MonthlyReduction(ctx context.Context, unitIDs []string, period time.Time, p domain.Parameter) (map[string]analysis.ReductionValue, error) {
	statistic := "sum"
	if p == domain.Temperature {
		statistic = "mean"
	}

	req := reduceRequest{
		Units:     unitIDs,
		Period:    period.Format("2006-01"),
		Parameter: string(p),
		Statistic: statistic,
	}
	var resp reduceResponse
	if err := c.doJSON(ctx, "reduce", "/v1/reduce", req, &resp); err != nil {
		return nil, err
	}

	values := make(map[string]analysis.ReductionValue, len(resp.Values))
	for _, v := range resp.Values {
		if v.Value == nil {
			values[v.Unit] = analysis.ReductionValue{}
			continue
		}
		values[v.Unit] = analysis.ReductionValue{Raw: *v.Value, OK: true}
	}
	return values, nil
}

// doJSON posts a JSON request through the circuit breaker, retrying
// transient failures (429, 5xx, transport errors) with exponential
// backoff. An open breaker fails fast without consuming retries.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respOut any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		body, err := c.attempt(ctx, path, payload)
		c.metrics.ZonalAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		if err == nil {
			c.metrics.ZonalRequests.WithLabelValues(method, "success").Inc()
			if err := json.Unmarshal(body, respOut); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
			return nil
		}

		c.metrics.ZonalRequests.WithLabelValues(method, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) {
			return err
		}

		lastErr = err
		if attempt < c.maxRetries {
			c.logger.Warn("zonal request failed, retrying",
				"method", method, "attempt", attempt+1, "delay", delay, "error", err)
			if !sleepWithContext(ctx, delay) {
				return ctx.Err()
			}
			delay *= 2
		}
	}
	return fmt.Errorf("%s request failed after %d attempts: %w", method, c.maxRetries+1, lastErr)
}

// attempt performs one HTTP exchange inside the breaker.
func (c *Client) attempt(ctx context.Context, path string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errTransport, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			data, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("zonal backend error: status %d: %s", resp.StatusCode, data)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func retryable(err error) bool {
	return errors.Is(err, errRateLimited) ||
		errors.Is(err, errServerError) ||
		errors.Is(err, errTransport)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Wire types.

type forecastRequest struct {
	Units     []string `json:"units"`
	Parameter string   `json:"parameter"`
}

type forecastResponse struct {
	Samples []forecastSample `json:"samples"`
}

type forecastSample struct {
	Unit  string    `json:"unit"`
	Run   time.Time `json:"run"`
	Hour  int       `json:"hour"`
	Value float64   `json:"value"`
}

type reduceRequest struct {
	Units     []string `json:"units"`
	Period    string   `json:"period"` // YYYY-MM
	Parameter string   `json:"parameter"`
	Statistic string   `json:"statistic"` // "sum" or "mean"
}

type reduceResponse struct {
	Values []reduceValue `json:"values"`
}

type reduceValue struct {
	Unit  string   `json:"unit"`
	Value *float64 `json:"value"` // null when the reduction was empty
}
