// Package http exposes the analysis service to the presentation layer:
// run triggering, progress, finalized results with render scaling, and
// point-click queries, plus health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/geo"
)

// AnalysisService is the surface the handlers need from the analysis layer.
type AnalysisService interface {
	Start(p domain.Parameter) (uint64, error)
	Status() analysis.Status
	Results() (domain.Parameter, []domain.AnomalyResult, bool)
	ResultFor(unitID string) (domain.AnomalyResult, bool)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the analysis API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	service    AnalysisService
	index      *geo.Index
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, service AnalysisService, index *geo.Index, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		index:   index,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/analysis", s.handleStartAnalysis)
	mux.HandleFunc("GET /v1/analysis", s.handleStatus)
	mux.HandleFunc("GET /v1/results", s.handleResults)
	mux.HandleFunc("GET /v1/query", s.handleQuery)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	p := domain.Parameter(r.URL.Query().Get("parameter"))
	gen, err := s.service.Start(p)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"generation": gen,
		"parameter":  p,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// layerEntry is one unit's value and palette position for a layer.
type layerEntry struct {
	UnitID     string  `json:"unit_id"`
	UnitName   string  `json:"unit_name"`
	Value      float64 `json:"value"`
	ColorIndex float64 `json:"color_index"`
}

type resultsResponse struct {
	Parameter domain.Parameter `json:"parameter"`
	Layer     domain.Layer     `json:"layer"`
	MaxAbs    float64          `json:"max_abs"`
	Units     []layerEntry     `json:"units"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	layer := domain.Layer(r.URL.Query().Get("layer"))
	if layer == "" {
		layer = domain.LayerCombined
	}
	if !layer.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown layer"})
		return
	}

	p, results, ok := s.service.Results()
	if !ok || len(results) == 0 {
		// Either no run has finished yet or the run produced zero valid
		// units; both are the "no data" state, not an error.
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "no data"})
		return
	}

	maxAbs := domain.MaxAbs(results, layer)
	units := make([]layerEntry, len(results))
	for i, res := range results {
		v := res.Value(layer)
		units[i] = layerEntry{
			UnitID:     res.UnitID,
			UnitName:   res.UnitName,
			Value:      v,
			ColorIndex: domain.ColorIndex(v, maxAbs),
		}
	}
	writeJSON(w, http.StatusOK, resultsResponse{
		Parameter: p,
		Layer:     layer,
		MaxAbs:    maxAbs,
		Units:     units,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
		return
	}

	writeJSON(w, http.StatusOK, s.index.Query(lat, lon, s.service))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
