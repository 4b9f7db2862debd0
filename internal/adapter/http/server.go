package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/report"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Dashboards validates selections and renders their dashboards.
type Dashboards interface {
	Select(year, state string) (domain.Selection, error)
	Regions() []string
	Years(ctx context.Context) ([]int, error)
	Dashboard(ctx context.Context, sel domain.Selection) (*report.Dashboard, error)
}

// Server exposes the dashboard page, boundary GeoJSON, health, readiness,
// and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	dashboards Dashboards
	boundaries domain.BoundaryProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /, /boundaries/{state}, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, ready ReadinessChecker, dashboards Dashboards, boundaries domain.BoundaryProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dashboards: dashboards,
		boundaries: boundaries,
		logger:     logger,
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /boundaries/{state}", s.handleBoundary)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	years, err := s.dashboards.Years(r.Context())
	if err != nil {
		s.logger.Error("load dataset", "error", err)
		http.Error(w, "dataset unavailable", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	page := report.PageData{
		Years:   years,
		Regions: s.dashboards.Regions(),
		Year:    q.Get("year"),
		State:   q.Get("state"),
	}
	if page.Year == "" || page.State == "" {
		s.writePage(w, http.StatusOK, page)
		return
	}

	sel, err := s.dashboards.Select(page.Year, page.State)
	if err != nil {
		page.Message = err.Error()
		s.writePage(w, http.StatusBadRequest, page)
		return
	}

	d, err := s.dashboards.Dashboard(r.Context(), sel)
	switch {
	case errors.Is(err, domain.ErrNoPlants):
		page.Message = fmt.Sprintf("No plant data found for %s in %d.", sel.DisplayName(), sel.Year.Year)
	case err != nil:
		s.logger.Error("render dashboard", "year", sel.Year.Year, "state", sel.Code, "error", err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	default:
		page.Dashboard = d
	}
	s.writePage(w, http.StatusOK, page)
}

func (s *Server) writePage(w http.ResponseWriter, status int, page report.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := report.WritePage(w, page); err != nil {
		s.logger.Error("write page", "error", err)
	}
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	region, code, err := domain.ResolveRegion(r.PathValue("state"), s.boundaries)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	mp, err := s.boundaries.Boundary(region)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	f := geojson.NewFeature(mp)
	f.Properties["name"] = domain.TitleCase(region)
	f.Properties["code"] = code
	fc := geojson.NewFeatureCollection().Append(f)

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fc) //nolint:errcheck // client may have gone away
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
