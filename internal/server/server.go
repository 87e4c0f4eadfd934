package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"
	"ecosmart-monitor/internal/scheduler"
	"ecosmart-monitor/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Server exposes the monitor over HTTP.
type Server struct {
	router  *mux.Router
	monitor *service.Monitor
	logger  *zap.Logger
	http    *http.Server
}

// New creates the HTTP server and registers all routes.
func New(monitor *service.Monitor, logger *zap.Logger, addr string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		monitor: monitor,
		logger:  logger,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generation/{plotID}/start", s.startGenerationHandler).Methods("POST")
	api.HandleFunc("/generation/{plotID}/stop", s.stopGenerationHandler).Methods("POST")
	api.HandleFunc("/generation/{plotID}/status", s.generationStatusHandler).Methods("GET")
	api.HandleFunc("/sensors/{plotID}", s.latestReadingHandler).Methods("GET")
	api.HandleFunc("/sensors/{plotID}", s.submitReadingHandler).Methods("POST")
	api.HandleFunc("/sensors/{plotID}/history", s.historyHandler).Methods("GET")
	api.HandleFunc("/advanced/{plotID}/{parameter}", s.statSnapshotHandler).Methods("GET")
	api.HandleFunc("/alerts/rules", s.listRulesHandler).Methods("GET")
	api.HandleFunc("/alerts/history", s.alertHistoryHandler).Methods("GET")
}

// Run starts serving and blocks until the listener fails or is shut down.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router returns the route tree, exposed for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// instrument records request count and latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// startRequest carries the acting user for generation control. The legacy
// system took the actor from the session; here the caller states it.
type startRequest struct {
	ActorID int64 `json:"actor_id"`
}

func (s *Server) startGenerationHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActorID == 0 {
		s.writeError(w, http.StatusBadRequest, "actor_id is required")
		return
	}

	alreadyRunning, err := s.monitor.StartGeneration(r.Context(), plotID, req.ActorID)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthorized) {
			s.writeError(w, http.StatusForbidden, err.Error())
			return
		}
		s.logger.Error("Failed to start generation",
			zap.String("plot_id", plotID),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to start generation")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plot_id":         plotID,
		"status":          scheduler.StateRunning,
		"already_running": alreadyRunning,
	})
}

func (s *Server) stopGenerationHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]

	alreadyStopped := s.monitor.StopGeneration(plotID)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plot_id":         plotID,
		"status":          scheduler.StateStopped,
		"already_stopped": alreadyStopped,
	})
}

func (s *Server) generationStatusHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plot_id": plotID,
		"status":  s.monitor.GenerationStatus(plotID),
	})
}

func (s *Server) latestReadingHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]

	reading, err := s.monitor.LatestReading(r.Context(), plotID)
	if err != nil {
		s.logger.Error("Failed to load latest reading",
			zap.String("plot_id", plotID),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load latest reading")
		return
	}
	if reading == nil {
		s.writeError(w, http.StatusNotFound, "no readings for plot")
		return
	}

	s.writeJSON(w, http.StatusOK, reading)
}

func (s *Server) submitReadingHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]

	var reading models.SensorReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reading.PlotID = plotID

	triggered, err := s.monitor.SubmitReading(r.Context(), &reading)
	if err != nil {
		s.logger.Error("Failed to store submitted reading",
			zap.String("plot_id", plotID),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store reading")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"reading":         reading,
		"alert_triggered": triggered,
	})
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	plotID := mux.Vars(r)["plotID"]
	limit := queryLimit(r, defaultHistoryLimit)

	readings, err := s.monitor.History(r.Context(), plotID, limit)
	if err != nil {
		s.logger.Error("Failed to load reading history",
			zap.String("plot_id", plotID),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plot_id":  plotID,
		"count":    len(readings),
		"readings": readings,
	})
}

func (s *Server) statSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	plotID := vars["plotID"]
	parameter := vars["parameter"]

	if !models.IsValidParameter(parameter) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown parameter %q", parameter))
		return
	}

	snapshot, err := s.monitor.StatSnapshot(r.Context(), plotID, parameter)
	if err != nil {
		s.logger.Error("Failed to compute stat snapshot",
			zap.String("plot_id", plotID),
			zap.String("parameter", parameter),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := s.monitor.ListAlertRules(r.Context())
	if err != nil {
		s.logger.Error("Failed to list alert rules", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list alert rules")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rules),
		"rules": rules,
	})
}

func (s *Server) alertHistoryHandler(w http.ResponseWriter, r *http.Request) {
	plotID := r.URL.Query().Get("plot")
	if plotID == "" {
		s.writeError(w, http.StatusBadRequest, "plot query parameter is required")
		return
	}
	limit := queryLimit(r, defaultHistoryLimit)

	events, err := s.monitor.AlertHistory(r.Context(), plotID, limit)
	if err != nil {
		s.logger.Error("Failed to load alert history",
			zap.String("plot_id", plotID),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load alert history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plot_id": plotID,
		"count":   len(events),
		"alerts":  events,
	})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
