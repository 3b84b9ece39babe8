package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/balance/service"
	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/metrics"
	"github.com/wricardo/ksp-balance/transport/websocket"
)

const (
	// DefaultCurveSamples is used when ?samples is omitted.
	DefaultCurveSamples = 21

	maxBodyBytes = 10 << 20
)

// Server represents the REST API server
type Server struct {
	service service.BalanceService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger
}

// NewServer creates a new API server
func NewServer(balanceService service.BalanceService, hub *websocket.Hub, logger *zap.Logger) *Server {
	s := &Server{
		service: balanceService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logging.OrNop(logger),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(metrics.Middleware)
	s.router.Use(s.logRequests)

	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	api := s.router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	// Registry
	api.HandleFunc("/techs", s.handleListTechs).Methods("GET")
	api.HandleFunc("/techs/{name}", s.handleGetTech).Methods("GET")
	api.HandleFunc("/techs/{name}/curve", s.handleTechCurve).Methods("GET")
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/diagnostics", s.handleDiagnostics).Methods("GET")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")

	// Derivation
	api.HandleFunc("/derive", s.handleDerive).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")

	// Runs
	api.HandleFunc("/runs", s.handleStartRun).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleDeleteRun).Methods("DELETE")

	// Operations
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
}

// respondServiceError maps service errors to status codes
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, config.ErrTechNotFound),
		errors.Is(err, runs.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrInvalidRunID),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, runs.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, engine.ErrDomain):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Registry Handlers

func (s *Server) handleListTechs(w http.ResponseWriter, r *http.Request) {
	techs, err := s.service.ListTechs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(techs),
		"techs": techs,
	})
}

func (s *Server) handleGetTech(w http.ResponseWriter, r *http.Request) {
	tech, err := s.service.GetTech(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tech)
}

func (s *Server) handleTechCurve(w http.ResponseWriter, r *http.Request) {
	samples := DefaultCurveSamples
	if raw := r.URL.Query().Get("samples"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("samples must be an integer, got %q", raw))
			return
		}
		samples = n
	}

	curve, err := s.service.TechCurve(r.Context(), mux.Vars(r)["name"], samples)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, curve)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(configs),
		"configs": configs,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.GetConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diags, err := s.service.Diagnostics(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if diags == nil {
		diags = config.Diagnostics{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(diags),
		"diagnostics": diags,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Reload(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if result.Diagnostics == nil {
		result.Diagnostics = config.Diagnostics{}
	}

	respondJSON(w, http.StatusOK, result)
}

// Derivation Handlers

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config string   `json:"config"`
		Size   *float64 `json:"size"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Config == "" || req.Size == nil {
		respondError(w, http.StatusBadRequest, "config and size are required")
		return
	}

	result, err := s.service.Derive(r.Context(), req.Config, *req.Size)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	rows, rowErrs, ok := s.decodeRows(w, r)
	if !ok {
		return
	}

	result, err := s.service.Batch(r.Context(), rows, rowErrs)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Run Handlers

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	rows, rowErrs, ok := s.decodeRows(w, r)
	if !ok {
		return
	}

	run, err := s.service.StartRun(r.Context(), rows, rowErrs)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/runs/"+run.ID)
	respondJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListRuns(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(list),
		"runs":  list,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRun(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeRows reads a part list from a JSON body ({"parts": [...]}) or, with
// Content-Type text/csv, from a CSV body. CSV rows that cannot be read are
// returned next to the good rows so they are reported per row.
func (s *Server) decodeRows(w http.ResponseWriter, r *http.Request) ([]batch.Row, []batch.RowError, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		rows, rowErrs := batch.ReadRows(r.Body)
		for _, e := range rowErrs {
			var tooLarge *http.MaxBytesError
			if errors.As(e.Err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return nil, nil, false
			}
		}
		if len(rowErrs) > 0 {
			s.logger.Debug("skipped unreadable rows", zap.Int("count", len(rowErrs)))
		}
		return rows, rowErrs, true
	}

	var req struct {
		Parts []batch.Row `json:"parts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, nil, false
	}
	return req.Parts, nil, true
}

// Operations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "run parameter required", http.StatusBadRequest)
		return
	}

	run, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	// Late subscribers to a finished run get its final state immediately.
	var greeting *websocket.Message
	if run.Status.Finished() {
		greeting = &websocket.Message{RunID: run.ID, Event: websocket.EventRunComplete, Run: run}
	}

	s.hub.ServeWS(w, r, run.ID, greeting)
}
