// Package api provides the HTTP server for backtest requests.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-backtester/internal/backtest"
	"github.com/atlas-desktop/strategy-backtester/internal/marketdata"
	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	EnableMetrics  bool
}

// Server is the HTTP API server.
type Server struct {
	logger     *zap.Logger
	config     ServerConfig
	router     *mux.Router
	httpServer *http.Server
	runner     *backtest.Runner
	metrics    *apiMetrics
}

// errorResponse is the wire form of every error payload.
type errorResponse struct {
	Detail string `json:"detail"`
}

// NewServer creates the API server around a backtest runner.
func NewServer(logger *zap.Logger, config ServerConfig, runner *backtest.Runner) *Server {
	server := &Server{
		logger:  logger,
		config:  config,
		router:  mux.NewRouter(),
		runner:  runner,
		metrics: newAPIMetrics(),
	}

	server.setupRoutes()
	return server
}

// Router returns the underlying router, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/backtest", s.handleBacktest).Methods(http.MethodPost)
	s.router.HandleFunc("/portfolio-backtest", s.handlePortfolioBacktest).Methods(http.MethodPost)

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req types.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "/backtest", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, "/backtest", statusFor(err), err)
		return
	}

	s.metrics.observe("/backtest", http.StatusOK, time.Since(started))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePortfolioBacktest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req types.PortfolioBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "/portfolio-backtest", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := s.runner.RunPortfolio(r.Context(), req)
	if err != nil {
		s.writeError(w, "/portfolio-backtest", statusFor(err), err)
		return
	}

	s.metrics.observe("/portfolio-backtest", http.StatusOK, time.Since(started))
	s.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps the error taxonomy onto HTTP statuses: validation errors
// reject the request, missing symbols are not found, and any other provider
// failure is a bad gateway.
func statusFor(err error) int {
	var verr *backtest.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, marketdata.ErrNoData) {
		return http.StatusNotFound
	}
	var perr *marketdata.ProviderError
	if errors.As(err, &perr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("endpoint", endpoint), zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("Request rejected", zap.String("endpoint", endpoint), zap.Int("status", status), zap.Error(err))
	}
	s.metrics.observe(endpoint, status, 0)
	s.writeJSON(w, status, errorResponse{Detail: err.Error()})
}
