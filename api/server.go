// Package api provides the HTTP API server for DealMargin.
// It validates request shape, delegates to the decision engines, and renders
// their value objects as JSON; no pricing logic lives here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal-margin/decision/bom"
	"deal-margin/decision/deal"
	"deal-margin/decision/logreg"
	"deal-margin/decision/recommend"
	"deal-margin/decision/scenario"
	"deal-margin/decision/training"
	"deal-margin/pkg/margins"
)

// DealStore supplies and accepts closed-deal history.
type DealStore interface {
	ListClosedDeals(ctx context.Context, customerID string) ([]deal.HistoricalDeal, error)
	BulkInsertDeals(ctx context.Context, customerID string, deals []deal.HistoricalDeal) error
	Ping(ctx context.Context) error
}

// ModelStore supplies and accepts trained model packages.
type ModelStore interface {
	GetPackage(ctx context.Context, customerID string) (*training.Package, error)
	SavePackage(ctx context.Context, pkg *training.Package) error
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	deals      DealStore
	models     ModelStore
	engine     *recommend.Engine
	pipeline   *training.Pipeline
	config     *Config
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server. Zero-valued config fields fall back to
// their defaults, so a caller may set only what it cares about.
func NewServer(deals DealStore, models ModelStore, engine *recommend.Engine, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxRequestSize == 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = defaults.CORSOrigins
	}
	return &Server{
		deals:    deals,
		models:   models,
		engine:   engine,
		pipeline: training.NewPipeline(dealSourceAdapter{deals}, models, logreg.Options{}),
		config:   config,
	}
}

// dealSourceAdapter narrows DealStore to what the training pipeline needs.
type dealSourceAdapter struct{ store DealStore }

func (a dealSourceAdapter) ListClosedDeals(ctx context.Context, customerID string) ([]deal.HistoricalDeal, error) {
	return a.store.ListClosedDeals(ctx, customerID)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/api/v1/recommend", s.handleRecommend)
	mux.HandleFunc("/api/v1/bom/optimize", s.handleBomOptimize)
	mux.HandleFunc("/api/v1/train", s.handleTrain)
	mux.HandleFunc("/api/v1/deals/import", s.handleDealsImport)

	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	fmt.Printf("🚀 DealMargin API server starting on port %d\n", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server with graceful shutdown handling.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		fmt.Println("\n📴 Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		fmt.Printf("%s %s %s %s\n", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.deals.Ping(ctx); err != nil {
		s.jsonError(w, http.StatusServiceUnavailable, "deal store not ready")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// RECOMMEND ENDPOINT
// =============================================================================

// RecommendRequest is the API request for a margin recommendation.
type RecommendRequest struct {
	CustomerID       string           `json:"customer_id"`
	Deal             deal.DealContext `json:"deal"`
	PlannedMarginPct *margins.Percent `json:"planned_margin_pct,omitempty"`
}

// RecommendResponse is the API response for a margin recommendation.
type RecommendResponse struct {
	Recommendation *recommend.Recommendation `json:"recommendation"`
	Scenario       *scenario.Comparison      `json:"scenario,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Deal.OEMCost <= 0 {
		s.jsonError(w, http.StatusBadRequest, "deal.oem_cost must be positive")
		return
	}

	ctx := r.Context()

	// History and model package are optional inputs: their absence only
	// narrows which recommendation path answers.
	var history []deal.HistoricalDeal
	var pkg *training.Package
	if req.CustomerID != "" {
		var err error
		history, err = s.deals.ListClosedDeals(ctx, req.CustomerID)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load deal history: %v", err))
			return
		}
		pkg, err = s.models.GetPackage(ctx, req.CustomerID)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load model package: %v", err))
			return
		}
	}

	rec := s.engine.ComputeRecommendation(ctx, req.Deal, history, pkg)

	resp := RecommendResponse{Recommendation: rec}
	if req.PlannedMarginPct != nil {
		cmp := scenario.Compare(req.Deal, *req.PlannedMarginPct, rec.SuggestedMarginPct)
		resp.Scenario = &cmp
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// =============================================================================
// BOM ENDPOINT
// =============================================================================

// BomOptimizeRequest is the API request for BOM margin allocation.
type BomOptimizeRequest struct {
	Lines   []bom.Line  `json:"lines"`
	Context bom.Context `json:"context"`
}

func (s *Server) handleBomOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req BomOptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	s.jsonResponse(w, http.StatusOK, bom.Optimize(req.Lines, req.Context))
}

// =============================================================================
// TRAINING ENDPOINT
// =============================================================================

// TrainRequest is the API request to retrain a customer's model.
type TrainRequest struct {
	CustomerID string `json:"customer_id"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.CustomerID == "" {
		s.jsonError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	result, err := s.pipeline.TrainCustomerModel(r.Context(), req.CustomerID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("training failed: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// =============================================================================
// IMPORT ENDPOINT
// =============================================================================

// DealsImportRequest is the API request to bulk-load closed deals.
type DealsImportRequest struct {
	CustomerID string                `json:"customer_id"`
	Deals      []deal.HistoricalDeal `json:"deals"`
}

func (s *Server) handleDealsImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req DealsImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.CustomerID == "" {
		s.jsonError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if len(req.Deals) == 0 {
		s.jsonError(w, http.StatusBadRequest, "deals must not be empty")
		return
	}

	if err := s.deals.BulkInsertDeals(r.Context(), req.CustomerID, req.Deals); err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"imported": len(req.Deals),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
