package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIServer exposes the engine's operations over HTTP
type APIServer struct {
	engine *Engine
	cfg    *Config
}

// NewAPIServer wires the engine to the HTTP surface
func NewAPIServer(engine *Engine, cfg *Config) *APIServer {
	return &APIServer{engine: engine, cfg: cfg}
}

// Router builds the full route table with the middleware chain:
// request ID -> rate limit -> body limit -> metrics -> optional node auth
func (s *APIServer) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.HealthCheckHandler).Methods("GET")
	router.HandleFunc("/api/nodes", s.GetNodesHandler).Methods("GET")
	router.HandleFunc("/api/nodes", s.RegisterNodeHandler).Methods("POST")
	router.HandleFunc("/api/allocations", s.CreateAllocationHandler).Methods("POST")
	router.HandleFunc("/api/releases", s.CreateReleaseHandler).Methods("POST")
	router.HandleFunc("/api/blocks", s.GetBlocksHandler).Methods("GET")
	router.HandleFunc("/api/chain/validate", s.ValidateChainHandler).Methods("GET")
	router.HandleFunc("/api/audit", s.GetAuditHandler).Methods("GET")
	router.HandleFunc("/api/status", s.GetStatusHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	limiter := NewIPRateLimiter(s.cfg.RateLimitPerMinute)

	var handler http.Handler = router
	if s.cfg.RequireNodeAuth {
		handler = NodeAuthMiddleware(s.engine.VerifyToken)(handler)
	}
	handler = MetricsMiddleware(handler)
	handler = BodySizeLimitMiddleware(s.cfg.MaxBodySizeBytes)(handler)
	handler = RateLimitMiddleware(limiter)(handler)
	handler = RequestIDMiddleware(handler)

	return otelhttp.NewHandler(handler, "rationd-api")
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully within the configured timeout
func (s *APIServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting HTTP API server", "port", s.cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeJSON encodes a response body, logging encode failures
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the core error kinds onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var consensusErr *ConsensusRejectedError
	var integrityErr *IntegrityError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": validationErr.Error(),
		})
	case errors.As(err, &consensusErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": consensusErr.Error(),
			"votes": consensusErr.Details,
		})
	case errors.As(err, &integrityErr):
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": integrityErr.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// HealthCheckHandler handles health check requests
func (s *APIServer) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"blocks":  s.engine.Status().Blocks,
		"time":    time.Now().Unix(),
		"version": "1.0.0",
	})
}

// GetNodesHandler returns the per-node ledger summary
func (s *APIServer) GetNodesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": s.engine.Nodes(),
	})
}

type registerNodeRequest struct {
	NodeID string             `json:"node_id"`
	Quotas map[string]float64 `json:"quotas"`
}

// RegisterNodeHandler registers a participant through the full pipeline
func (s *APIServer) RegisterNodeHandler(w http.ResponseWriter, r *http.Request) {
	var req registerNodeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	if !IsValidNodeID(req.NodeID) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid node id",
		})
		return
	}

	quotas, err := parseQuotas(req.Quotas)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := s.engine.RegisterParticipant(r.Context(), req.NodeID, quotas)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"receipt": receipt,
	})
}

type resourceChangeRequest struct {
	NodeID   string  `json:"node_id"`
	Resource string  `json:"resource"`
	Amount   float64 `json:"amount"`
}

// CreateAllocationHandler proposes a resource allocation
func (s *APIServer) CreateAllocationHandler(w http.ResponseWriter, r *http.Request) {
	s.handleResourceChange(w, r, s.engine.ProposeAllocation)
}

// CreateReleaseHandler proposes a resource release
func (s *APIServer) CreateReleaseHandler(w http.ResponseWriter, r *http.Request) {
	s.handleResourceChange(w, r, s.engine.ProposeRelease)
}

func (s *APIServer) handleResourceChange(w http.ResponseWriter, r *http.Request, propose func(context.Context, string, ResourceType, float64) (*BlockReceipt, error)) {
	var req resourceChangeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	resource, err := ParseResourceType(req.Resource)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := propose(r.Context(), req.NodeID, resource, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"receipt": receipt,
	})
}

// GetBlocksHandler returns the full block chain
func (s *APIServer) GetBlocksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": s.engine.Chain(),
	})
}

// ValidateChainHandler re-validates the chain end to end
func (s *APIServer) ValidateChainHandler(w http.ResponseWriter, r *http.Request) {
	valid, reason := s.engine.ValidateChain()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  valid,
		"reason": reason,
	})
}

// GetAuditHandler returns the audit trail
func (s *APIServer) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": s.engine.AuditEvents(),
	})
}

// GetStatusHandler returns the engine status summary
func (s *APIServer) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// parseQuotas converts a string-keyed quota map from a request body into
// typed resource kinds, rejecting unknown kinds
func parseQuotas(raw map[string]float64) (map[ResourceType]float64, error) {
	quotas := make(map[ResourceType]float64, len(raw))
	for name, amount := range raw {
		resource, err := ParseResourceType(name)
		if err != nil {
			return nil, err
		}
		quotas[resource] = amount
	}
	return quotas, nil
}
