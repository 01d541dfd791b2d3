package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c360/opscore/auth"
	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/event"
)

// Server exposes the resolver over HTTP. Queries and mutations go through
// a JSON endpoint; subscriptions are bridged over WebSocket.
type Server struct {
	config     Config
	resolver   *Resolver
	logger     *slog.Logger
	metrics    http.Handler
	httpServer *http.Server
	mux        *http.ServeMux

	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates the gateway HTTP server.
func NewServer(config Config, resolver *Resolver, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapValidation(err, "Server", "NewServer", "config validation")
	}

	if resolver == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "Server", "NewServer",
			"resolver is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		resolver: resolver,
		logger:   logger,
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}, nil
}

// SetMetricsHandler exposes a /metrics endpoint. Call before Setup.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = h
}

// Setup configures routes and builds the underlying HTTP server.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc(s.config.QueryPath, s.handleQuery)
	s.mux.HandleFunc(s.config.SubscribePath, s.handleSubscribe)

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}

	var handler http.Handler = s.mux
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.BindAddress,
		Handler:      handler,
		ReadTimeout:  s.config.Timeout(),
		WriteTimeout: s.config.Timeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Server configured",
		"address", s.config.BindAddress,
		"query_path", s.config.QueryPath,
		"subscribe_path", s.config.SubscribePath,
		"timeout", s.config.Timeout())

	return nil
}

// Start runs the HTTP server until ctx is cancelled or Stop is called.
// The ready channel is closed when the server is about to accept connections.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapValidation(errors.ErrInvalidConfig, "Server", "Start",
			"server already running")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("Server starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("Server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapUpstream(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Server stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", "error", err)
		return errors.WrapUpstream(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// queryRequest is the JSON envelope for the query/mutation endpoint. One
// request names one operation; the resolver does the rest.
type queryRequest struct {
	Operation string `json:"operation"`

	ID     string   `json:"id,omitempty"`
	IDs    []string `json:"ids,omitempty"`
	CaseID string   `json:"case_id,omitempty"`

	Severity    event.Severity `json:"severity,omitempty"`
	Criticality float64        `json:"criticality,omitempty"`

	Seed     string  `json:"seed,omitempty"`
	MaxDepth int     `json:"max_depth,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// queryResponse wraps either the operation's data or a user-facing error.
type queryResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Class   string `json:"class"`
}

// handleQuery dispatches one operation per POST body. Each request gets its
// own loader scope so batching and memoization never cross requests.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.WrapValidation(err, "Server", "handleQuery", "request decode"))
		return
	}

	if len(req.IDs) > s.config.MaxBatchIDs {
		s.writeError(w, errors.WrapValidation(errors.ErrInvalidConfig, "Server", "handleQuery",
			fmt.Sprintf("batch of %d ids exceeds limit %d", len(req.IDs), s.config.MaxBatchIDs)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout())
	defer cancel()
	ctx = auth.WithPrincipal(ctx, principalFromRequest(r))

	scope, err := s.resolver.NewScope()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer scope.Close()

	data, err := s.dispatch(ctx, scope, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, queryResponse{Data: data})
}

func (s *Server) dispatch(ctx context.Context, scope *Scope, req queryRequest) (any, error) {
	switch req.Operation {
	case "alertById":
		return s.resolver.AlertByID(ctx, scope, req.ID)
	case "alertsByIds":
		return s.resolver.AlertsByIDs(ctx, scope, req.IDs)
	case "alertsByCase":
		return s.resolver.AlertsByCase(ctx, scope, req.CaseID)
	case "caseById":
		return s.resolver.CaseByID(ctx, scope, req.ID)
	case "assetById":
		return s.resolver.AssetByID(ctx, scope, req.ID)
	case "updateAlertSeverity":
		return s.resolver.UpdateAlertSeverity(ctx, scope, req.ID, req.Severity)
	case "closeCase":
		return s.resolver.CloseCase(ctx, scope, req.ID)
	case "revalueAsset":
		return s.resolver.RevalueAsset(ctx, scope, req.ID, req.Criticality)
	case "correlatedEntities":
		return s.resolver.CorrelatedEntities(ctx, req.Seed, req.MaxDepth, req.MinScore)
	default:
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "Server", "dispatch",
			fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// user-facing message rather than internal error detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	class := errors.Classify(err)

	status := http.StatusBadGateway
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsAuthorization(err):
		status = http.StatusForbidden
	case errors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "class", class.String(), "error", err)
	}

	s.writeJSON(w, status, queryResponse{Error: &errorBody{
		Message: errors.UserMessage(err),
		Class:   class.String(),
	}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// principalFromRequest builds the caller identity from request headers.
// Anything real sits behind an authenticating proxy that sets these.
func principalFromRequest(r *http.Request) auth.Principal {
	p := auth.Principal{Subject: r.Header.Get("X-Subject")}
	if roles := r.Header.Values("X-Role"); len(roles) > 0 {
		p.Roles = roles
	}
	return p
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
