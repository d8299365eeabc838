package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
	"github.com/speedrun-hq/speedrun-settlement/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
)

// Engine is the read-only part of the settlement engine served over HTTP
type Engine interface {
	GetOrderStatus(orderID string) (settlement.OrderSnapshot, error)
	GetEvidence(user string) []models.OnChainEvidence
	Stats() map[string]int
}

// Server represents a health check HTTP server
type Server struct {
	port            string
	chainIDs        []int
	client          chainclient.Client
	engine          Engine
	circuitBreakers map[int]*circuitbreaker.CircuitBreaker
	metricsAPIKey   string
	logger          logger.Logger
	httpServer      *http.Server
	routes          map[string]http.Handler
}

// NewServer creates a new health check server
func NewServer(port string, chainIDs []int, client chainclient.Client, engine Engine,
	circuitBreakers map[int]*circuitbreaker.CircuitBreaker, metricsAPIKey string, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Server{
		port:            port,
		chainIDs:        chainIDs,
		client:          client,
		engine:          engine,
		circuitBreakers: circuitBreakers,
		metricsAPIKey:   metricsAPIKey,
		logger:          log,
		routes:          make(map[string]http.Handler),
	}
}

// Handle mounts an extra route behind the API key check. Call before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.routes[pattern] = handler
}

// authMiddleware is a middleware that checks for a valid API key
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("GET /orders/{id}", s.handleOrder)
	mux.HandleFunc("GET /evidence", s.handleEvidence)
	mux.HandleFunc("/circuit/reset", s.handleCircuitReset)

	mux.Handle("/metrics", s.authMiddleware(promhttp.Handler()))
	for pattern, handler := range s.routes {
		mux.Handle(pattern, s.authMiddleware(handler))
	}
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Health server shutdown error: %v", err)
		}
	}()

	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server error: %v", err)
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, chainID := range s.chainIDs {
		if _, err := s.client.Read(r.Context(), chainID, chainclient.Query{Kind: chainclient.QueryBlockNumber}); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Chain %d client not connected", chainID)))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]interface{})
	status["orders"] = s.engine.Stats()

	for _, chainID := range s.chainIDs {
		circuitStatus := "closed"
		chainStatus := map[string]interface{}{
			"name": chains.GetChainName(chainID),
		}
		if cb, ok := s.circuitBreakers[chainID]; ok {
			if cb.IsOpen() {
				circuitStatus = "open"
			}
			chainStatus["failure_count"] = cb.State().FailureCount
		}
		chainStatus["circuit"] = circuitStatus

		blockNumber, err := s.client.Read(r.Context(), chainID, chainclient.Query{Kind: chainclient.QueryBlockNumber})
		chainStatus["connected"] = err == nil
		if err == nil {
			chainStatus["latest_block"] = blockNumber
		}

		status[fmt.Sprintf("chain_%d", chainID)] = chainStatus
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	snapshot, err := s.engine.GetOrderStatus(orderID)
	if errors.Is(err, settlement.ErrOrderNotFound) {
		http.Error(w, fmt.Sprintf("Order %s not found", orderID), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing user parameter"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.GetEvidence(user))
}

func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	chainIDStr := r.URL.Query().Get("chain")
	if chainIDStr == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing chain parameter"))
		return
	}

	chainID, err := strconv.Atoi(chainIDStr)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid chain ID"))
		return
	}

	cb, ok := s.circuitBreakers[chainID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker for chain %d", chainID)))
		return
	}

	cb.Reset()
	s.logger.InfoWithChain(chainID, "Circuit breaker reset via admin endpoint")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for chain %d reset", chainID)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding JSON response: %v", err)
	}
}
