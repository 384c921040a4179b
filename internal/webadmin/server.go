// Package webadmin is the local admin surface: health, Prometheus metrics,
// and the model-quota dashboard endpoints.
package webadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
)

// QuotaSource exposes the model policy's current view for the dashboard.
type QuotaSource interface {
	Snapshots() map[string]*modelpolicy.QuotaSnapshot
	Blocks() map[string]modelpolicy.RateLimitBlock
}

// Server is the admin HTTP server.
type Server struct {
	addr   string
	quota  QuotaSource
	logger zerolog.Logger

	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	started time.Time
}

// Config holds server configuration.
type Config struct {
	Host   string
	Port   int
	Quota  QuotaSource
	Logger zerolog.Logger
}

// NewServer creates the admin server without starting it.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Quota == nil {
		return nil, fmt.Errorf("quota source is required")
	}

	s := &Server{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		quota:  cfg.Quota,
		logger: cfg.Logger.With().Str("component", "webadmin").Logger(),
		upgrader: websocket.Upgrader{
			// The admin surface binds to localhost; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/api/quota", s.handleQuota)
	mux.HandleFunc("/ws/quota", s.handleQuotaFeed)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Admin server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Admin server failed")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	uptime := time.Since(s.started)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": uptime.Round(time.Second).String(),
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, quotaPayload(s.quota))
}

// handleQuotaFeed streams the quota view over a websocket every few seconds
// until the client goes away.
func (s *Server) handleQuotaFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(quotaPayload(s.quota)); err != nil {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func quotaPayload(quota QuotaSource) map[string]interface{} {
	return map[string]interface{}{
		"snapshots": quota.Snapshots(),
		"blocks":    quota.Blocks(),
		"as_of":     time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
