// Package server is the HTTP and websocket API of the note tracker.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/server/handler"
	"github.com/alanyoungcy/dualtrack/internal/server/middleware"
	"github.com/alanyoungcy/dualtrack/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	CORSOrigins     []string
	APIKey          string // empty disables auth
	RateLimit       int    // write requests per window per client; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health *handler.HealthHandler
	Assets *handler.AssetHandler
	Trades *handler.TradeHandler
	Settle *handler.SettleHandler
	Stats  *handler.StatsHandler
	Cron   *handler.CronHandler
	Debug  *handler.DebugHandler
}

// Server wraps the http.Server and its routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain
// CORS, Logging, Auth, RateLimit (outermost first). metrics and hub may be
// nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, metrics http.Handler, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/assets", h.Assets.ListAssets)
	mux.HandleFunc("POST /api/assets", h.Assets.UpsertAsset)

	mux.HandleFunc("GET /api/trades", h.Trades.ListTrades)
	mux.HandleFunc("POST /api/trades", h.Trades.CreateTrade)
	mux.HandleFunc("DELETE /api/trades", h.Trades.DeleteTrade)
	mux.HandleFunc("GET /api/trades/{id}", h.Trades.GetTrade)
	mux.HandleFunc("DELETE /api/trades/{id}", h.Trades.DeleteTrade)

	mux.HandleFunc("POST /api/settle", h.Settle.Settle)

	mux.HandleFunc("GET /api/stats", h.Stats.GetStats)
	mux.HandleFunc("GET /api/price", h.Stats.GetPrice)

	mux.HandleFunc("GET /api/cron", h.Cron.RunScan)
	mux.HandleFunc("POST /api/cron", h.Cron.RunScan)

	mux.HandleFunc("GET /api/debug", h.Debug.Debug)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var chain http.Handler = mux
	chain = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(chain)
	chain = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(chain)
	chain = middleware.Logging(logger)(chain)
	chain = middleware.CORS(cfg.CORSOrigins)(chain)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           chain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
