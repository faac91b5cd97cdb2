package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ServerConfig wires the API server
type ServerConfig struct {
	Engine   EngineInterface
	Commands CommandSink
	Frames   FrameEncoder

	RateLimit      RateLimitConfig
	AllowedOrigins []string
	AdminToken     string
	MaxWSConns     int
	BroadcastHz    int

	// OnStats runs on every broadcast tick (used to sync event log counters)
	OnStats func()

	DisableLogging bool
	Logger         zerolog.Logger
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	cfg         ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	log         zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new API server.
// Background workers do NOT start until Start is called, so tests can use Router directly.
func NewServer(cfg ServerConfig) *Server {
	admin := NewAdminGuard(cfg.AdminToken, cfg.Logger)
	s := &Server{
		cfg:         cfg,
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
		log:         cfg.Logger.With().Str("component", "api").Logger(),
	}
	s.wsHub = NewWebSocketHub(WSConfig{
		MaxConnections: cfg.MaxWSConns,
		AllowedOrigins: cfg.AllowedOrigins,
		BroadcastHz:    cfg.BroadcastHz,
		PlayerSlots:    cfg.Engine.PlayerSlots(),
	}, cfg.Commands, admin, cfg.Logger)

	s.router = NewRouter(RouterConfig{
		Engine:         cfg.Engine,
		Commands:       cfg.Commands,
		Frames:         cfg.Frames,
		RateLimiter:    s.rateLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Admin:          admin,
		DisableLogging: cfg.DisableLogging,
		Logger:         cfg.Logger,
	})

	// WebSocket route needs the hub instance
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start starts background workers and serves on addr until Shutdown.
// It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.Engine, s.cfg.OnStats)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	return srv.Serve(ln)
}

// Shutdown stops accepting requests, waits for in-flight ones and stops background workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return err
}
