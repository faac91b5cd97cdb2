package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

// EngineInterface defines the game engine methods used by the API.
// Keep this minimal so tests can substitute a fake.
type EngineInterface interface {
	// GetSnapshot returns a private copy of the latest snapshot
	GetSnapshot() *game.Snapshot
	GetStats() game.EngineStats
	Levels() []game.Level
	PlayerSlots() int
	Pause()
	Resume()
	Paused() bool
	NewGame(seed int64) error
}

// CommandSink accepts player commands for asynchronous processing (input.CommandQueue)
type CommandSink interface {
	Enqueue(cmd input.Command) error
	Stats() input.QueueStats
}

// FrameEncoder rasterizes a snapshot as PNG
type FrameEncoder interface {
	EncodePNG(w io.Writer, snap *game.Snapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine:   engine,
//	    Commands: queue,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Commands receives intents from POST /api/intent (required)
	Commands CommandSink

	// Frames renders /api/frame.png; nil disables the route
	Frames FrameEncoder

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig (or DefaultRateLimitConfig).
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// AllowedOrigins for CORS and WebSocket upgrades; empty allows any
	AllowedOrigins []string

	// Admin guards control routes; nil or a guard without token disables the check
	Admin *AdminGuard

	// DisableLogging disables the request logger middleware (useful for benchmarks)
	DisableLogging bool

	Logger zerolog.Logger
}

// routerHandlers holds the dependencies the handlers need
type routerHandlers struct {
	engine   EngineInterface
	commands CommandSink
	frames   FrameEncoder
	limiter  *IPRateLimiter
	admin    *AdminGuard
	log      zerolog.Logger
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It starts no goroutines beyond the rate limiter's cleanup loop and opens no listeners,
// so it is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := NewOriginChecker(cfg.AllowedOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Token"},
		AllowCredentials: true,
	}))

	admin := cfg.Admin
	if admin == nil {
		admin = NewAdminGuard("", cfg.Logger)
	}

	h := &routerHandlers{
		engine:   cfg.Engine,
		commands: cfg.Commands,
		frames:   cfg.Frames,
		limiter:  rateLimiter,
		admin:    admin,
		log:      cfg.Logger.With().Str("component", "api").Logger(),
	}

	r.Route("/api", func(r chi.Router) {
		// Game state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/levels", h.handleGetLevels)
		if h.frames != nil {
			r.Get("/frame.png", h.handleGetFrame)
		}

		// Player intents
		r.Post("/intent", h.handleIntent)

		// Game control
		r.Route("/game", func(r chi.Router) {
			r.Use(admin.Middleware)
			r.Post("/new", h.handleNewGame)
			r.Post("/pause", h.handlePause)
			r.Post("/resume", h.handleResume)
		})

		// Admin session
		r.Get("/auth/status", admin.HandleAuthStatus)
		r.Post("/auth/login", admin.HandleLogin)
		r.Post("/auth/logout", admin.HandleLogout)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
