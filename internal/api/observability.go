package api

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

// Metrics with bounded cardinality (no per-slot or per-IP labels)
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in game tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_render_duration_seconds",
		Help:    "Time spent rendering a PNG frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_entities",
		Help: "Live entities in the latest snapshot",
	}, []string{"kind"}) // Bounded: "player", "enemy", "projectile", "powerup"

	enemiesRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_enemies_remaining",
		Help: "Enemies still to spawn plus enemies alive",
	})

	gameLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_level",
		Help: "Current level, 1-based",
	})

	roundOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_round_outcomes_total",
		Help: "Level completions and game endings",
	}, []string{"outcome"}) // Bounded by game.Verdict

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "input_commands_total",
		Help: "Player commands received",
	}, []string{"result"}) // Bounded: "queued", "invalid", "dropped", "forbidden"

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or auth",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "unauthorized", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // keep on loopback in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, /metrics and /health
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return handler
}

// StartDebugServer starts the internal observability server. The returned server
// is nil when disabled; callers shut it down with Shutdown.
func StartDebugServer(cfg ObservabilityConfig, logger zerolog.Logger) (*http.Server, error) {
	log := logger.With().Str("component", "debug").Logger()
	if !cfg.Enabled {
		log.Info().Msg("debug server disabled")
		return nil, nil
	}

	// pprof on a public interface is a DoS vector
	if host, _, err := net.SplitHostPort(cfg.ListenAddr); err == nil && !isLoopback(host) {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			_, port, _ := net.SplitHostPort(cfg.ListenAddr)
			cfg.ListenAddr = net.JoinHostPort("127.0.0.1", port)
			log.Warn().Str("addr", cfg.ListenAddr).Msg("debug server forced to localhost")
		}
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("debug server listening (pprof, metrics, health)")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("debug server error")
		}
	}()

	return srv, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestMetrics records latency and status per route pattern
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordTick records tick timing for metrics; install with Engine.SetOnTick
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordVerdict counts a level completion or game ending; install with Engine.SetOnVerdict
func RecordVerdict(v game.Verdict) {
	roundOutcomes.WithLabelValues(v.String()).Inc()
}

// ObserveSnapshot updates the entity gauges from a snapshot
func ObserveSnapshot(snap *game.Snapshot) {
	var players, enemies int
	for _, v := range snap.Vehicles {
		if v.Role == game.RolePlayer {
			players++
		} else {
			enemies++
		}
	}
	entityCount.WithLabelValues("player").Set(float64(players))
	entityCount.WithLabelValues("enemy").Set(float64(enemies))
	entityCount.WithLabelValues("projectile").Set(float64(len(snap.Projectiles)))
	entityCount.WithLabelValues("powerup").Set(float64(len(snap.PowerUps)))
	enemiesRemaining.Set(float64(snap.HUD.EnemiesRemaining))
	gameLevel.Set(float64(snap.HUD.Level))
}

// eventLogCursor turns the event log's absolute totals into counter increments
var eventLogCursor struct {
	sync.Mutex
	total, dropped uint64
}

// UpdateEventLogStats advances the event log counters to the given totals
func UpdateEventLogStats(total, dropped uint64) {
	eventLogCursor.Lock()
	defer eventLogCursor.Unlock()
	if total > eventLogCursor.total {
		eventLogTotal.Add(float64(total - eventLogCursor.total))
		eventLogCursor.total = total
	}
	if dropped > eventLogCursor.dropped {
		eventLogDropped.Add(float64(dropped - eventLogCursor.dropped))
		eventLogCursor.dropped = dropped
	}
}

// RecordCommand counts a received player command by result
func RecordCommand(result string) {
	commandsTotal.WithLabelValues(result).Inc()
}

// commandResult maps an intake error to its metric label
func commandResult(err error) string {
	switch {
	case err == nil:
		return "queued"
	case errors.Is(err, input.ErrQueueFull), errors.Is(err, input.ErrQueueStopped):
		return "dropped"
	case errors.Is(err, errForbidden):
		return "forbidden"
	default:
		return "invalid"
	}
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
