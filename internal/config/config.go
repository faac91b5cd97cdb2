// Package config provides centralized configuration management.
// Defaults live here; a config file and TANKS_* environment variables override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

// EnvPrefix is prepended to every environment override (TANKS_SERVER_PORT, TANKS_LOG_LEVEL, ...)
const EnvPrefix = "TANKS"

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // empty allows any origin
	BroadcastHz    int      `mapstructure:"broadcast_hz"`    // WebSocket snapshot rate
	FrameScale     float64  `mapstructure:"frame_scale"`     // /api/frame.png size multiplier
	AdminToken     string   `mapstructure:"admin_token"`     // guards pause/resume/new game; empty disables
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		BroadcastHz: 10,
		FrameScale:  1,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
// A bare PORT (set by most hosting platforms) is honoured as well.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt(EnvPrefix+"_SERVER_PORT", 0); p > 0 {
		cfg.Port = p
	}
	if hz := getEnvInt(EnvPrefix+"_SERVER_BROADCAST_HZ", 0); hz > 0 {
		cfg.BroadcastHz = hz
	}
	if token := os.Getenv(EnvPrefix + "_SERVER_ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	if origins := os.Getenv(EnvPrefix + "_SERVER_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig controls DoS protection and queue sizing.
type LimitsConfig struct {
	CommandsPerSecond     float64 `mapstructure:"commands_per_second"` // per player slot
	CommandBurst          int     `mapstructure:"command_burst"`
	QueueBuffer           int     `mapstructure:"queue_buffer"`
	QueueWorkers          int     `mapstructure:"queue_workers"`
	HTTPRequestsPerSecond float64 `mapstructure:"http_requests_per_second"` // per client IP
	HTTPBurst             int     `mapstructure:"http_burst"`
	MaxWSConnections      int     `mapstructure:"max_ws_connections"`
	MaxSnapshotVehicles   int     `mapstructure:"max_snapshot_vehicles"`
	MaxSnapshotShots      int     `mapstructure:"max_snapshot_projectiles"`
	MaxSnapshotPowerUps   int     `mapstructure:"max_snapshot_powerups"`
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		CommandsPerSecond:     input.DefaultRateLimitConfig.PerSecond,
		CommandBurst:          input.DefaultRateLimitConfig.Burst,
		QueueBuffer:           input.DefaultQueueConfig().BufferSize,
		QueueWorkers:          input.DefaultQueueConfig().Workers,
		HTTPRequestsPerSecond: 20,
		HTTPBurst:             40,
		MaxWSConnections:      64,
		MaxSnapshotVehicles:   game.DefaultLimits.MaxVehicles,
		MaxSnapshotShots:      game.DefaultLimits.MaxProjectiles,
		MaxSnapshotPowerUps:   game.DefaultLimits.MaxPowerUps,
	}
}

// RateLimit returns the per-slot command limiter settings
func (l LimitsConfig) RateLimit() input.RateLimitConfig {
	return input.RateLimitConfig{PerSecond: l.CommandsPerSecond, Burst: l.CommandBurst}
}

// Queue returns the command queue settings
func (l LimitsConfig) Queue() input.QueueConfig {
	return input.QueueConfig{BufferSize: l.QueueBuffer, Workers: l.QueueWorkers}
}

// Snapshot returns the per-snapshot entity caps
func (l LimitsConfig) Snapshot() game.ResourceLimits {
	return game.ResourceLimits{
		MaxVehicles:    l.MaxSnapshotVehicles,
		MaxProjectiles: l.MaxSnapshotShots,
		MaxPowerUps:    l.MaxSnapshotPowerUps,
	}
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the NDJSON replay log.
type EventLogConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Path               string `mapstructure:"path"`
	MaxEventsPerSec    int    `mapstructure:"max_events_per_sec"`
	MaxEventsPerSource int    `mapstructure:"max_events_per_source"`
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	def := game.DefaultEventLogConfig()
	return EventLogConfig{
		Enabled:            false,
		Path:               "./events.ndjson",
		MaxEventsPerSec:    def.MaxEventsPerSec,
		MaxEventsPerSource: def.MaxEventsPerSource,
	}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	if p := os.Getenv(EnvPrefix + "_EVENT_LOG_PATH"); p != "" {
		cfg.Path = p
		cfg.Enabled = true
	}
	if os.Getenv(EnvPrefix+"_EVENT_LOG_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// Game returns the limiter settings understood by game.EventLog
func (c EventLogConfig) Game() game.EventLogConfig {
	return game.EventLogConfig{
		MaxEventsPerSec:    c.MaxEventsPerSec,
		MaxEventsPerSource: c.MaxEventsPerSource,
	}
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig controls the metrics/pprof server.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DefaultDebug returns the default debug server configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{Enabled: true, Port: 6060}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.Port = p
	}
	if os.Getenv(EnvPrefix+"_DEBUG_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"` // "console" or "json"
	Players    int    `mapstructure:"players"`
	Seed       int64  `mapstructure:"seed"` // 0 picks a time-based seed
	TickRate   int    `mapstructure:"tick_rate"`
	LevelsFile string `mapstructure:"levels_file"` // empty uses the built-in pack

	Server   ServerConfig   `mapstructure:"server"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	EventLog EventLogConfig `mapstructure:"event_log"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Sim      game.Config    `mapstructure:"sim"`
}

// Default returns the configuration used when nothing is overridden.
func Default() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		LogFormat: "console",
		Players:   1,
		TickRate:  60,
		Server:    DefaultServer(),
		Limits:    DefaultLimits(),
		EventLog:  DefaultEventLog(),
		Debug:     DefaultDebug(),
		Sim:       game.DefaultConfig(),
	}
}

// FromEnv returns the defaults with the per-section environment overrides applied.
func FromEnv() AppConfig {
	cfg := Default()
	cfg.Server = ServerFromEnv()
	cfg.EventLog = EventLogFromEnv()
	cfg.Debug = DebugFromEnv()
	return cfg
}

// Load layers an optional config file (JSON, YAML or TOML, by extension) and TANKS_*
// environment variables over FromEnv. An empty path skips the file.
func Load(path string) (AppConfig, error) {
	base := FromEnv()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, base)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Derived simulation defaults (fortify region, spawn points) follow the grid size
	if w, h := v.GetInt("sim.grid_width"), v.GetInt("sim.grid_height"); w != base.Sim.GridWidth || h != base.Sim.GridHeight {
		base.Sim = game.DefaultConfigFor(w, h)
	}

	cfg := base
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper, c AppConfig) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("players", c.Players)
	v.SetDefault("seed", c.Seed)
	v.SetDefault("tick_rate", c.TickRate)
	v.SetDefault("levels_file", c.LevelsFile)

	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.allowed_origins", c.Server.AllowedOrigins)
	v.SetDefault("server.broadcast_hz", c.Server.BroadcastHz)
	v.SetDefault("server.frame_scale", c.Server.FrameScale)
	v.SetDefault("server.admin_token", c.Server.AdminToken)

	v.SetDefault("limits.commands_per_second", c.Limits.CommandsPerSecond)
	v.SetDefault("limits.command_burst", c.Limits.CommandBurst)
	v.SetDefault("limits.queue_buffer", c.Limits.QueueBuffer)
	v.SetDefault("limits.queue_workers", c.Limits.QueueWorkers)
	v.SetDefault("limits.http_requests_per_second", c.Limits.HTTPRequestsPerSecond)
	v.SetDefault("limits.http_burst", c.Limits.HTTPBurst)
	v.SetDefault("limits.max_ws_connections", c.Limits.MaxWSConnections)

	v.SetDefault("event_log.enabled", c.EventLog.Enabled)
	v.SetDefault("event_log.path", c.EventLog.Path)
	v.SetDefault("event_log.max_events_per_sec", c.EventLog.MaxEventsPerSec)
	v.SetDefault("event_log.max_events_per_source", c.EventLog.MaxEventsPerSource)

	v.SetDefault("debug.enabled", c.Debug.Enabled)
	v.SetDefault("debug.port", c.Debug.Port)

	v.SetDefault("sim.grid_width", c.Sim.GridWidth)
	v.SetDefault("sim.grid_height", c.Sim.GridHeight)
	v.SetDefault("sim.player_lives", c.Sim.PlayerLives)
	v.SetDefault("sim.enemy_quota", c.Sim.EnemyQuota)
	v.SetDefault("sim.max_concurrent_enemies", c.Sim.MaxConcurrentEnemies)
	v.SetDefault("sim.spawn_interval", c.Sim.SpawnInterval)
	v.SetDefault("sim.powerup_drop_chance", c.Sim.PowerUpDropChance)
}

// Validate checks the settings that the game package does not
func (c AppConfig) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be positive, got %d", c.TickRate))
	}
	if c.Players < 1 || c.Players > len(c.Sim.PlayerStarts) {
		errs = append(errs, fmt.Errorf("players must be between 1 and %d, got %d", len(c.Sim.PlayerStarts), c.Players))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.BroadcastHz <= 0 {
		errs = append(errs, fmt.Errorf("server.broadcast_hz must be positive, got %d", c.Server.BroadcastHz))
	}
	if err := c.Sim.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sim: %w", err))
	}
	return errors.Join(errs...)
}

// LoadLevels returns the configured level pack, or the built-in levels when none is set
func (c AppConfig) LoadLevels() ([]game.Level, error) {
	if c.LevelsFile == "" {
		return game.DefaultLevels(c.Sim)
	}
	return game.LoadLevelPack(c.Sim, c.LevelsFile)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
