package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"tank-battle/internal/api"
	"tank-battle/internal/config"
	"tank-battle/internal/game"
	"tank-battle/internal/input"
	"tank-battle/internal/render"
)

func main() {
	cmd := &cli.Command{
		Name:  "tank-server",
		Usage: "run the tank battle simulation with its HTTP/WebSocket API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (json, yaml or toml)",
				Sources: cli.EnvVars("TANKS_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the config",
				Value: ".env",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("env-file"), cmd.String("config"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tank-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile, configPath string) error {
	// Environment first so the config layer sees it
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	if envErr != nil {
		log.Debug().Str("file", envFile).Msg("no .env file, using environment variables only")
	} else {
		log.Info().Str("file", envFile).Msg("loaded environment")
	}

	levels, err := cfg.LoadLevels()
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}

	log.Info().
		Int("tps", cfg.TickRate).
		Int("players", cfg.Players).
		Int("levels", len(levels)).
		Str("grid", fmt.Sprintf("%dx%d", cfg.Sim.GridWidth, cfg.Sim.GridHeight)).
		Msg("tank battle starting")

	// Event log
	var eventLog *game.EventLog
	if cfg.EventLog.Enabled {
		eventLog = game.NewEventLog(cfg.EventLog.Game(), log)
		if err := eventLog.Start(cfg.EventLog.Path); err != nil {
			log.Warn().Err(err).Msg("event log disabled")
			eventLog = nil
		} else {
			log.Info().Str("path", cfg.EventLog.Path).Msg("event log enabled")
		}
	}

	engine, err := game.NewEngine(game.EngineConfig{
		TickRate: cfg.TickRate,
		Sim:      cfg.Sim,
		Levels:   levels,
		Players:  cfg.Players,
		Seed:     cfg.Seed,
		Limits:   cfg.Limits.Snapshot(),
		Logger:   log,
		EventLog: eventLog,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	engine.SetOnTick(api.RecordTick)
	engine.SetOnVerdict(func(v game.Verdict) {
		api.RecordVerdict(v)
		log.Info().Str("verdict", v.String()).Msg("round verdict")
	})

	// Debug server
	var debugSrv *http.Server
	if cfg.Debug.Enabled {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.ListenAddr = "127.0.0.1:" + strconv.Itoa(cfg.Debug.Port)
		debugSrv, err = api.StartDebugServer(debugCfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("debug server disabled")
		}
	}

	// Player commands
	handler := input.NewHandler(engine, cfg.Limits.RateLimit(), log)
	queue := input.NewCommandQueue(handler, cfg.Limits.Queue(), log)

	server := api.NewServer(api.ServerConfig{
		Engine:   engine,
		Commands: queue,
		Frames:   render.NewFrameRenderer(cfg.Server.FrameScale),
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: cfg.Limits.HTTPRequestsPerSecond,
			Burst:             cfg.Limits.HTTPBurst,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminToken:     cfg.Server.AdminToken,
		MaxWSConns:     cfg.Limits.MaxWSConnections,
		BroadcastHz:    cfg.Server.BroadcastHz,
		OnStats:        syncEventLogMetrics(eventLog),
		Logger:         log,
	})
	if cfg.Server.AdminToken == "" {
		log.Warn().Msg("admin token not set: pause, resume and new game are open to every client")
	}

	queue.Start()
	engine.Start()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("API server on http://localhost" + addr)
		serveErr <- server.Start(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server failed")
		}
	}

	shutdown(log, server, debugSrv, queue, engine, eventLog)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown stops outer surfaces first so no intent arrives after the engine stops
func shutdown(log zerolog.Logger, server *api.Server, debugSrv *http.Server, queue *input.CommandQueue, engine *game.Engine, eventLog *game.EventLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown")
	}
	if debugSrv != nil {
		debugSrv.Shutdown(ctx)
	}
	queue.Stop()
	engine.Stop()
	if eventLog != nil {
		eventLog.Stop()
		api.UpdateEventLogStats(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
	}
	log.Info().Msg("goodbye")
}

// syncEventLogMetrics mirrors the event log counters into Prometheus
func syncEventLogMetrics(eventLog *game.EventLog) func() {
	if eventLog == nil {
		return nil
	}
	return func() {
		api.UpdateEventLogStats(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
	}
}
