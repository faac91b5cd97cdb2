package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"tank-battle/internal/config"
	"tank-battle/internal/game"
	"tank-battle/internal/render"
)

// Options controls one headless run
type Options struct {
	ConfigPath string
	Seed       *int64
	Players    int
	MaxTicks   int
	LevelsFile string
	Trace      int
	EventsPath string
	FramePath  string
}

// Summary is the result printed at the end of a run
type Summary struct {
	Seed    int64               `json:"seed"`
	Ticks   uint64              `json:"ticks"`
	Outcome string              `json:"outcome"`
	Verdict string              `json:"verdict"`
	Level   int                 `json:"level"`
	Levels  int                 `json:"levels"`
	Enemies int                 `json:"enemiesRemaining"`
	Players []game.PlayerHUD    `json:"players"`
	Events  *game.EventLogStats `json:"events,omitempty"`
}

// Write prints the summary as indented JSON
func (s Summary) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Run plays one game to its end or MaxTicks. Players are driven by a bot seeded from the game seed,
// so the same options always produce the same summary.
func Run(ctx context.Context, opts Options, logOut io.Writer) (Summary, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return Summary{}, err
	}
	if opts.Seed != nil {
		cfg.Seed = *opts.Seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if opts.Players > 0 {
		cfg.Players = opts.Players
	}
	if opts.LevelsFile != "" {
		cfg.LevelsFile = opts.LevelsFile
	}
	if opts.MaxTicks <= 0 {
		return Summary{}, fmt.Errorf("ticks must be positive, got %d", opts.MaxTicks)
	}

	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return Summary{}, err
	}
	log = log.With().Str("component", "headless").Logger()

	levels, err := cfg.LoadLevels()
	if err != nil {
		return Summary{}, fmt.Errorf("load levels: %w", err)
	}

	var eventLog *game.EventLog
	simOpts := game.SimOptions{Players: cfg.Players, Logger: log}
	if opts.EventsPath != "" {
		eventLog = game.NewEventLog(cfg.EventLog.Game(), log)
		if err := eventLog.Start(opts.EventsPath); err != nil {
			return Summary{}, fmt.Errorf("event log: %w", err)
		}
		simOpts.Events = eventLog
	}

	sim, err := game.NewSimulation(cfg.Sim, levels, rand.New(rand.NewSource(cfg.Seed)), simOpts)
	if err != nil {
		if eventLog != nil {
			eventLog.Stop()
		}
		return Summary{}, err
	}

	b := newBot(cfg.Seed, cfg.Players)
	verdict := game.VerdictContinue
	for i := 0; i < opts.MaxTicks && !sim.Finished(); i++ {
		if i%64 == 0 && ctx.Err() != nil {
			break
		}
		verdict = sim.Step(b.inputs(sim))
		if opts.Trace > 0 && sim.Tick()%uint64(opts.Trace) == 0 {
			traceLine(log, sim)
		}
		if verdict == game.VerdictLevelComplete {
			log.Info().Uint64("tick", sim.Tick()).Int("level", sim.Round().LevelIndex()+1).Msg("level complete")
		}
	}

	var snap game.Snapshot
	sim.FillSnapshot(&snap, game.DefaultLimits)

	summary := Summary{
		Seed:    cfg.Seed,
		Ticks:   sim.Tick(),
		Outcome: sim.Outcome(),
		Verdict: sim.Verdict().String(),
		Level:   snap.HUD.Level,
		Levels:  snap.HUD.LevelCount,
		Enemies: snap.HUD.EnemiesRemaining,
		Players: snap.HUD.Players,
	}

	if eventLog != nil {
		eventLog.Stop()
		stats := eventLog.GetStats()
		summary.Events = &stats
	}

	if opts.FramePath != "" {
		if err := writeFrame(opts.FramePath, cfg.Server.FrameScale, &snap); err != nil {
			return summary, err
		}
	}

	log.Info().
		Str("outcome", summary.Outcome).
		Uint64("ticks", summary.Ticks).
		Int("level", summary.Level).
		Msg("run finished")
	return summary, nil
}

func traceLine(log zerolog.Logger, sim *game.Simulation) {
	log.Info().
		Uint64("tick", sim.Tick()).
		Int("level", sim.Round().LevelIndex()+1).
		Int("enemies", sim.EnemiesRemaining()).
		Int("projectiles", sim.Projectiles().Len()).
		Int("power_ups", len(sim.PowerUps())).
		Msg("trace")
}

func writeFrame(path string, scale float64, snap *game.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	defer f.Close()
	if err := render.NewFrameRenderer(scale).EncodePNG(f, snap); err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	return f.Close()
}
