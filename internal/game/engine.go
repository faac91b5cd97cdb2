package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownSlot is returned for intents addressed to a player slot the game does not have
var ErrUnknownSlot = errors.New("unknown player slot")

// EngineConfig configures the real-time engine
type EngineConfig struct {
	TickRate int     // ticks per second
	Sim      Config  // simulation tuning
	Levels   []Level // nil means DefaultLevels
	Players  int     // player slots, default 1
	Seed     int64   // 0 picks a time-based seed
	Limits   ResourceLimits
	Logger   zerolog.Logger
	EventLog *EventLog // optional replay log
}

// Engine runs a Simulation on a ticker, stages intents from outside and publishes snapshots
type Engine struct {
	mu  sync.RWMutex
	cfg EngineConfig
	sim *Simulation

	// Staged intents per slot; movement is held, rotate and shoot are consumed by the next tick
	intents map[int]Input
	paused  bool
	seed    int64
	games   int

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	doneChan chan struct{}

	// Hooks, called outside the lock after each tick
	onTick    func(d time.Duration)
	onVerdict func(v Verdict)

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	log          zerolog.Logger
}

// NewEngine creates an engine with a fresh game loaded and a first snapshot published
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.Players == 0 {
		cfg.Players = 1
	}
	if cfg.Limits == (ResourceLimits{}) {
		cfg.Limits = DefaultLimits
	}
	if cfg.Levels == nil {
		levels, err := DefaultLevels(cfg.Sim)
		if err != nil {
			return nil, err
		}
		cfg.Levels = levels
	}

	e := &Engine{
		cfg:          cfg,
		tickRate:     cfg.TickRate,
		intents:      make(map[int]Input, cfg.Players),
		snapshotPool: NewSnapshotPool(cfg.Limits, cfg.Sim.GridWidth*cfg.Sim.GridHeight),
		eventLog:     cfg.EventLog,
		log:          cfg.Logger.With().Str("component", "engine").Logger(),
	}
	if err := e.NewGame(cfg.Seed); err != nil {
		return nil, err
	}
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	ticker, stop, done := e.ticker, e.stopChan, e.doneChan
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	e.log.Info().Int("tps", e.tickRate).Msg("game engine started")
}

// Stop stops the game loop and waits for the running tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()

	<-done
	e.log.Info().Msg("game engine stopped")
}

// tick is called at tickRate times per second
func (e *Engine) tick() {
	start := time.Now()

	e.mu.Lock()
	verdict := VerdictContinue
	if !e.paused && !e.sim.Finished() {
		verdict = e.sim.Step(e.intents)
		e.consumeOneShots()
	}
	e.produceSnapshot()
	onTick, onVerdict := e.onTick, e.onVerdict
	e.mu.Unlock()

	if verdict != VerdictContinue && onVerdict != nil {
		onVerdict(verdict)
	}
	if onTick != nil {
		onTick(time.Since(start))
	}
}

// consumeOneShots clears rotate and shoot after a tick while keeping held movement
func (e *Engine) consumeOneShots() {
	for slot, in := range e.intents {
		in.HasRotate = false
		in.Shoot = false
		if in.MoveX == 0 && in.MoveY == 0 {
			delete(e.intents, slot)
			continue
		}
		e.intents[slot] = in
	}
}

// PlayerSlots returns how many player slots accept intents (1..n)
func (e *Engine) PlayerSlots() int {
	return e.cfg.Players
}

// dropPausedOneShots discards shots and explicit rotates staged while paused.
// A held move keeps turning the vehicle toward its direction.
func (e *Engine) dropPausedOneShots() {
	e.consumeOneShots()
	for slot, in := range e.intents {
		for _, d := range Directions {
			if dx, dy := d.Delta(); dx == in.MoveX && dy == in.MoveY {
				in.Rotate, in.HasRotate = d, true
				e.intents[slot] = in
				break
			}
		}
	}
}

func (e *Engine) checkSlot(slot int) error {
	if slot < 1 || slot > e.cfg.Players {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	return nil
}

// SetMove holds movement in dir for slot until changed; the vehicle also turns to dir.
// moving=false releases the held movement.
func (e *Engine) SetMove(slot int, dir Direction, moving bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkSlot(slot); err != nil {
		return err
	}

	in := e.intents[slot]
	if !moving {
		in.MoveX, in.MoveY = 0, 0
	} else {
		in.MoveX, in.MoveY = dir.Delta()
		in.Rotate, in.HasRotate = dir, true
	}
	e.intents[slot] = in
	return nil
}

// Rotate turns the slot's vehicle on the next tick
func (e *Engine) Rotate(slot int, dir Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkSlot(slot); err != nil {
		return err
	}
	in := e.intents[slot]
	in.Rotate, in.HasRotate = dir, true
	e.intents[slot] = in
	return nil
}

// Shoot fires for the slot on the next tick
func (e *Engine) Shoot(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkSlot(slot); err != nil {
		return err
	}
	in := e.intents[slot]
	in.Shoot = true
	e.intents[slot] = in
	return nil
}

// Pause stops advancing the simulation; the loop keeps publishing snapshots.
// Held movement survives a pause. Rotates and shots staged before Resume are discarded.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.paused = true
		e.log.Info().Uint64("tick", e.sim.Tick()).Msg("game paused")
	}
}

// Resume continues a paused game
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		e.paused = false
		e.dropPausedOneShots()
		e.log.Info().Uint64("tick", e.sim.Tick()).Msg("game resumed")
	}
}

// Paused reports whether the game is paused
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// NewGame restarts from the first level. A zero seed picks a time-based one.
func (e *Engine) NewGame(seed int64) error {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var events EventSink
	if e.eventLog != nil {
		events = e.eventLog
	}
	sim, err := NewSimulation(e.cfg.Sim, e.cfg.Levels, rand.New(rand.NewSource(seed)), SimOptions{
		Players: e.cfg.Players,
		Logger:  e.cfg.Logger,
		Events:  events,
	})
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}

	e.mu.Lock()
	e.sim = sim
	e.seed = seed
	e.paused = false
	e.games++
	clear(e.intents)
	e.produceSnapshot()
	e.mu.Unlock()

	e.log.Info().Int64("seed", seed).Int("players", e.cfg.Players).Int("levels", len(e.cfg.Levels)).Msg("new game")
	return nil
}

// produceSnapshot publishes the current state; callers hold e.mu
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.sim.FillSnapshot(snap, e.snapshotPool.GetLimits())
	snap.Paused = e.paused
	e.snapshotPool.PublishWrite()
}

// GetSnapshot returns a private copy of the latest snapshot
func (e *Engine) GetSnapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// SetOnTick installs a hook receiving each tick's duration
func (e *Engine) SetOnTick(fn func(d time.Duration)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// SetOnVerdict installs a hook receiving level completions and game outcomes
func (e *Engine) SetOnVerdict(fn func(v Verdict)) {
	e.mu.Lock()
	e.onVerdict = fn
	e.mu.Unlock()
}

// Levels returns the loaded level pack
func (e *Engine) Levels() []Level {
	return e.cfg.Levels
}

// EngineStats is a summary of the running game
type EngineStats struct {
	Tick        uint64         `json:"tick"`
	Seed        int64          `json:"seed"`
	TickRate    int            `json:"tickRate"`
	Running     bool           `json:"running"`
	Paused      bool           `json:"paused"`
	Games       int            `json:"games"`
	Level       int            `json:"level"`
	Outcome     string         `json:"outcome"`
	Enemies     int            `json:"enemies"`
	ToSpawn     int            `json:"toSpawn"`
	Projectiles int            `json:"projectiles"`
	PowerUps    int            `json:"powerUps"`
	EventLog    *EventLogStats `json:"eventLog,omitempty"`
}

// GetStats returns counters for the stats endpoint and metrics
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := EngineStats{
		Tick:        e.sim.Tick(),
		Seed:        e.seed,
		TickRate:    e.tickRate,
		Running:     e.running,
		Paused:      e.paused,
		Games:       e.games,
		Level:       e.sim.Round().LevelIndex() + 1,
		Outcome:     e.sim.Outcome(),
		Enemies:     e.sim.Enemies(),
		ToSpawn:     e.sim.Round().Remaining(),
		Projectiles: e.sim.Projectiles().Len(),
		PowerUps:    len(e.sim.PowerUps()),
	}
	if e.eventLog != nil {
		s := e.eventLog.GetStats()
		stats.EventLog = &s
	}
	return stats
}
