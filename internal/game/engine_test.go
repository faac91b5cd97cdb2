package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg Config, players int) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		TickRate: 60,
		Sim:      cfg,
		Levels:   []Level{EmptyLevel(cfg, 5)},
		Players:  players,
		Seed:     7,
	})
	require.NoError(t, err)
	return e
}

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewEngine(EngineConfig{Sim: cfg})
	require.NoError(t, err)

	assert.Equal(t, 60, e.tickRate)
	assert.Equal(t, 1, e.cfg.Players)
	assert.Equal(t, DefaultLimits, e.snapshotPool.GetLimits())
	assert.Len(t, e.Levels(), 3, "built-in levels by default")

	snap := e.GetSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(0), snap.TickNumber)
	assert.Len(t, snap.Cells, cfg.GridWidth*cfg.GridHeight)
	assert.Equal(t, 1, snap.HUD.Level)

	stats := e.GetStats()
	assert.NotZero(t, stats.Seed, "zero seed picks a time-based one")
	assert.Equal(t, 1, stats.Games)
}

func TestNewEngineInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridWidth = 0
	_, err := NewEngine(EngineConfig{Sim: cfg, Levels: []Level{EmptyLevel(DefaultConfig(), 5)}})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{Sim: DefaultConfig(), Players: 3})
	assert.Error(t, err)
}

// TestEngineStartStop verifies engine can start and stop without panics
func TestEngineStartStop(t *testing.T) {
	e := newTestEngine(t, quietConfig(), 1)

	var ticks atomic.Int64
	e.SetOnTick(func(time.Duration) { ticks.Add(1) })

	e.Start()
	e.Start()
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.GetStats().Running)

	e.Stop()
	e.Stop()
	assert.False(t, e.GetStats().Running)

	n := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, ticks.Load(), "no ticks after Stop")
}

func TestEngineHeldMovement(t *testing.T) {
	cfg := quietConfig()
	e := newTestEngine(t, cfg, 1)
	start := e.sim.Player(1).Box

	require.NoError(t, e.SetMove(1, Right, true))
	e.tick()
	e.tick()
	e.tick()

	p := e.sim.Player(1)
	assert.Equal(t, start.Translate(3*cfg.PlayerSpeed, 0), p.Box, "movement is held across ticks")
	assert.Equal(t, Right, p.Facing)

	require.NoError(t, e.SetMove(1, Right, false))
	e.tick()
	assert.Equal(t, start.Translate(3*cfg.PlayerSpeed, 0), p.Box)

	snap := e.GetSnapshot()
	assert.Equal(t, uint64(4), snap.TickNumber)
	require.NotEmpty(t, snap.Vehicles)
	assert.Equal(t, p.Box, snap.Vehicles[0].Box)
}

func TestEngineOneShotIntents(t *testing.T) {
	cfg := quietConfig()
	e := newTestEngine(t, cfg, 1)

	require.NoError(t, e.Rotate(1, Left))
	require.NoError(t, e.Shoot(1))
	e.tick()

	p := e.sim.Player(1)
	assert.Equal(t, Left, p.Facing)
	assert.Equal(t, 1, e.sim.Projectiles().Len())
	assert.Empty(t, e.intents, "rotate and shoot are consumed by the tick")

	// Facing sticks after the one-shot rotate is gone
	e.tick()
	assert.Equal(t, Left, p.Facing)
}

func TestEngineUnknownSlot(t *testing.T) {
	e := newTestEngine(t, quietConfig(), 2)

	assert.NoError(t, e.Shoot(2))
	assert.ErrorIs(t, e.Shoot(3), ErrUnknownSlot)
	assert.ErrorIs(t, e.Rotate(0, Up), ErrUnknownSlot)
	assert.ErrorIs(t, e.SetMove(-1, Up, true), ErrUnknownSlot)
}

func TestEnginePause(t *testing.T) {
	e := newTestEngine(t, quietConfig(), 1)

	e.tick()
	e.Pause()
	assert.True(t, e.Paused())
	e.tick()
	e.tick()

	snap := e.GetSnapshot()
	assert.Equal(t, uint64(1), snap.TickNumber)
	assert.True(t, snap.Paused)

	e.Resume()
	e.tick()
	assert.Equal(t, uint64(2), e.GetSnapshot().TickNumber)
	assert.False(t, e.GetSnapshot().Paused)
}

func TestEnginePauseDiscardsOneShots(t *testing.T) {
	cfg := quietConfig()
	e := newTestEngine(t, cfg, 1)
	p := e.sim.Player(1)
	facing := p.Facing
	start := p.Box

	require.NoError(t, e.SetMove(1, Right, true))
	e.Pause()
	require.NoError(t, e.Shoot(1))
	require.NoError(t, e.Rotate(1, Left))
	e.tick()
	assert.Zero(t, e.sim.Projectiles().Len(), "nothing fires while paused")
	assert.Equal(t, facing, p.Facing)

	e.Resume()
	e.tick()
	assert.Zero(t, e.sim.Projectiles().Len(), "shots staged during the pause are dropped")
	assert.Equal(t, Right, p.Facing, "held movement keeps its facing")
	assert.Equal(t, start.Translate(cfg.PlayerSpeed, 0), p.Box)
}

func TestEngineNewGame(t *testing.T) {
	e := newTestEngine(t, quietConfig(), 1)
	for i := 0; i < 5; i++ {
		e.tick()
	}
	require.NoError(t, e.SetMove(1, Left, true))
	e.Pause()

	require.NoError(t, e.NewGame(99))

	stats := e.GetStats()
	assert.Equal(t, int64(99), stats.Seed)
	assert.Equal(t, 2, stats.Games)
	assert.Equal(t, uint64(0), stats.Tick)
	assert.False(t, stats.Paused)
	assert.Empty(t, e.intents)
	assert.Equal(t, uint64(0), e.GetSnapshot().TickNumber)
}

func TestEngineVerdictHook(t *testing.T) {
	cfg := quietConfig()
	e := newTestEngine(t, cfg, 1)

	var got []Verdict
	e.SetOnVerdict(func(v Verdict) { got = append(got, v) })

	// Out of lives on the next tick
	p := e.sim.Player(1)
	p.Lives = 1
	e.sim.projectiles.Fire(99, RoleEnemy, Down, Point{X: p.Box.Center().X, Y: p.Box.Y - 10}, 8, 1)

	e.tick()
	e.tick()
	assert.Equal(t, []Verdict{VerdictNoLives}, got, "finished games stop stepping")
	assert.Equal(t, "lost", e.GetStats().Outcome)
	assert.Equal(t, "lost", e.GetSnapshot().HUD.Outcome)
}

func TestEngineSnapshotIsPrivateCopy(t *testing.T) {
	e := newTestEngine(t, quietConfig(), 1)
	e.tick()

	a := e.GetSnapshot()
	a.Cells[0] = Steel
	a.Vehicles[0].Lives = 42

	b := e.GetSnapshot()
	assert.Equal(t, Empty, b.Cells[0])
	assert.NotEqual(t, 42, b.Vehicles[0].Lives)
}

func TestEngineEventLog(t *testing.T) {
	cfg := quietConfig()
	var out syncBuffer
	el := NewEventLog(DefaultEventLogConfig(), zerolog.Nop())
	require.NoError(t, el.StartWriter(&out))

	e, err := NewEngine(EngineConfig{Sim: cfg, Levels: []Level{EmptyLevel(cfg, 5)}, Seed: 3, EventLog: el})
	require.NoError(t, err)
	e.tick()
	e.tick()
	el.Stop()

	lines := out.Lines(t)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `"level_start"`, string(lines[0]["type"]))
	assert.JSONEq(t, `"tick"`, string(lines[2]["type"]))

	stats := e.GetStats()
	require.NotNil(t, stats.EventLog)
	assert.Equal(t, uint64(3), stats.EventLog.Total)
}
