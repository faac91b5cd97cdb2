package api

import (
	"io"
	"sync"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEngine implements EngineInterface for testing
type mockEngine struct {
	mu         sync.Mutex
	snap       game.Snapshot
	levels     []game.Level
	paused     bool
	newGames   []int64
	newGameErr error
}

func newMockEngine() *mockEngine {
	cfg := game.DefaultConfig()
	return &mockEngine{
		snap: game.Snapshot{
			TickNumber: 42,
			GridWidth:  cfg.GridWidth,
			GridHeight: cfg.GridHeight,
			TileSize:   cfg.TileSize,
			Cells:      make([]game.Tile, cfg.GridWidth*cfg.GridHeight),
			HUD:        game.HUDSnapshot{Level: 1, LevelCount: 2, EnemiesRemaining: 20, Outcome: "running"},
		},
		levels: []game.Level{game.EmptyLevel(cfg, 5), game.EmptyLevel(cfg, 0)},
	}
}

func (m *mockEngine) GetSnapshot() *game.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snap
	s.Paused = m.paused
	return s.Clone()
}

func (m *mockEngine) GetStats() game.EngineStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.EngineStats{Tick: m.snap.TickNumber, Paused: m.paused, Games: len(m.newGames) + 1, Outcome: "running"}
}

func (m *mockEngine) Levels() []game.Level { return m.levels }

func (m *mockEngine) PlayerSlots() int { return 2 }

func (m *mockEngine) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *mockEngine) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *mockEngine) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockEngine) NewGame(seed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.newGameErr != nil {
		return m.newGameErr
	}
	m.newGames = append(m.newGames, seed)
	return nil
}

// mockSink implements CommandSink and records every accepted command
type mockSink struct {
	mu       sync.Mutex
	commands []input.Command
	err      error
}

func (m *mockSink) Enqueue(cmd input.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.commands = append(m.commands, cmd)
	return nil
}

func (m *mockSink) Stats() input.QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return input.QueueStats{Enqueued: uint64(len(m.commands)), Running: true}
}

func (m *mockSink) Commands() []input.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]input.Command(nil), m.commands...)
}

// mockFrames implements FrameEncoder with a fixed payload
type mockFrames struct{}

func (mockFrames) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	_, err := w.Write([]byte("\x89PNG fake"))
	return err
}
