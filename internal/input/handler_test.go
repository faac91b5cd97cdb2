package input

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tank-battle/internal/game"
)

// fakeSink records the calls a Handler makes
type fakeSink struct {
	mu     sync.Mutex
	calls  []string
	slots  []int
	paused bool
	seed   int64
	err    error
}

func (f *fakeSink) record(name string, slot int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.slots = append(f.slots, slot)
}

func (f *fakeSink) SetMove(slot int, dir game.Direction, moving bool) error {
	if moving {
		f.record("move "+dir.String(), slot)
	} else {
		f.record("stop", slot)
	}
	return f.err
}

func (f *fakeSink) Rotate(slot int, dir game.Direction) error {
	f.record("rotate "+dir.String(), slot)
	return f.err
}

func (f *fakeSink) Shoot(slot int) error {
	f.record("shoot", slot)
	return f.err
}

func (f *fakeSink) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
	f.record("pause", 0)
}

func (f *fakeSink) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	f.record("resume", 0)
}

func (f *fakeSink) NewGame(seed int64) error {
	f.mu.Lock()
	f.seed = seed
	f.mu.Unlock()
	f.record("restart", 0)
	return f.err
}

func (f *fakeSink) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestHandlerDispatch(t *testing.T) {
	sink := &fakeSink{}
	h := NewHandler(sink, RateLimitConfig{PerSecond: 1000, Burst: 100}, zerolog.Nop())

	for _, text := range []string{"move up", "stop", "rotate left", "shoot", "pause", "resume", "restart 9"} {
		require.NoError(t, h.ProcessText(1, text), text)
	}

	assert.Equal(t, []string{
		"move " + game.Up.String(), "stop", "rotate " + game.Left.String(),
		"shoot", "pause", "resume", "restart",
	}, sink.Calls())
	assert.Equal(t, int64(9), sink.seed)
	assert.False(t, sink.paused)
}

func TestHandlerPropagatesErrors(t *testing.T) {
	sink := &fakeSink{err: game.ErrUnknownSlot}
	h := NewHandler(sink, DefaultRateLimitConfig, zerolog.Nop())

	assert.ErrorIs(t, h.ProcessText(5, "shoot"), game.ErrUnknownSlot)
	assert.ErrorIs(t, h.ProcessText(5, "bogus"), ErrUnknownCommand)
	assert.ErrorIs(t, h.ProcessCommand(Command{Type: CmdUnknown, Slot: 1}), ErrUnknownCommand)
}

func TestHandlerRateLimit(t *testing.T) {
	sink := &fakeSink{}
	h := NewHandler(sink, RateLimitConfig{PerSecond: 0.001, Burst: 3}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		require.NoError(t, h.ProcessText(1, "shoot"))
	}
	assert.ErrorIs(t, h.ProcessText(1, "shoot"), ErrRateLimited)

	// Other slots have their own bucket
	assert.NoError(t, h.ProcessText(2, "shoot"))
	assert.Len(t, sink.Calls(), 4)
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerSecond: 10, Burst: 1})
	now := time.Now()

	assert.True(t, rl.AllowAt(1, now))
	assert.False(t, rl.AllowAt(1, now))
	assert.True(t, rl.AllowAt(1, now.Add(150*time.Millisecond)))
}

func TestNewRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig, rl.config)
}

func TestRateLimiterForgetsIdleSlots(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerSecond: 10, Burst: 1})
	start := time.Now()

	for slot := 1; slot <= 50; slot++ {
		rl.AllowAt(slot, start)
	}
	assert.Equal(t, 50, rl.Tracked())

	// Slot 1 stays active; the rest go idle
	rl.AllowAt(1, start.Add(3*time.Minute))
	rl.AllowAt(1, start.Add(limiterIdleTimeout+time.Minute))
	assert.Equal(t, 1, rl.Tracked())
}

func TestRateLimiterSweepsAtMostEveryInterval(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerSecond: 10, Burst: 1})
	start := time.Now()

	rl.AllowAt(7, start)
	rl.AllowAt(8, start.Add(limiterIdleTimeout+time.Second))
	// The sweep that ran on slot 8 dropped slot 7
	assert.Equal(t, 1, rl.Tracked())

	rl.AllowAt(9, start.Add(limiterIdleTimeout+2*time.Second))
	assert.Equal(t, 2, rl.Tracked())
}
