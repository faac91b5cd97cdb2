package input

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(sink *fakeSink, cfg QueueConfig) *CommandQueue {
	h := NewHandler(sink, RateLimitConfig{PerSecond: 1e6, Burst: 1000}, zerolog.Nop())
	return NewCommandQueue(h, cfg, zerolog.Nop())
}

func TestQueueProcessesInOrderPerSlot(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink, QueueConfig{BufferSize: 64, Workers: 3})
	q.Start()
	defer q.Stop()

	dirs := []string{"up", "right", "down", "left"}
	for i := 0; i < 20; i++ {
		cmd, err := Parse(4, "rotate "+dirs[i%4])
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(cmd))
	}

	require.Eventually(t, func() bool {
		return q.Stats().Processed == 20
	}, time.Second, 5*time.Millisecond)

	calls := sink.Calls()
	require.Len(t, calls, 20)
	for i, c := range calls {
		cmd, _ := Parse(4, "rotate "+dirs[i%4])
		assert.Equal(t, "rotate "+cmd.Dir.String(), c, fmt.Sprintf("call %d", i))
	}

	st := q.Stats()
	assert.Equal(t, uint64(20), st.Enqueued)
	assert.Zero(t, st.Dropped)
	assert.Zero(t, st.Rejected)
	assert.True(t, st.Running)
}

func TestQueueFull(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink, QueueConfig{BufferSize: 2, Workers: 1})

	// Accept commands without workers so nothing drains
	q.running.Store(true)
	require.NoError(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}))
	require.NoError(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}))
	assert.ErrorIs(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}), ErrQueueFull)

	st := q.Stats()
	assert.Equal(t, uint64(2), st.Enqueued)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, 2, st.Pending)
}

func TestQueueCountsRejected(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink, QueueConfig{})
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(Command{Type: CmdUnknown, Slot: 1}))
	require.Eventually(t, func() bool {
		return q.Stats().Rejected == 1
	}, time.Second, 5*time.Millisecond)
}

func TestQueueStopIdempotent(t *testing.T) {
	q := newTestQueue(&fakeSink{}, DefaultQueueConfig())
	q.Start()
	q.Start()
	q.Stop()
	q.Stop()
	assert.False(t, q.Stats().Running)
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink, DefaultQueueConfig())

	assert.ErrorIs(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}), ErrQueueStopped)

	q.Start()
	require.NoError(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}))
	require.Eventually(t, func() bool {
		return q.Stats().Processed == 1
	}, time.Second, 5*time.Millisecond)

	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Command{Type: CmdShoot, Slot: 1}), ErrQueueStopped)

	st := q.Stats()
	assert.Equal(t, uint64(1), st.Enqueued)
	assert.Zero(t, st.Dropped)
	assert.Empty(t, sink.Calls()[1:])
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, 1, shardFor(3, 2))
	assert.Equal(t, 1, shardFor(-1, 2))
	assert.Equal(t, 0, shardFor(0, 4))
}
