package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer shared with the writer goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines(t *testing.T) []map[string]json.RawMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestEventLogWritesNDJSON(t *testing.T) {
	var out syncBuffer
	el := NewEventLog(DefaultEventLogConfig(), zerolog.Nop())
	require.NoError(t, el.StartWriter(&out))

	require.True(t, el.EmitSimple(EventTypeLevelStart, 0, "", LevelPayload{Level: 1, Name: "1", Quota: 20, Players: 1}))
	require.True(t, el.EmitSimple(EventTypeShot, 3, "p1", ShotPayload{VehicleID: 1, ProjectileID: 1, Dir: "up", Power: 1}))
	require.True(t, el.EmitSimple(EventTypeTileDestroyed, 4, "p1", TilePayload{X: 4, Y: 10, Tile: "brick"}))
	el.Stop()

	lines := out.Lines(t)
	require.Len(t, lines, 3)

	assert.JSONEq(t, `"level_start"`, string(lines[0]["type"]))
	assert.JSONEq(t, `1`, string(lines[0]["sequence"]))
	assert.JSONEq(t, `{"level":1,"name":"1","quota":20,"players":1}`, string(lines[0]["payload"]))

	assert.JSONEq(t, `"shot"`, string(lines[1]["type"]))
	assert.JSONEq(t, `"p1"`, string(lines[1]["sourceId"]))
	assert.JSONEq(t, `3`, string(lines[1]["tickNum"]))

	assert.JSONEq(t, `{"x":4,"y":10,"tile":"brick"}`, string(lines[2]["payload"]))

	stats := el.GetStats()
	assert.Equal(t, uint64(3), stats.Total)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Pending)
	assert.False(t, stats.Running)
}

func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog(DefaultEventLogConfig(), zerolog.Nop())
	assert.False(t, el.EmitSimple(EventTypeTick, 1, "", TickPayload{}))
	assert.Zero(t, el.GetTotalCount())

	// Stop before Start is a no-op
	el.Stop()
}

func TestEventLogPerSourceLimit(t *testing.T) {
	el := NewEventLog(EventLogConfig{MaxEventsPerSec: 10000, MaxEventsPerSource: 10}, zerolog.Nop())
	require.NoError(t, el.StartWriter(nil))
	defer el.Stop()

	// Burst for one source is MaxEventsPerSource/10 = 1
	assert.True(t, el.EmitSimple(EventTypeShot, 1, "e5", nil))
	assert.False(t, el.EmitSimple(EventTypeShot, 1, "e5", nil))
	assert.True(t, el.EmitSimple(EventTypeShot, 1, "e6", nil), "other sources are unaffected")
	assert.True(t, el.EmitSimple(EventTypeTick, 1, "", nil), "events without a source skip the per-source limit")

	assert.Equal(t, uint64(1), el.GetDroppedCount())
	assert.Equal(t, uint64(3), el.GetTotalCount())
}

func TestEventLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	el := NewEventLog(DefaultEventLogConfig(), zerolog.Nop())
	require.NoError(t, el.Start(path))

	cfg := quietConfig()
	s, err := NewSimulation(cfg, []Level{EmptyLevel(cfg, 5)}, rand.New(rand.NewSource(9)), SimOptions{Players: 1, Events: el})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s.Step(nil)
	}
	el.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 6, "level start plus one tick event per step")

	var last map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(lines[5], &last))
	assert.JSONEq(t, `"tick"`, string(last["type"]))
	assert.JSONEq(t, `5`, string(last["tickNum"]))
}

func TestEventLogStartBadPath(t *testing.T) {
	el := NewEventLog(DefaultEventLogConfig(), zerolog.Nop())
	err := el.Start(filepath.Join(t.TempDir(), "missing", "events.ndjson"))
	assert.Error(t, err)
	assert.False(t, el.GetStats().Running)
}
