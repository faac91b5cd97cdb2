package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

type serverFixture struct {
	engine *mockEngine
	sink   *mockSink
	srv    *Server
	url    string
	done   chan error
}

// startServer serves on a loopback port and shuts down with the test
func startServer(t *testing.T, cfg ServerConfig) *serverFixture {
	t.Helper()
	f := &serverFixture{engine: newMockEngine(), sink: &mockSink{}, done: make(chan error, 1)}
	cfg.Engine = f.engine
	cfg.Commands = f.sink
	cfg.DisableLogging = true
	cfg.Logger = zerolog.Nop()
	if cfg.BroadcastHz == 0 {
		cfg.BroadcastHz = 50
	}
	f.srv = NewServer(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f.url = "http://" + ln.Addr().String()
	go func() { f.done <- f.srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.srv.Shutdown(ctx)
	})
	return f
}

func (f *serverFixture) dial(t *testing.T, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.url, "http")+"/ws", header)
}

func TestWebSocketReceivesState(t *testing.T) {
	f := startServer(t, ServerConfig{})

	conn, _, err := f.dial(t, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string        `json:"event"`
		Data  game.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "game:state", msg.Event)
	assert.Equal(t, uint64(42), msg.Data.TickNumber)
}

func TestWebSocketCommands(t *testing.T) {
	f := startServer(t, ServerConfig{AdminToken: testToken})

	conn, _, err := f.dial(t, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Control without admin rights, unknown slots and garbage are dropped; the shot gets through
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"slot":1,"command":"pause"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteJSON(IntentRequest{Slot: 999, Command: "shoot"}))
	require.NoError(t, conn.WriteJSON(IntentRequest{Slot: 0, Command: "move up"}))
	require.NoError(t, conn.WriteJSON(IntentRequest{Slot: 1, Command: "shoot"}))

	require.Eventually(t, func() bool { return len(f.sink.Commands()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, input.CmdShoot, f.sink.Commands()[0].Type)
}

func TestWebSocketAdminCommands(t *testing.T) {
	f := startServer(t, ServerConfig{AdminToken: testToken})

	conn, _, err := f.dial(t, http.Header{"Authorization": {"Bearer " + testToken}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(IntentRequest{Slot: 1, Command: "pause"}))
	require.Eventually(t, func() bool { return len(f.sink.Commands()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, input.CmdPause, f.sink.Commands()[0].Type)
}

func TestWebSocketOriginRejected(t *testing.T) {
	f := startServer(t, ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	_, resp, err := f.dial(t, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := f.dial(t, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketConnectionLimit(t *testing.T) {
	f := startServer(t, ServerConfig{MaxWSConns: 1})

	conn, _, err := f.dial(t, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := f.dial(t, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerShutdown(t *testing.T) {
	f := startServer(t, ServerConfig{})

	resp, err := http.Get(f.url + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.srv.Shutdown(ctx))

	select {
	case err := <-f.done:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	// Second shutdown is harmless
	assert.NoError(t, f.srv.Shutdown(ctx))
}

// ============================================================================
// Observability
// ============================================================================

func TestDebugHandler(t *testing.T) {
	RecordTick(time.Millisecond)
	h := DebugHandler(ObservabilityConfig{Enabled: true})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "game_tick_duration_seconds")
}

func TestDebugHandlerBasicAuth(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{Enabled: true, BasicAuthUser: "ops", BasicAuthPass: "pw"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.SetBasicAuth("ops", "pw")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartDebugServer(t *testing.T) {
	srv, err := StartDebugServer(ObservabilityConfig{Enabled: false}, zerolog.Nop())
	assert.NoError(t, err)
	assert.Nil(t, srv)

	srv, err = StartDebugServer(ObservabilityConfig{Enabled: true, ListenAddr: "127.0.0.1:0"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

// scrapeMetrics returns the Prometheus text exposition
func scrapeMetrics(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	DebugHandler(ObservabilityConfig{Enabled: true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestObserveSnapshot(t *testing.T) {
	ObserveSnapshot(&game.Snapshot{
		Vehicles: []game.VehicleSnapshot{
			{Role: game.RolePlayer}, {Role: game.RoleEnemy}, {Role: game.RoleEnemy},
		},
		Projectiles: make([]game.ProjectileSnapshot, 3),
		HUD:         game.HUDSnapshot{Level: 2, EnemiesRemaining: 11},
	})

	body := scrapeMetrics(t)
	assert.Contains(t, body, `game_entities{kind="player"} 1`)
	assert.Contains(t, body, `game_entities{kind="enemy"} 2`)
	assert.Contains(t, body, `game_entities{kind="projectile"} 3`)
	assert.Contains(t, body, "game_enemies_remaining 11")
	assert.Contains(t, body, "game_level 2")
}

func TestRecordVerdictAndCommands(t *testing.T) {
	RecordVerdict(game.VerdictBaseDestroyed)
	assert.Contains(t, scrapeMetrics(t), `game_round_outcomes_total{outcome="base_destroyed"}`)

	assert.Equal(t, "queued", commandResult(nil))
	assert.Equal(t, "dropped", commandResult(input.ErrQueueFull))
	assert.Equal(t, "dropped", commandResult(input.ErrQueueStopped))
	assert.Equal(t, "invalid", commandResult(input.ErrInvalidSlot))
	assert.Equal(t, "forbidden", commandResult(errForbidden))
	assert.Equal(t, "invalid", commandResult(io.ErrUnexpectedEOF))
}
