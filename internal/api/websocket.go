package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	wsWriteWait  = 2 * time.Second
	wsMaxMessage = 1024
)

// WSConfig configures the WebSocket hub
type WSConfig struct {
	MaxConnections int
	AllowedOrigins []string
	BroadcastHz    int
	PlayerSlots    int // commands for other slots are rejected
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn       *websocket.Conn
	ip         string
	authorized bool // may send pause/resume/restart
}

// WebSocketHub pushes snapshots to clients and feeds their commands into the input queue
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	cfg       WSConfig
	upgrader  websocket.Upgrader
	wsLimiter *WebSocketRateLimiter
	commands  CommandSink
	admin     *AdminGuard
	log       zerolog.Logger
}

// NewWebSocketHub creates a new hub with connection limiting
func NewWebSocketHub(cfg WSConfig, commands CommandSink, admin *AdminGuard, logger zerolog.Logger) *WebSocketHub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 64
	}
	if cfg.BroadcastHz <= 0 {
		cfg.BroadcastHz = 10
	}
	if cfg.PlayerSlots <= 0 {
		cfg.PlayerSlots = 1
	}
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		cfg:        cfg,
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		commands:   commands,
		admin:      admin,
		log:        logger.With().Str("component", "ws").Logger(),
	}

	origins := NewOriginChecker(cfg.AllowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			h.log.Warn().Str("origin", origin).Msg("websocket connection rejected by origin")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run serves registrations and broadcasts until Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.wsLimiter.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			h.log.Debug().Str("ip", client.ip).Int("total", count).Msg("client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.remove(conn)
			}
			IncrementWSMessages()
		}
	}
}

// remove closes a connection and frees its IP slot
func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		h.wsLimiter.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.Debug().Int("remaining", count).Msg("client disconnected")
		UpdateWSConnections(count)
	}
}

// Stop disconnects every client and ends Run and the broadcast loop
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Message is the envelope for every server push
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Broadcast sends a message to all connected clients, dropping it under backpressure
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	jsonBytes, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("broadcast encode failed")
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop publishes game:state at the configured rate and keeps the gauges current
func (h *WebSocketHub) StartBroadcastLoop(engine EngineInterface, onStats func()) {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.BroadcastHz))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}

			snap := engine.GetSnapshot()
			ObserveSnapshot(snap)
			if onStats != nil {
				onStats()
			}

			if h.ClientCount() == 0 {
				continue
			}
			h.Broadcast("game:state", snap)
		}
	}()
}

// HandleWebSocket upgrades a connection and reads {"slot":n,"command":"..."} messages
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= h.cfg.MaxConnections {
		h.log.Warn().Int("total", total).Msg("websocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		h.log.Warn().Str("ip", ip).Msg("websocket connection rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	authorized := h.admin.Authorized(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	select {
	case h.register <- &wsClient{conn: conn, ip: ip, authorized: authorized}:
	case <-h.done:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go h.readLoop(conn, ip, authorized)
}

func (h *WebSocketHub) readLoop(conn *websocket.Conn, ip string, authorized bool) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req IntentRequest
		if err := json.Unmarshal(message, &req); err != nil {
			RecordCommand("invalid")
			continue
		}
		if _, err := submit(h.commands, req, authorized, h.cfg.PlayerSlots); err != nil {
			h.log.Debug().Err(err).Str("ip", ip).Int("slot", req.Slot).Msg("websocket command rejected")
		}
	}
}
