package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tank-battle/internal/game"
	"tank-battle/internal/input"
)

var errForbidden = errors.New("game control requires admin authentication")

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	Engine    game.EngineStats `json:"engine"`
	Queue     input.QueueStats `json:"queue"`
	RateLimit LimiterStats     `json:"rateLimit"`
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatsResponse{
		Engine:    h.engine.GetStats(),
		Queue:     h.commands.Stats(),
		RateLimit: h.limiter.GetStats(),
	})
}

// LevelInfo describes one level of the loaded pack
type LevelInfo struct {
	Index      int      `json:"index"` // 1-based
	Name       string   `json:"name"`
	EnemyQuota int      `json:"enemyQuota,omitempty"`
	Layout     []string `json:"layout"`
}

func (h *routerHandlers) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	levels := h.engine.Levels()
	out := make([]LevelInfo, 0, len(levels))
	for i, lvl := range levels {
		out = append(out, LevelInfo{
			Index:      i + 1,
			Name:       lvl.Name,
			EnemyQuota: lvl.EnemyQuota,
			Layout:     lvl.Layout(),
		})
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := h.engine.GetSnapshot()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.frames.EncodePNG(w, snap); err != nil {
		h.log.Error().Err(err).Msg("frame render failed")
		return
	}
	RecordRender(time.Since(start))
}

// IntentRequest is the body of POST /api/intent and of WebSocket messages
type IntentRequest struct {
	Slot    int    `json:"slot"`
	Command string `json:"command"`
}

// submit parses and queues a command. Player commands must name a slot in
// 1..players; control commands need admin rights instead.
func submit(sink CommandSink, req IntentRequest, authorized bool, players int) (input.Command, error) {
	cmd, err := input.Parse(req.Slot, req.Command)
	if err == nil {
		err = cmd.CheckSlot(players)
	}
	if err == nil && cmd.Type.IsControl() && !authorized {
		err = errForbidden
	}
	if err == nil {
		err = sink.Enqueue(cmd)
	}
	RecordCommand(commandResult(err))
	return cmd, err
}

func (h *routerHandlers) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	cmd, err := submit(h.commands, req, h.admin.Authorized(r), h.engine.PlayerSlots())
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"queued":  true,
			"slot":    cmd.Slot,
			"command": cmd.Type.String(),
		})
	case errors.Is(err, input.ErrQueueFull), errors.Is(err, input.ErrQueueStopped):
		w.Header().Set("Retry-After", "1")
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, errForbidden):
		writeError(w, err.Error(), http.StatusForbidden)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *routerHandlers) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed int64 `json:"seed"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}

	if err := h.engine.NewGame(req.Seed); err != nil {
		h.log.Error().Err(err).Msg("new game failed")
		writeError(w, fmt.Sprintf("new game: %v", err), http.StatusInternalServerError)
		return
	}
	h.log.Info().Int64("seed", req.Seed).Str("ip", GetClientIP(r)).Msg("new game via API")
	writeJSON(w, h.engine.GetStats())
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	writeJSON(w, map[string]bool{"paused": h.engine.Paused()})
}

func (h *routerHandlers) handleResume(w http.ResponseWriter, r *http.Request) {
	h.engine.Resume()
	writeJSON(w, map[string]bool{"paused": h.engine.Paused()})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
