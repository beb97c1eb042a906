package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/haniff/arena/internal/broadcast"
	"github.com/haniff/arena/internal/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Output-only surface; origin checks belong to the deployment.
		return true
	},
}

// handleWebSocket serves a debate subscription over WebSocket. Flow:
// verify the debate exists, upgrade, send connection_established with the
// snapshot summary, then forward the event stream. Client pings are
// answered with pongs out-of-band.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, sub, err := h.manager.Subscribe(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "debate_id", id, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("WebSocket connected", "debate_id", id, "remote_addr", r.RemoteAddr)

	// gorilla permits one concurrent writer; pongs and events share the
	// connection.
	var writeMu sync.Mutex
	writeEvent := func(ev broadcast.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(ev)
	}

	if err := writeEvent(connectionEstablished(snapshot)); err != nil {
		return
	}

	// Reader loop: consume client frames for keepalive and detect
	// disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("Received invalid JSON from WebSocket client", "debate_id", id)
				continue
			}
			if msg.Type == "ping" {
				writeMu.Lock()
				err := conn.WriteJSON(map[string]any{
					"type":      "pong",
					"timestamp": time.Now().UTC(),
				})
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-done:
			slog.Info("WebSocket disconnected", "debate_id", id)
			return
		case ev, open := <-sub.Events:
			if !open {
				writeMu.Lock()
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "debate stream ended"))
				writeMu.Unlock()
				return
			}
			if err := writeEvent(ev); err != nil {
				slog.Debug("WebSocket write failed", "debate_id", id, "error", err)
				return
			}
		}
	}
}

// connectionEstablished is the per-subscriber first frame; it is not part
// of the debate's event log.
func connectionEstablished(snapshot *core.DebateState) broadcast.Event {
	return broadcast.NewEvent(broadcast.EventConnectionEstablished, snapshot.DebateID, map[string]any{
		"status":        snapshot.Status,
		"current_round": snapshot.CurrentRound,
		"current_turn":  snapshot.CurrentTurn,
		"message_count": len(snapshot.History),
	})
}
