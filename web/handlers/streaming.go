package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haniff/arena/internal/broadcast"
)

// handleStream serves a debate subscription over Server-Sent Events. The
// first frame is connection_established with the snapshot summary; the
// stream then replays the retained log and follows live until terminal
// state or client disconnect.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New debate stream connection", "debate_id", id, "remote_addr", r.RemoteAddr)

	snapshot, sub, err := h.manager.Subscribe(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sendSSEEvent(w, flusher, connectionEstablished(snapshot))

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Stream client disconnected", "debate_id", id)
			return
		case ev, open := <-sub.Events:
			if !open {
				slog.Debug("Stream reached end of debate", "debate_id", id)
				return
			}
			sendSSEEvent(w, flusher, ev)
		}
	}
}

// sendSSEEvent writes one event in SSE framing.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev broadcast.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		slog.Error("Failed to write SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		slog.Error("Failed to write SSE data", "error", err)
		return
	}
	flusher.Flush()
}
