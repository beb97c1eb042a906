// Package handlers provides the HTTP shell around the debate engine.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/haniff/arena/internal/catalog"
	"github.com/haniff/arena/internal/core"
	"github.com/haniff/arena/internal/engine"
	"github.com/haniff/arena/internal/export"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager *engine.Manager
}

// New creates a new Handler.
func New(manager *engine.Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes builds the chi router for the API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", h.handleListProviders)

		r.Route("/debates", func(r chi.Router) {
			r.Post("/", h.handleCreateDebate)
			r.Get("/", h.handleListDebates)
			r.Get("/{id}", h.handleGetDebate)
			r.Get("/{id}/status", h.handleGetStatus)
			r.Post("/{id}/start", h.handleStartDebate)
			r.Get("/{id}/export", h.handleExportDebate)
			r.Delete("/{id}", h.handleDeleteDebate)
			r.Get("/{id}/stream", h.handleStream)
		})

		r.Get("/ws/{id}", h.handleWebSocket)
	})

	return r
}

// createDebateRequest wraps the configuration for creation.
type createDebateRequest struct {
	Config core.DebateConfig `json:"config"`
}

type createDebateResponse struct {
	DebateID string            `json:"debate_id"`
	Status   core.DebateStatus `json:"status"`
	Message  string            `json:"message"`
}

func (h *Handler) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var req createDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.WrapError(core.KindInvalidConfig, err, "invalid request body"))
		return
	}

	state, err := h.manager.CreateDebate(req.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDebateResponse{
		DebateID: state.DebateID,
		Status:   state.Status,
		Message:  "Debate created successfully",
	})
}

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	debates, err := h.manager.ListDebates()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"debates": debates,
		"total":   len(debates),
	})
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.GetDebate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"debate": state})
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleStartDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.StartDebate(id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"debate_id": id,
		"status":    core.StatusInProgress,
		"message":   "Debate execution started. Subscribe for real-time updates.",
	})
}

func (h *Handler) handleExportDebate(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.GetDebate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}

	exporter, err := export.GetExporter(format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition",
		"attachment; filename=\""+export.GenerateFilename(state, exporter.FileExtension())+"\"")
	if err := exporter.Export(state, w); err != nil {
		slog.Error("Failed to export debate", "debate_id", state.DebateID, "format", format, "error", err)
	}
}

func (h *Handler) handleDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteDebate(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := catalog.Providers()
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": providers,
		"total":     len(providers),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps classified errors to HTTP statuses. Unclassified errors
// become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindInvalidConfig, core.KindUnsupportedFormat:
		status = http.StatusBadRequest
	case core.KindInvalidTransition:
		status = http.StatusConflict
	}

	if kind == "" {
		kind = "internal"
		slog.Error("Unclassified handler error", "error", err)
	}

	writeJSON(w, status, map[string]any{
		"error":  string(kind),
		"detail": err.Error(),
	})
}
