package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/synapse/server/session"
)

// SessionHandler exposes the session collection over REST.
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// HandleList handles GET /api/sessions.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": h.manager.Sessions(),
	})
}

type startRequest struct {
	Role string `json:"role"`
}

// HandleStart handles POST /api/sessions: selecting a role resumes its
// session or creates a fresh one.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing role"})
		return
	}

	sess, err := h.manager.StartNewChat(session.Role(req.Role))
	if err != nil {
		if errors.Is(err, session.ErrUnknownRole) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unknown role: " + req.Role})
			return
		}
		slog.Error("failed to start session", "role", req.Role, "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// HandleDelete handles DELETE /api/sessions/{id}. Unknown IDs still return
// 204; the delete is a no-op then.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Session ID required"})
		return
	}

	if err := h.manager.DeleteChat(sessionID); err != nil {
		slog.Error("failed to delete session", "sessionId", sessionID, "error", err)
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /api/sessions. Destructive and irreversible;
// issuing the request is the caller's explicit confirmation.
func (h *SessionHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearAllHistory(); err != nil {
		slog.Error("failed to clear history", "error", err)
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Register registers session handlers on the given mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.HandleList)
	mux.HandleFunc("POST /api/sessions", h.HandleStart)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDelete)
	mux.HandleFunc("DELETE /api/sessions", h.HandleClear)
}
