package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/synapse/server/notify"
	"github.com/synapse/server/session"
)

// NotifyHandler accepts alert trigger requests and publishes them on the
// role's notification channel.
type NotifyHandler struct {
	hub *notify.Hub
}

// NewNotifyHandler creates a handler publishing to hub.
func NewNotifyHandler(hub *notify.Hub) *NotifyHandler {
	return &NotifyHandler{hub: hub}
}

type notifyRequest struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// HandleNotify handles POST /api/notify. Missing role or message is a
// validation error reported synchronously with a 400; nothing is retried.
func (h *NotifyHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	if req.Role == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing role or message"})
		return
	}

	h.hub.Trigger(session.Role(req.Role), req.Message)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Notification sent to role: %s", req.Role),
	})
}

// Register registers the notify endpoint on the given mux.
func (h *NotifyHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/notify", h.HandleNotify)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
