// Package api exposes the server's REST endpoints.
package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ChatProxyHandler forwards chat requests to the configured workflow webhook
// with a bearer token from server configuration. The upstream JSON is
// returned verbatim on success; every failure, including missing
// configuration, collapses to a generic 500 with detail logged server-side
// only.
type ChatProxyHandler struct {
	webhookURL string
	token      string
	client     *http.Client
}

// NewChatProxyHandler creates the proxy. Empty webhookURL or token makes
// every call fail with a 500.
func NewChatProxyHandler(webhookURL, token string, timeout time.Duration) *ChatProxyHandler {
	return &ChatProxyHandler{
		webhookURL: webhookURL,
		token:      token,
		client:     &http.Client{Timeout: timeout},
	}
}

// HandleChat handles POST /api/chat.
func (h *ChatProxyHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if h.webhookURL == "" || h.token == "" {
		slog.Error("chat proxy is not configured, set N8N_WEBHOOK_URL and N8N_BEARER_TOKEN")
		internalError(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read chat proxy request body", "error", err)
		internalError(w)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build webhook request", "error", err)
		internalError(w)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	res, err := h.client.Do(req)
	if err != nil {
		slog.Error("webhook unreachable", "error", err)
		internalError(w)
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		slog.Error("webhook returned failure", "status", res.StatusCode, "body", string(detail))
		internalError(w)
		return
	}

	upstream, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Error("failed to read webhook response", "error", err)
		internalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(upstream)
}

// Register registers the chat proxy on the given mux.
func (h *ChatProxyHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.HandleChat)
}

func internalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"Internal Server Error"}`))
}
