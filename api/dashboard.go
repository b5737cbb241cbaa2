package api

import (
	"log/slog"
	"net/http"

	"github.com/synapse/server/dashboard"
)

// DashboardHandler serves the aggregated inventory dashboard document.
type DashboardHandler struct {
	service *dashboard.Service
}

// NewDashboardHandler creates a handler over the dashboard service.
func NewDashboardHandler(service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// HandleDashboard handles GET /api/dashboard?group=daily|weekly|monthly.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		slog.Error("dashboard is not configured, set GOOGLE_SPREADSHEET_ID and GOOGLE_SHEETS_API_KEY")
		internalError(w)
		return
	}

	group := dashboard.TimeGroup(r.URL.Query().Get("group"))
	if group == "" {
		group = dashboard.GroupDaily
	}
	if !group.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unknown group: " + string(group)})
		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), group)
	if err != nil {
		slog.Error("failed to build dashboard snapshot", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Upstream data source failed"})
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// Register registers the dashboard endpoint on the given mux.
func (h *DashboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", h.HandleDashboard)
}
