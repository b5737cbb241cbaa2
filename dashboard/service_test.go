package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeSheets serves the three dashboard tabs the way the values API does.
func fakeSheets(t *testing.T, tabs map[string][][]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("expected api key on request, got %q", got)
		}
		parts := strings.Split(r.URL.Path, "/")
		sheet := parts[len(parts)-1]
		values, ok := tabs[sheet]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "Unable to parse range: " + sheet},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"range":  sheet + "!A1:Z100",
			"values": values,
		})
	}))
}

func defaultTabs() map[string][][]any {
	return map[string][][]any{
		SheetInventory: {
			{"PLANT_NAME", "STOCK_SELL_VALUE", "UNRESTRICTED_STOCK", "CURRENCY"},
			{PlantChina, 1000.0, 50.0, "CNY"},
			{PlantChina, 500.0, 25.0, "CNY"},
			{PlantSingapore, 300.0, 10.0, "SGD"},
		},
		SheetInbound: {
			{"PLANT_NAME", "INBOUND_DATE", "NET_QUANTITY_MT"},
			{PlantChina, "2025-03-10", 12.0},
			{PlantSingapore, "2025-03-10", 3.0},
		},
		SheetOutbound: {
			{"PLANT_NAME", "OUTBOUND_DATE", "NET_QUANTITY_MT"},
			{PlantChina, "2025-03-10", 5.0},
		},
	}
}

func TestService_Snapshot(t *testing.T) {
	ts := fakeSheets(t, defaultTabs())
	defer ts.Close()

	svc := NewService(NewClient(ts.URL, "sheet-1", "test-key"))
	if !svc.Configured() {
		t.Fatal("expected service to be configured")
	}

	snapshot, err := svc.Snapshot(context.Background(), GroupDaily)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snapshot.Group != GroupDaily {
		t.Errorf("expected daily group, got %q", snapshot.Group)
	}
	if snapshot.DroppedRows != 0 {
		t.Errorf("expected 0 dropped rows, got %d", snapshot.DroppedRows)
	}
	if len(snapshot.Plants) != 2 {
		t.Fatalf("expected 2 plant reports, got %d", len(snapshot.Plants))
	}

	china := snapshot.Plants[0]
	if china.Plant != PlantChina {
		t.Fatalf("expected china report first, got %q", china.Plant)
	}
	if china.KPI.TotalValue != 1500 || china.KPI.TotalItems != 75 || china.KPI.Currency != "CNY" {
		t.Errorf("unexpected china KPI %+v", china.KPI)
	}
	if len(china.NetFlow) != 1 {
		t.Fatalf("expected 1 net flow bucket, got %d", len(china.NetFlow))
	}
	if got := china.NetFlow[0]; got.Inbound != 12 || got.Outbound != 5 || got.NetFlow != 7 {
		t.Errorf("unexpected china net flow %+v", got)
	}

	singapore := snapshot.Plants[1]
	if singapore.KPI.TotalValue != 300 || singapore.KPI.Currency != "SGD" {
		t.Errorf("unexpected singapore KPI %+v", singapore.KPI)
	}
}

func TestService_SnapshotCountsDroppedRows(t *testing.T) {
	tabs := defaultTabs()
	tabs[SheetInbound] = append(tabs[SheetInbound],
		[]any{PlantChina, "not a date", 9.0},
		[]any{PlantChina, "2025-03-11", "NaN-ish"},
	)
	ts := fakeSheets(t, tabs)
	defer ts.Close()

	svc := NewService(NewClient(ts.URL, "sheet-1", "test-key"))
	snapshot, err := svc.Snapshot(context.Background(), GroupDaily)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.DroppedRows != 2 {
		t.Errorf("expected 2 dropped rows, got %d", snapshot.DroppedRows)
	}
}

func TestService_SnapshotFailsOnMissingColumn(t *testing.T) {
	tabs := defaultTabs()
	tabs[SheetInventory] = [][]any{
		{"PLANT_NAME", "STOCK_SELL_VALUE"}, // schema columns missing
		{PlantChina, 1000.0},
	}
	ts := fakeSheets(t, tabs)
	defer ts.Close()

	svc := NewService(NewClient(ts.URL, "sheet-1", "test-key"))
	if _, err := svc.Snapshot(context.Background(), GroupDaily); err == nil {
		t.Fatal("expected error when a declared column is missing")
	}
}

func TestClient_FetchValuesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "API key not valid"},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sheet-1", "bad-key")
	_, err := c.FetchValues(context.Background(), SheetInventory)
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected upstream message surfaced, got %v", err)
	}
}

func TestClient_Configured(t *testing.T) {
	if NewClient("", "", "").Configured() {
		t.Error("expected empty client to be unconfigured")
	}
	if !NewClient("", "sheet", "key").Configured() {
		t.Error("expected credentialed client to be configured")
	}
}
