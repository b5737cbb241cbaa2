package dashboard

import (
	"context"
	"fmt"
	"log/slog"
)

// PlantReport is one plant's aggregated view.
type PlantReport struct {
	Plant   string         `json:"plant"`
	KPI     KPI            `json:"kpi"`
	NetFlow []NetFlowPoint `json:"netFlow"`
}

// Snapshot is the full dashboard document.
type Snapshot struct {
	Group       TimeGroup     `json:"group"`
	Plants      []PlantReport `json:"plants"`
	DroppedRows int           `json:"droppedRows"`
}

// Service fetches the three sheet tabs and aggregates them per plant.
type Service struct {
	client *Client
}

// NewService creates a dashboard service over the given sheet client.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// Configured reports whether the underlying data source is usable.
func (s *Service) Configured() bool {
	return s.client.Configured()
}

var plantDefaults = []struct {
	plant    string
	currency string
}{
	{PlantChina, "CNY"},
	{PlantSingapore, "SGD"},
}

// Snapshot fetches all three tabs and builds the aggregated document with the
// requested grouping.
func (s *Service) Snapshot(ctx context.Context, group TimeGroup) (*Snapshot, error) {
	inventoryRaw, err := s.client.FetchValues(ctx, SheetInventory)
	if err != nil {
		return nil, err
	}
	inboundRaw, err := s.client.FetchValues(ctx, SheetInbound)
	if err != nil {
		return nil, err
	}
	outboundRaw, err := s.client.FetchValues(ctx, SheetOutbound)
	if err != nil {
		return nil, err
	}

	inventory, droppedInv, err := InventorySchema.Parse(inventoryRaw)
	if err != nil {
		return nil, fmt.Errorf("inventory sheet: %w", err)
	}
	inbound, droppedIn, err := InboundSchema.Parse(inboundRaw)
	if err != nil {
		return nil, fmt.Errorf("inbound sheet: %w", err)
	}
	outbound, droppedOut, err := OutboundSchema.Parse(outboundRaw)
	if err != nil {
		return nil, fmt.Errorf("outbound sheet: %w", err)
	}

	snapshot := &Snapshot{
		Group:       group,
		DroppedRows: droppedInv + droppedIn + droppedOut,
	}
	if snapshot.DroppedRows > 0 {
		slog.Warn("dashboard rows dropped during parsing", "count", snapshot.DroppedRows)
	}

	for _, def := range plantDefaults {
		daily := DailyNetFlow(inbound, outbound, def.plant)
		snapshot.Plants = append(snapshot.Plants, PlantReport{
			Plant:   def.plant,
			KPI:     ComputeKPI(inventory, def.plant, def.currency),
			NetFlow: GroupNetFlow(daily, group),
		})
	}

	return snapshot, nil
}
