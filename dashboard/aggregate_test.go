package dashboard

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func inboundRow(plant, date string, qty float64) Record {
	return Record{"PLANT_NAME": plant, "INBOUND_DATE": day(date), "NET_QUANTITY_MT": qty}
}

func outboundRow(plant, date string, qty float64) Record {
	return Record{"PLANT_NAME": plant, "OUTBOUND_DATE": day(date), "NET_QUANTITY_MT": qty}
}

func TestComputeKPI(t *testing.T) {
	inventory := []Record{
		{"PLANT_NAME": PlantChina, "STOCK_SELL_VALUE": 100.0, "UNRESTRICTED_STOCK": 10.0, "CURRENCY": "CNY"},
		{"PLANT_NAME": PlantSingapore, "STOCK_SELL_VALUE": 55.0, "UNRESTRICTED_STOCK": 5.0, "CURRENCY": "SGD"},
		{"PLANT_NAME": PlantChina, "STOCK_SELL_VALUE": 200.0, "UNRESTRICTED_STOCK": 20.0, "CURRENCY": "CNY"},
	}

	kpi := ComputeKPI(inventory, PlantChina, "CNY")
	if kpi.TotalValue != 300 {
		t.Errorf("expected total value 300, got %v", kpi.TotalValue)
	}
	if kpi.TotalItems != 30 {
		t.Errorf("expected total items 30, got %v", kpi.TotalItems)
	}
	if kpi.Currency != "CNY" {
		t.Errorf("expected currency CNY, got %q", kpi.Currency)
	}
}

func TestComputeKPI_EmptyPlantUsesDefaultCurrency(t *testing.T) {
	kpi := ComputeKPI(nil, PlantSingapore, "SGD")
	if kpi.TotalValue != 0 || kpi.TotalItems != 0 {
		t.Errorf("expected zero totals, got %+v", kpi)
	}
	if kpi.Currency != "SGD" {
		t.Errorf("expected fallback currency SGD, got %q", kpi.Currency)
	}
}

func TestDailyNetFlow(t *testing.T) {
	inbound := []Record{
		inboundRow(PlantChina, "2025-03-11", 10),
		inboundRow(PlantChina, "2025-03-10", 4),
		inboundRow(PlantChina, "2025-03-11", 2),
		inboundRow(PlantSingapore, "2025-03-11", 99), // other plant, ignored
	}
	outbound := []Record{
		outboundRow(PlantChina, "2025-03-11", 5),
		outboundRow(PlantChina, "2025-03-12", 3),
	}

	points := DailyNetFlow(inbound, outbound, PlantChina)
	if len(points) != 3 {
		t.Fatalf("expected 3 daily buckets, got %d", len(points))
	}

	want := []NetFlowPoint{
		{Date: "2025-03-10", Inbound: 4, Outbound: 0, NetFlow: 4},
		{Date: "2025-03-11", Inbound: 12, Outbound: 5, NetFlow: 7},
		{Date: "2025-03-12", Inbound: 0, Outbound: 3, NetFlow: -3},
	}
	for i, w := range want {
		if points[i] != w {
			t.Errorf("bucket %d: expected %+v, got %+v", i, w, points[i])
		}
	}
}

func TestGroupNetFlow_Weekly(t *testing.T) {
	daily := []NetFlowPoint{
		// 2025-01-06 is a Monday.
		{Date: "2025-01-06", Inbound: 1, Outbound: 0, NetFlow: 1},
		{Date: "2025-01-08", Inbound: 2, Outbound: 1, NetFlow: 1}, // Wednesday, same week
		{Date: "2025-01-12", Inbound: 4, Outbound: 0, NetFlow: 4}, // Sunday, still same week
		{Date: "2025-01-13", Inbound: 8, Outbound: 2, NetFlow: 6}, // next Monday
	}

	grouped := GroupNetFlow(daily, GroupWeekly)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", len(grouped))
	}

	first := grouped[0]
	if first.Date != "2025-01-06" {
		t.Errorf("expected week keyed on its Monday, got %q", first.Date)
	}
	if first.Inbound != 7 || first.Outbound != 1 || first.NetFlow != 6 {
		t.Errorf("unexpected first week sums %+v", first)
	}
	if grouped[1].Date != "2025-01-13" {
		t.Errorf("expected second week keyed 2025-01-13, got %q", grouped[1].Date)
	}
}

func TestGroupNetFlow_Monthly(t *testing.T) {
	daily := []NetFlowPoint{
		{Date: "2025-01-31", Inbound: 1, NetFlow: 1},
		{Date: "2025-02-01", Inbound: 2, NetFlow: 2},
		{Date: "2025-02-28", Inbound: 4, NetFlow: 4},
	}

	grouped := GroupNetFlow(daily, GroupMonthly)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(grouped))
	}
	if grouped[0].Date != "2025-01-01" || grouped[0].Inbound != 1 {
		t.Errorf("unexpected january bucket %+v", grouped[0])
	}
	if grouped[1].Date != "2025-02-01" || grouped[1].Inbound != 6 {
		t.Errorf("unexpected february bucket %+v", grouped[1])
	}
}

func TestGroupNetFlow_DailyPassthrough(t *testing.T) {
	daily := []NetFlowPoint{{Date: "2025-01-06", Inbound: 1, NetFlow: 1}}
	grouped := GroupNetFlow(daily, GroupDaily)
	if len(grouped) != 1 || grouped[0] != daily[0] {
		t.Errorf("expected daily grouping to return the input unchanged, got %+v", grouped)
	}
}
