package dashboard

import (
	"sort"
	"time"
)

// Plants the dashboard reports on.
const (
	PlantChina     = "CHINA-WAREHOUSE"
	PlantSingapore = "SINGAPORE-WAREHOUSE"
)

// TimeGroup selects the bucketing of the net-flow series.
type TimeGroup string

const (
	GroupDaily   TimeGroup = "daily"
	GroupWeekly  TimeGroup = "weekly"
	GroupMonthly TimeGroup = "monthly"
)

// Valid reports whether g is a known grouping.
func (g TimeGroup) Valid() bool {
	switch g {
	case GroupDaily, GroupWeekly, GroupMonthly:
		return true
	}
	return false
}

// KPI sums one plant's inventory position.
type KPI struct {
	TotalValue float64 `json:"totalValue"`
	TotalItems float64 `json:"totalItems"`
	Currency   string  `json:"currency"`
}

// NetFlowPoint is one bucket of inbound/outbound movement. Date is the bucket
// key in YYYY-MM-DD form.
type NetFlowPoint struct {
	Date     string  `json:"date"`
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
	NetFlow  float64 `json:"netFlow"`
}

const dateKey = "2006-01-02"

// ComputeKPI sums stock value and unrestricted stock for one plant. The
// currency is taken from the plant's first row, falling back to
// defaultCurrency when the plant has no rows.
func ComputeKPI(inventory []Record, plant, defaultCurrency string) KPI {
	kpi := KPI{Currency: defaultCurrency}
	first := true
	for _, row := range inventory {
		if row["PLANT_NAME"] != plant {
			continue
		}
		if first {
			kpi.Currency = row["CURRENCY"].(string)
			first = false
		}
		kpi.TotalValue += row["STOCK_SELL_VALUE"].(float64)
		kpi.TotalItems += row["UNRESTRICTED_STOCK"].(float64)
	}
	return kpi
}

// DailyNetFlow folds one plant's inbound and outbound movements into a daily
// series sorted by date ascending.
func DailyNetFlow(inbound, outbound []Record, plant string) []NetFlowPoint {
	buckets := make(map[string]*NetFlowPoint)

	add := func(rows []Record, dateColumn string, out bool) {
		for _, row := range rows {
			if row["PLANT_NAME"] != plant {
				continue
			}
			key := row[dateColumn].(time.Time).Format(dateKey)
			point, ok := buckets[key]
			if !ok {
				point = &NetFlowPoint{Date: key}
				buckets[key] = point
			}
			qty := row["NET_QUANTITY_MT"].(float64)
			if out {
				point.Outbound += qty
			} else {
				point.Inbound += qty
			}
		}
	}
	add(inbound, "INBOUND_DATE", false)
	add(outbound, "OUTBOUND_DATE", true)

	points := make([]NetFlowPoint, 0, len(buckets))
	for _, point := range buckets {
		point.NetFlow = point.Inbound - point.Outbound
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// GroupNetFlow re-buckets a daily series. Weekly buckets key on the Monday of
// the containing week, monthly buckets on the first of the month. Daily
// returns the input unchanged.
func GroupNetFlow(points []NetFlowPoint, group TimeGroup) []NetFlowPoint {
	if group == GroupDaily {
		return points
	}

	buckets := make(map[string]*NetFlowPoint)
	for _, point := range points {
		day, err := time.Parse(dateKey, point.Date)
		if err != nil {
			continue
		}

		var key string
		if group == GroupWeekly {
			key = weekStart(day).Format(dateKey)
		} else {
			key = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).Format(dateKey)
		}

		bucket, ok := buckets[key]
		if !ok {
			bucket = &NetFlowPoint{Date: key}
			buckets[key] = bucket
		}
		bucket.Inbound += point.Inbound
		bucket.Outbound += point.Outbound
		bucket.NetFlow += point.NetFlow
	}

	grouped := make([]NetFlowPoint, 0, len(buckets))
	for _, bucket := range buckets {
		grouped = append(grouped, *bucket)
	}
	sort.Slice(grouped, func(i, j int) bool { return grouped[i].Date < grouped[j].Date })
	return grouped
}

// weekStart returns the Monday of the week containing day.
func weekStart(day time.Time) time.Time {
	offset := int(time.Monday - day.Weekday())
	if offset > 0 { // Sunday
		offset = -6
	}
	return day.AddDate(0, 0, offset)
}
