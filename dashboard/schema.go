package dashboard

import (
	"fmt"
	"strconv"
	"time"
)

// Type is the expected value type of a column.
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeDate
)

// Column names one expected column and its type.
type Column struct {
	Name string
	Type Type
}

// Schema declares the columns a sheet must carry. Parsing applies the schema
// explicitly: a header missing a declared column fails the whole table, and a
// row whose cell cannot be coerced is dropped and counted, never guessed at.
type Schema struct {
	Columns []Column
}

// Record is one parsed row keyed by column name. Values are string, float64
// or time.Time depending on the column type.
type Record map[string]any

// Schemas for the three dashboard tabs.
var (
	InventorySchema = Schema{Columns: []Column{
		{Name: "PLANT_NAME", Type: TypeString},
		{Name: "STOCK_SELL_VALUE", Type: TypeNumber},
		{Name: "UNRESTRICTED_STOCK", Type: TypeNumber},
		{Name: "CURRENCY", Type: TypeString},
	}}
	InboundSchema = Schema{Columns: []Column{
		{Name: "PLANT_NAME", Type: TypeString},
		{Name: "INBOUND_DATE", Type: TypeDate},
		{Name: "NET_QUANTITY_MT", Type: TypeNumber},
	}}
	OutboundSchema = Schema{Columns: []Column{
		{Name: "PLANT_NAME", Type: TypeString},
		{Name: "OUTBOUND_DATE", Type: TypeDate},
		{Name: "NET_QUANTITY_MT", Type: TypeNumber},
	}}
)

// Parse applies the schema to a raw row grid whose first row is the header.
// It returns the parsed records and the number of rows dropped for failing
// coercion. Fewer than two rows yields an empty result.
func (s Schema) Parse(values [][]any) ([]Record, int, error) {
	if len(values) < 2 {
		return []Record{}, 0, nil
	}

	header := values[0]
	index := make(map[string]int, len(header))
	for i, cell := range header {
		if name, ok := asString(cell); ok {
			index[name] = i
		}
	}

	positions := make([]int, len(s.Columns))
	for i, col := range s.Columns {
		pos, ok := index[col.Name]
		if !ok {
			return nil, 0, fmt.Errorf("missing column %q", col.Name)
		}
		positions[i] = pos
	}

	records := make([]Record, 0, len(values)-1)
	dropped := 0
rows:
	for _, row := range values[1:] {
		record := make(Record, len(s.Columns))
		for i, col := range s.Columns {
			pos := positions[i]
			if pos >= len(row) {
				dropped++
				continue rows
			}
			value, ok := coerce(row[pos], col.Type)
			if !ok {
				dropped++
				continue rows
			}
			record[col.Name] = value
		}
		records = append(records, record)
	}

	return records, dropped, nil
}

func coerce(cell any, t Type) (any, bool) {
	switch t {
	case TypeString:
		return asString(cell)
	case TypeNumber:
		return asNumber(cell)
	case TypeDate:
		return asDate(cell)
	}
	return nil, false
}

func asString(cell any) (string, bool) {
	s, ok := cell.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func asNumber(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

func asDate(cell any) (time.Time, bool) {
	s, ok := cell.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
