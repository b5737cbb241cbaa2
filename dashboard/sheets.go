// Package dashboard fetches inventory movement data from a spreadsheet API
// and aggregates it into the numbers the dashboard renders.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Tab names of the three ranges the dashboard reads.
const (
	SheetInventory = "Inventory"
	SheetInbound   = "Inbound"
	SheetOutbound  = "Outbound"
)

// Client reads tabular ranges from the Google Sheets values API.
type Client struct {
	baseURL       string
	spreadsheetID string
	apiKey        string
	client        *http.Client
}

// NewClient creates a read-only client for one spreadsheet. An empty baseURL
// selects the public Sheets endpoint.
func NewClient(baseURL, spreadsheetID, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:       baseURL,
		spreadsheetID: spreadsheetID,
		apiKey:        apiKey,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the client has credentials to fetch with.
func (c *Client) Configured() bool {
	return c.spreadsheetID != "" && c.apiKey != ""
}

type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchValues returns the raw row grid of one sheet tab. The first row is the
// header naming each column.
func (c *Client) FetchValues(ctx context.Context, sheetName string) ([][]any, error) {
	ctx, span := otel.Tracer("synapse").Start(ctx, "dashboard.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("sheet", sheetName))

	endpoint := fmt.Sprintf("%s/%s/values/%s?key=%s",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(sheetName), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet %s: %w", sheetName, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("sheet %s: %s", sheetName, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("sheet %s: unexpected status %d", sheetName, res.StatusCode)
	}

	var vr valueRange
	if err := json.NewDecoder(res.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("failed to decode sheet %s: %w", sheetName, err)
	}
	return vr.Values, nil
}
