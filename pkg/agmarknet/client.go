// Package agmarknet queries the data.gov.in daily mandi price resource
// (Agmarknet). It transmits only the filters a caller actually set and
// normalizes the string-heavy records the API returns.
package agmarknet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultResourceURL = "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"

// Filter narrows a price query. State and Commodity are required by the
// ranking engine's contract; the API itself accepts any subset.
type Filter struct {
	State     string
	District  string
	Market    string
	Commodity string
	Variety   string
}

// Record is one mandi price report. ModalPrice is already parsed; reports
// with a missing or malformed price carry 0.
type Record struct {
	State       string `json:"state"`
	District    string `json:"district"`
	Market      string `json:"market"`
	ArrivalDate string `json:"arrival_date"`
	Commodity   string `json:"commodity"`
	Variety     string `json:"variety"`
	ModalPrice  int    `json:"modal_price"`
}

// StatusError reports a non-2xx response from the price API, keeping the raw
// body for diagnosis.
type StatusError struct {
	StatusCode int
	Details    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agmarknet: HTTP %d: %s", e.StatusCode, e.Details)
}

// Client is a client for the Agmarknet price resource.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	resourceURL string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		apiKey:      apiKey,
		resourceURL: defaultResourceURL,
	}
}

// apiResponse is shaped for the resource API response.
type apiResponse struct {
	Records []struct {
		State       string `json:"state"`
		District    string `json:"district"`
		Market      string `json:"market"`
		ArrivalDate string `json:"arrival_date"`
		Commodity   string `json:"commodity"`
		Variety     string `json:"variety"`
		ModalPrice  string `json:"modal_price"`
	} `json:"records"`
}

// Query fetches up to limit price records matching the filter. An empty
// result slice means the API has no data for these filters, which is a valid
// outcome and not an error.
func (c *Client) Query(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", "0")

	setFilter(params, "state", filter.State)
	setFilter(params, "district", filter.District)
	setFilter(params, "market", filter.Market)
	setFilter(params, "commodity", filter.Commodity)
	setFilter(params, "variety", filter.Variety)

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", c.resourceURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Details: strings.TrimSpace(string(body))}
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(apiResp.Records))
	for _, raw := range apiResp.Records {
		price, err := strconv.Atoi(strings.TrimSpace(raw.ModalPrice))
		if err != nil {
			price = 0
		}
		records = append(records, Record{
			State:       raw.State,
			District:    raw.District,
			Market:      raw.Market,
			ArrivalDate: raw.ArrivalDate,
			Commodity:   raw.Commodity,
			Variety:     raw.Variety,
			ModalPrice:  price,
		})
	}
	return records, nil
}

func setFilter(params url.Values, field, value string) {
	if value != "" {
		params.Set(fmt.Sprintf("filters[%s.keyword]", field), value)
	}
}
