package agmarknet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: time.Second},
		apiKey:      "test-key",
		resourceURL: serverURL + "/resource/test",
	}
}

func TestClient_Query_FilterParams(t *testing.T) {
	var gotQuery url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/resource/test", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Query(context.Background(), Filter{
		State:     "Maharashtra",
		Commodity: "Onion",
	}, 100)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	checks := map[string]string{
		"api-key":                    "test-key",
		"format":                     "json",
		"limit":                      "100",
		"offset":                     "0",
		"filters[state.keyword]":     "Maharashtra",
		"filters[commodity.keyword]": "Onion",
	}
	for key, want := range checks {
		if got := gotQuery.Get(key); got != want {
			t.Errorf("param %s = %q, want %q", key, got, want)
		}
	}
	// Unset filters must not be transmitted at all.
	for _, absent := range []string{"filters[district.keyword]", "filters[market.keyword]", "filters[variety.keyword]"} {
		if _, ok := gotQuery[absent]; ok {
			t.Errorf("param %s transmitted for empty filter", absent)
		}
	}
}

func TestClient_Query_Records(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		payload    any
		wantLen    int
		wantPrices []int
		wantErr    bool
		wantStatus int
	}{
		{
			name:   "parses records and defensive prices",
			status: http.StatusOK,
			payload: map[string]any{"records": []map[string]any{
				{"state": "Maharashtra", "district": "Nashik", "market": "Lasalgaon", "arrival_date": "15/05/2024", "commodity": "Onion", "variety": "Red", "modal_price": "1800"},
				{"state": "Maharashtra", "district": "Pune", "market": "Pune", "commodity": "Onion", "variety": "Local", "modal_price": "NR"},
				{"state": "Maharashtra", "district": "Nagpur", "market": "Nagpur", "commodity": "Onion", "variety": "Local"},
			}},
			wantLen:    3,
			wantPrices: []int{1800, 0, 0},
		},
		{
			name:    "empty records is a valid empty result",
			status:  http.StatusOK,
			payload: map[string]any{"records": []any{}},
			wantLen: 0,
		},
		{
			name:    "absent records array is a valid empty result",
			status:  http.StatusOK,
			payload: map[string]any{},
			wantLen: 0,
		},
		{
			name:       "non-2xx becomes StatusError",
			status:     http.StatusForbidden,
			payload:    map[string]any{"message": "invalid api key"},
			wantErr:    true,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/resource/test", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.payload)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			client := newTestClient(server.URL)
			got, err := client.Query(context.Background(), Filter{State: "Maharashtra", Commodity: "Onion"}, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error presence mismatch: err=%v wantErr=%v", err, tt.wantErr)
			}
			if tt.wantErr {
				statusErr, ok := err.(*StatusError)
				if !ok {
					t.Fatalf("expected *StatusError, got %T", err)
				}
				if statusErr.StatusCode != tt.wantStatus {
					t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.wantStatus)
				}
				return
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			for i, want := range tt.wantPrices {
				if got[i].ModalPrice != want {
					t.Errorf("record %d ModalPrice = %d, want %d", i, got[i].ModalPrice, want)
				}
			}
		})
	}
}
