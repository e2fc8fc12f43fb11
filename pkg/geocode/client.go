// Package geocode talks to the Google Maps geocoding and distance-matrix
// APIs. It turns administrative place names (state/district/village) into
// coordinates, derives postal codes from coordinates, and estimates road
// travel distance from a coordinate origin to a free-text destination.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultMatrixURL  = "https://maps.googleapis.com/maps/api/distancematrix/json"

	cacheExpiry  = 24 * time.Hour
	cacheCleanup = 48 * time.Hour
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TravelEstimate holds the road distance and the provider's duration text for
// a single origin/destination pair.
type TravelEstimate struct {
	DistanceKm float64 `json:"distance_km"`
	Duration   string  `json:"duration"`
}

// ResolutionError is returned when the geocoding provider cannot match a
// place. Reason carries the provider's raw error message when it sent one.
type ResolutionError struct {
	Place  string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("geocoding failed for %q", e.Place)
	}
	return fmt.Sprintf("geocoding failed for %q: %s", e.Place, e.Reason)
}

// Client is a client for the Google Maps web service APIs. Resolved places
// and pincodes are cached in memory since administrative locations do not
// move between requests.
type Client struct {
	httpClient *http.Client
	apiKey     string
	geocodeURL string
	matrixURL  string
	cache      *cache.Cache
}

// NewClient returns a Client using the given API key. Each outbound call is
// bounded by the HTTP client timeout so a hanging provider cannot stall a
// whole ranking batch.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		geocodeURL: defaultGeocodeURL,
		matrixURL:  defaultMatrixURL,
		cache:      cache.New(cacheExpiry, cacheCleanup),
	}
}

// geocodeResponse is shaped for the geocoding API response.
type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// matrixResponse is shaped for the distance-matrix API response.
type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int64  `json:"value"` // meters
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Value int64  `json:"value"`
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// PlaceName joins the non-empty components in village, district, state order
// with ", ", matching how farmer locations are written on record.
func PlaceName(state, district, village string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{village, district, state} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve geocodes a state/district/village combination to coordinates.
// Results are cached per place name.
func (c *Client) Resolve(ctx context.Context, state, district, village string) (Coordinates, error) {
	place := PlaceName(state, district, village)
	if place == "" {
		return Coordinates{}, &ResolutionError{Place: place, Reason: "empty place name"}
	}

	key := cacheKey("resolve", place)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Coordinates), nil
	}

	params := url.Values{}
	params.Set("address", place)
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL, params, &resp); err != nil {
		return Coordinates{}, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return Coordinates{}, &ResolutionError{Place: place, Reason: resp.ErrorMessage}
	}

	loc := resp.Results[0].Geometry.Location
	coords := Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}
	c.cache.Set(key, coords, cache.DefaultExpiration)
	return coords, nil
}

// Pincode reverse-geocodes coordinates and returns the postal code component,
// or "" when the address carries none.
func (c *Client) Pincode(ctx context.Context, coords Coordinates) (string, error) {
	key := cacheKey("pincode", fmt.Sprintf("%.4f,%.4f", coords.Latitude, coords.Longitude))
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), nil
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", coords.Latitude, coords.Longitude))
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL, params, &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return "", nil
	}

	for _, component := range resp.Results[0].AddressComponents {
		for _, t := range component.Types {
			if t == "postal_code" {
				c.cache.Set(key, component.LongName, cache.DefaultExpiration)
				return component.LongName, nil
			}
		}
	}
	return "", nil
}

// TravelDistance estimates the road distance from origin to a free-text
// destination. Callers treat any error as "distance unavailable" for that
// destination rather than a fatal condition.
func (c *Client) TravelDistance(ctx context.Context, origin Coordinates, destination string) (*TravelEstimate, error) {
	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	params.Set("destinations", destination)
	params.Set("key", c.apiKey)

	var resp matrixResponse
	if err := c.getJSON(ctx, c.matrixURL, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("no distance element for %q", destination)
	}
	element := resp.Rows[0].Elements[0]
	if element.Status != "" && element.Status != "OK" {
		return nil, fmt.Errorf("distance lookup for %q returned status %s", destination, element.Status)
	}
	if element.Distance.Value <= 0 {
		return nil, fmt.Errorf("no distance value for %q", destination)
	}

	return &TravelEstimate{
		DistanceKm: float64(element.Distance.Value) / 1000.0,
		Duration:   element.Duration.Text,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, base string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", base, params.Encode()), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cacheKey(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}
