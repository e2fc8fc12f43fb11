// Package weather fetches current conditions from the Google Weather API for
// a coordinate pair.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultConditionsURL = "https://weather.googleapis.com/v1/currentConditions:lookup"

// Conditions is the flattened subset of the current-conditions response a
// farmer advisory cares about.
type Conditions struct {
	Description     string  `json:"description"`
	TemperatureC    float64 `json:"temperature"`
	FeelsLikeC      float64 `json:"feels_like"`
	HumidityPct     int     `json:"humidity"`
	UVIndex         int     `json:"uv_index"`
	PrecipMM        float64 `json:"precip_mm"`
	WindSpeedKph    float64 `json:"wind_speed_kph"`
	WindDirection   string  `json:"wind_direction"`
	CloudCoverPct   int     `json:"cloud_cover_percent"`
}

type Client struct {
	httpClient    *http.Client
	apiKey        string
	conditionsURL string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		apiKey:        apiKey,
		conditionsURL: defaultConditionsURL,
	}
}

// conditionsResponse is shaped for the API response.
type conditionsResponse struct {
	WeatherCondition struct {
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	} `json:"weatherCondition"`
	Temperature struct {
		Degrees float64 `json:"degrees"`
	} `json:"temperature"`
	FeelsLikeTemperature struct {
		Degrees float64 `json:"degrees"`
	} `json:"feelsLikeTemperature"`
	RelativeHumidity int `json:"relativeHumidity"`
	UVIndex          int `json:"uvIndex"`
	Precipitation    struct {
		QPF struct {
			Quantity float64 `json:"quantity"`
		} `json:"qpf"`
	} `json:"precipitation"`
	Wind struct {
		Speed struct {
			Value float64 `json:"value"`
		} `json:"speed"`
		Direction struct {
			Cardinal string `json:"cardinal"`
		} `json:"direction"`
	} `json:"wind"`
	CloudCover int `json:"cloudCover"`
}

// Current returns the current conditions at the given coordinates using
// metric units.
func (c *Client) Current(ctx context.Context, latitude, longitude float64) (*Conditions, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("location.latitude", fmt.Sprintf("%f", latitude))
	params.Set("location.longitude", fmt.Sprintf("%f", longitude))
	params.Set("unitsSystem", "METRIC")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", c.conditionsURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %s", resp.Status)
	}

	var raw conditionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	return &Conditions{
		Description:   raw.WeatherCondition.Description.Text,
		TemperatureC:  raw.Temperature.Degrees,
		FeelsLikeC:    raw.FeelsLikeTemperature.Degrees,
		HumidityPct:   raw.RelativeHumidity,
		UVIndex:       raw.UVIndex,
		PrecipMM:      raw.Precipitation.QPF.Quantity,
		WindSpeedKph:  raw.Wind.Speed.Value,
		WindDirection: raw.Wind.Direction.Cardinal,
		CloudCoverPct: raw.CloudCover,
	}, nil
}
