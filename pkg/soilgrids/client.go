// Package soilgrids queries the ISRIC SoilGrids REST API and extracts the
// topsoil (0-5 cm) properties that matter for crop advice.
package soilgrids

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultPropertiesURL = "https://rest.isric.org/soilgrids/v2.0/properties/query"

// essentialProperties maps SoilGrids property codes to readable labels.
var essentialProperties = map[string]string{
	"phh2o": "Soil pH",
	"soc":   "Soil Organic Carbon",
	"cec":   "Cation Exchange Capacity",
	"sand":  "Sand Content",
	"silt":  "Silt Content",
	"clay":  "Clay Content",
	"ocd":   "Organic Carbon Density",
	"bdod":  "Bulk Density",
}

// Property is one extracted soil measurement. Value is nil when SoilGrids has
// no mean for the location.
type Property struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type Client struct {
	httpClient    *http.Client
	propertiesURL string
}

func NewClient() *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		propertiesURL: defaultPropertiesURL,
	}
}

// propertiesResponse is shaped for the SoilGrids response.
type propertiesResponse struct {
	Properties struct {
		Layers []struct {
			Name        string `json:"name"`
			UnitMeasure struct {
				TargetUnits string `json:"target_units"`
			} `json:"unit_measure"`
			Depths []struct {
				Range struct {
					TopDepth    int `json:"top_depth"`
					BottomDepth int `json:"bottom_depth"`
				} `json:"range"`
				Values struct {
					Mean *float64 `json:"mean"`
				} `json:"values"`
			} `json:"depths"`
		} `json:"layers"`
	} `json:"properties"`
}

// TopsoilProperties fetches the SoilGrids layers for a coordinate and returns
// the 0-5 cm mean for each essential property, keyed by readable label.
func (c *Client) TopsoilProperties(ctx context.Context, latitude, longitude float64) (map[string]Property, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", latitude))
	params.Set("lon", fmt.Sprintf("%f", longitude))

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", c.propertiesURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soilgrids API returned status %s", resp.Status)
	}

	var raw propertiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	result := make(map[string]Property)
	for _, layer := range raw.Properties.Layers {
		label, ok := essentialProperties[layer.Name]
		if !ok {
			continue
		}
		for _, depth := range layer.Depths {
			if depth.Range.TopDepth == 0 && depth.Range.BottomDepth == 5 {
				result[label] = Property{
					Value: depth.Values.Mean,
					Unit:  layer.UnitMeasure.TargetUnits,
				}
				break
			}
		}
	}
	return result, nil
}
