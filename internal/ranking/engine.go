// Package ranking picks the most cost-effective mandis for a farmer: it
// queries the Agmarknet price resource with progressively relaxed filters,
// prices in the road trip to each reporting market, and returns the cheapest
// options by combined price and travel cost.
package ranking

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"mandi/pkg/agmarknet"
	"mandi/pkg/fanout"
	"mandi/pkg/geocode"
)

const (
	// DefaultLimit is how many raw price records one filter level may return.
	DefaultLimit = 100
	// TopN is the size of the ranked result list.
	TopN = 5

	distanceWorkers = 5
	costPerKmINR    = 30.0
)

// PriceSource supplies raw mandi price records for a filter set.
type PriceSource interface {
	Query(ctx context.Context, filter agmarknet.Filter, limit int) ([]agmarknet.Record, error)
}

// GeoResolver supplies coordinates for administrative place names and road
// distances from a coordinate origin to a free-text destination.
type GeoResolver interface {
	Resolve(ctx context.Context, state, district, village string) (geocode.Coordinates, error)
	TravelDistance(ctx context.Context, origin geocode.Coordinates, destination string) (*geocode.TravelEstimate, error)
}

// Request describes one ranking call. Origin may be nil, in which case the
// state/district/village fields are geocoded once to locate the farmer.
// State and Commodity are mandatory.
type Request struct {
	Origin    *geocode.Coordinates `json:"origin,omitempty"`
	State     string               `json:"state"`
	District  string               `json:"district,omitempty"`
	Market    string               `json:"market,omitempty"`
	Village   string               `json:"village,omitempty"`
	Commodity string               `json:"commodity"`
	Variety   string               `json:"variety,omitempty"`
}

// Mandi is one ranked market option. Every emitted entry has a positive
// modal price, a resolved distance and therefore a complete effective cost;
// incomplete candidates are dropped before ranking.
type Mandi struct {
	State                string  `json:"state"`
	District             string  `json:"district"`
	Market               string  `json:"market"`
	ArrivalDate          string  `json:"arrival_date"`
	Commodity            string  `json:"commodity"`
	Variety              string  `json:"variety"`
	ModalPricePerQuintal int     `json:"modal_price_per_quintal"`
	TravelDistanceKm     float64 `json:"travel_distance_km"`
	EstimatedTravelCost  float64 `json:"estimated_travel_cost"`
	TotalEffectiveCost   float64 `json:"total_effective_cost"`
}

// Engine ranks mandi options. It holds no per-request state; collaborators
// are injected so tests can substitute doubles for both providers.
type Engine struct {
	prices  PriceSource
	geo     GeoResolver
	limit   int
	workers int
}

func NewEngine(prices PriceSource, geo GeoResolver) *Engine {
	return &Engine{
		prices:  prices,
		geo:     geo,
		limit:   DefaultLimit,
		workers: distanceWorkers,
	}
}

// Rank returns up to TopN mandi options sorted ascending by total effective
// cost (modal price plus ₹30/km travel). The sort is stable, so candidates
// with equal cost keep the order the price dataset returned them in.
func (e *Engine) Rank(ctx context.Context, req Request) ([]Mandi, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	origin, err := e.resolveOrigin(ctx, req)
	if err != nil {
		return nil, err
	}

	records, err := e.fetchRecords(ctx, req)
	if err != nil {
		return nil, err
	}

	ranked := e.enrich(ctx, origin, records)
	if len(ranked) == 0 {
		return nil, &NoDataError{State: req.State, Commodity: req.Commodity}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalEffectiveCost < ranked[j].TotalEffectiveCost
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked, nil
}

func validate(req Request) error {
	var missing []string
	if req.State == "" {
		missing = append(missing, "state")
	}
	if req.Commodity == "" {
		missing = append(missing, "commodity")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func (e *Engine) resolveOrigin(ctx context.Context, req Request) (geocode.Coordinates, error) {
	if req.Origin != nil {
		return *req.Origin, nil
	}
	return e.geo.Resolve(ctx, req.State, req.District, req.Village)
}

// filterLevels builds the relaxation ladder, most specific first. Mandi price
// reporting is sparse, so an exact district/market/variety match rarely
// exists; each step trades locality for coverage while state and commodity
// stay fixed.
func filterLevels(req Request) []agmarknet.Filter {
	return []agmarknet.Filter{
		{State: req.State, District: req.District, Market: req.Market, Commodity: req.Commodity, Variety: req.Variety},
		{State: req.State, District: req.District, Market: req.Market, Commodity: req.Commodity},
		{State: req.State, District: req.District, Commodity: req.Commodity},
		{State: req.State, Commodity: req.Commodity},
	}
}

// fetchRecords walks the relaxation ladder and returns the records of the
// first level with data. A transport failure on one level moves on to the
// next; it only surfaces when every level failed that way.
func (e *Engine) fetchRecords(ctx context.Context, req Request) ([]agmarknet.Record, error) {
	var lastErr error
	queried, failed := 0, 0
	for _, filter := range filterLevels(req) {
		if filter.State == "" || filter.Commodity == "" {
			continue
		}
		queried++
		records, err := e.prices.Query(ctx, filter, e.limit)
		if err != nil {
			log.Printf("price query failed for filter %+v: %v", filter, err)
			failed++
			lastErr = err
			continue
		}
		if len(records) > 0 {
			return records, nil
		}
	}
	if queried > 0 && failed == queried {
		return nil, &TransportError{Err: lastErr}
	}
	return nil, &NoDataError{State: req.State, Commodity: req.Commodity}
}

// enrich resolves travel distance for every record in parallel and keeps the
// candidates that end up with a complete cost. One failed lookup drops one
// record, never the batch, and the fan-out barrier guarantees the sort only
// sees settled results.
func (e *Engine) enrich(ctx context.Context, origin geocode.Coordinates, records []agmarknet.Record) []Mandi {
	results := fanout.Map(ctx, records, e.workers, func(ctx context.Context, rec agmarknet.Record) (Mandi, error) {
		// Destination comes from the record itself: under relaxed filters the
		// actual market can differ from whatever the caller asked for.
		destination := fmt.Sprintf("%s, %s, %s", rec.Market, rec.District, rec.State)
		estimate, err := e.geo.TravelDistance(ctx, origin, destination)
		if err != nil {
			return Mandi{}, fmt.Errorf("distance to %s: %w", destination, err)
		}
		if rec.ModalPrice <= 0 {
			return Mandi{}, fmt.Errorf("no valid modal price for %s", destination)
		}

		travelCost := round2(estimate.DistanceKm * costPerKmINR)
		return Mandi{
			State:                rec.State,
			District:             rec.District,
			Market:               rec.Market,
			ArrivalDate:          rec.ArrivalDate,
			Commodity:            rec.Commodity,
			Variety:              rec.Variety,
			ModalPricePerQuintal: rec.ModalPrice,
			TravelDistanceKm:     round1(estimate.DistanceKm),
			EstimatedTravelCost:  travelCost,
			TotalEffectiveCost:   float64(rec.ModalPrice) + travelCost,
		}, nil
	})

	ranked := make([]Mandi, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			log.Printf("dropping record: %v", res.Err)
			continue
		}
		ranked = append(ranked, res.Value)
	}
	return ranked
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
