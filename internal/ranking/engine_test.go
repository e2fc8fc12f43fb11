package ranking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"mandi/pkg/agmarknet"
	"mandi/pkg/geocode"
)

type mockPrices struct {
	records map[string][]agmarknet.Record
	errs    map[string]error
	calls   []agmarknet.Filter
}

func filterKey(f agmarknet.Filter) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", f.State, f.District, f.Market, f.Commodity, f.Variety)
}

func (m *mockPrices) Query(_ context.Context, filter agmarknet.Filter, _ int) ([]agmarknet.Record, error) {
	m.calls = append(m.calls, filter)
	if err, ok := m.errs[filterKey(filter)]; ok {
		return nil, err
	}
	return m.records[filterKey(filter)], nil
}

type mockGeo struct {
	origin       geocode.Coordinates
	resolveCalls int
	resolveErr   error
	distances    map[string]float64 // destination -> km
	distanceErrs map[string]error
}

func (m *mockGeo) Resolve(_ context.Context, _, _, _ string) (geocode.Coordinates, error) {
	m.resolveCalls++
	if m.resolveErr != nil {
		return geocode.Coordinates{}, m.resolveErr
	}
	return m.origin, nil
}

func (m *mockGeo) TravelDistance(_ context.Context, _ geocode.Coordinates, destination string) (*geocode.TravelEstimate, error) {
	if err, ok := m.distanceErrs[destination]; ok {
		return nil, err
	}
	km, ok := m.distances[destination]
	if !ok {
		return nil, fmt.Errorf("no route to %s", destination)
	}
	return &geocode.TravelEstimate{DistanceKm: km, Duration: "n/a"}, nil
}

func onionRecord(district, market string, price int) agmarknet.Record {
	return agmarknet.Record{
		State:       "Maharashtra",
		District:    district,
		Market:      market,
		ArrivalDate: "15/05/2024",
		Commodity:   "Onion",
		Variety:     "Red",
		ModalPrice:  price,
	}
}

func destination(rec agmarknet.Record) string {
	return fmt.Sprintf("%s, %s, %s", rec.Market, rec.District, rec.State)
}

func TestRank_ValidationFailsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		wantMissing []string
	}{
		{name: "missing commodity", req: Request{State: "Maharashtra"}, wantMissing: []string{"commodity"}},
		{name: "missing state", req: Request{Commodity: "Onion"}, wantMissing: []string{"state"}},
		{name: "missing both", req: Request{}, wantMissing: []string{"state", "commodity"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &mockPrices{}
			geo := &mockGeo{}
			engine := NewEngine(prices, geo)

			_, err := engine.Rank(context.Background(), tt.req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			if !reflect.DeepEqual(vErr.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", vErr.Missing, tt.wantMissing)
			}
			if len(prices.calls) != 0 || geo.resolveCalls != 0 {
				t.Errorf("network calls made despite validation failure: prices=%d resolve=%d", len(prices.calls), geo.resolveCalls)
			}
		})
	}
}

func TestRank_RelaxationOrderAndFirstHitWins(t *testing.T) {
	rec := onionRecord("Nashik", "Pimpalgaon", 1500)
	prices := &mockPrices{records: map[string][]agmarknet.Record{
		// Data only at the state+district+commodity level.
		"Maharashtra|Nashik||Onion|": {rec},
	}}
	geo := &mockGeo{distances: map[string]float64{destination(rec): 20}}
	engine := NewEngine(prices, geo)

	origin := geocode.Coordinates{Latitude: 19.873, Longitude: 74.738}
	got, err := engine.Rank(context.Background(), Request{
		Origin:    &origin,
		State:     "Maharashtra",
		District:  "Nashik",
		Market:    "Lasalgaon",
		Commodity: "Onion",
		Variety:   "Red",
	})
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	wantFilters := []agmarknet.Filter{
		{State: "Maharashtra", District: "Nashik", Market: "Lasalgaon", Commodity: "Onion", Variety: "Red"},
		{State: "Maharashtra", District: "Nashik", Market: "Lasalgaon", Commodity: "Onion"},
		{State: "Maharashtra", District: "Nashik", Commodity: "Onion"},
	}
	if !reflect.DeepEqual(prices.calls, wantFilters) {
		t.Errorf("query sequence = %+v, want %+v", prices.calls, wantFilters)
	}
	// The broadest level must not have been queried after the hit.
	for _, call := range prices.calls {
		if call.District == "" {
			t.Errorf("state-only level queried despite earlier hit")
		}
	}
	if geo.resolveCalls != 0 {
		t.Errorf("origin resolved despite coordinates in the request")
	}
}

func TestRank_ExampleScenario(t *testing.T) {
	// Eight records at the broadest level only; distances spread 5-80 km.
	districts := []string{"Nashik", "Pune", "Nagpur", "Solapur", "Satara", "Jalgaon", "Dhule", "Kolhapur"}
	kms := []float64{5, 80, 40, 10, 60, 25, 70, 15}
	distances := map[string]float64{}
	var records []agmarknet.Record
	for i, d := range districts {
		rec := onionRecord(d, d+" Mandi", 1000)
		records = append(records, rec)
		distances[destination(rec)] = kms[i]
	}
	source := &mockPrices{records: map[string][]agmarknet.Record{
		"Maharashtra|||Onion|": records,
	}}
	geo := &mockGeo{distances: distances}
	engine := NewEngine(source, geo)

	// District, market and variety are set but have no exact reporting, so
	// the engine has to relax all the way down to state+commodity.
	origin := geocode.Coordinates{Latitude: 19.873, Longitude: 74.738}
	got, err := engine.Rank(context.Background(), Request{
		Origin:    &origin,
		State:     "Maharashtra",
		District:  "Ahmednagar",
		Market:    "Rahata",
		Commodity: "Onion",
		Variety:   "Red",
	})
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}

	if len(got) != TopN {
		t.Fatalf("len = %d, want %d", len(got), TopN)
	}
	// Cheapest five by price + 30*km: 5, 10, 15, 25, 40 km.
	wantKms := []float64{5, 10, 15, 25, 40}
	for i, entry := range got {
		if entry.TravelDistanceKm != wantKms[i] {
			t.Errorf("entry %d distance = %v, want %v", i, entry.TravelDistanceKm, wantKms[i])
		}
		wantTotal := 1000 + wantKms[i]*30
		if entry.TotalEffectiveCost != wantTotal {
			t.Errorf("entry %d total = %v, want %v", i, entry.TotalEffectiveCost, wantTotal)
		}
		if i > 0 && got[i-1].TotalEffectiveCost > entry.TotalEffectiveCost {
			t.Errorf("result not sorted ascending at %d", i)
		}
	}
	// All four levels were attempted before the broad hit.
	if len(source.calls) != 4 {
		t.Errorf("query count = %d, want 4", len(source.calls))
	}
}

func TestRank_TransportFailures(t *testing.T) {
	rec := onionRecord("Nashik", "Lasalgaon", 1800)

	t.Run("one failed level does not stop relaxation", func(t *testing.T) {
		source := &mockPrices{
			records: map[string][]agmarknet.Record{
				"Maharashtra|Nashik||Onion|": {rec},
			},
			errs: map[string]error{
				"Maharashtra|Nashik|Lasalgaon|Onion|": &agmarknet.StatusError{StatusCode: 500, Details: "upstream down"},
			},
		}
		geo := &mockGeo{distances: map[string]float64{destination(rec): 12.3}}
		engine := NewEngine(source, geo)

		origin := geocode.Coordinates{}
		got, err := engine.Rank(context.Background(), Request{
			Origin: &origin, State: "Maharashtra", District: "Nashik", Market: "Lasalgaon", Commodity: "Onion",
		})
		if err != nil {
			t.Fatalf("Rank returned error: %v", err)
		}
		if len(got) != 1 || got[0].EstimatedTravelCost != 369 || got[0].TotalEffectiveCost != 2169 {
			t.Errorf("got %+v, want single entry with travel 369 and total 2169", got)
		}
	})

	t.Run("all levels failed surfaces TransportError", func(t *testing.T) {
		boom := &agmarknet.StatusError{StatusCode: 503, Details: "maintenance"}
		// For a state+commodity request every level carries the same filter
		// shape, so one errored key fails all four attempts.
		source := &mockPrices{errs: map[string]error{
			"Maharashtra|||Onion|": boom,
		}}
		geo := &mockGeo{}
		engine := NewEngine(source, geo)

		origin := geocode.Coordinates{}
		_, err := engine.Rank(context.Background(), Request{Origin: &origin, State: "Maharashtra", Commodity: "Onion"})
		var tErr *TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected *TransportError, got %T (%v)", err, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("TransportError does not wrap the provider error")
		}
	})
}

func TestRank_NoData(t *testing.T) {
	t.Run("all levels empty", func(t *testing.T) {
		source := &mockPrices{}
		geo := &mockGeo{}
		engine := NewEngine(source, geo)

		origin := geocode.Coordinates{}
		_, err := engine.Rank(context.Background(), Request{Origin: &origin, State: "Maharashtra", Commodity: "Onion"})
		var nErr *NoDataError
		if !errors.As(err, &nErr) {
			t.Fatalf("expected *NoDataError, got %T (%v)", err, err)
		}
		if len(source.calls) != 4 {
			t.Errorf("query count = %d, want 4", len(source.calls))
		}
	})

	t.Run("all records dropped", func(t *testing.T) {
		zeroPrice := onionRecord("Nashik", "Lasalgaon", 0)
		noRoute := onionRecord("Pune", "Pune Mandi", 1200)
		source := &mockPrices{records: map[string][]agmarknet.Record{
			"Maharashtra|||Onion|": {zeroPrice, noRoute},
		}}
		geo := &mockGeo{
			distances:    map[string]float64{destination(zeroPrice): 10},
			distanceErrs: map[string]error{destination(noRoute): errors.New("timeout")},
		}
		engine := NewEngine(source, geo)

		origin := geocode.Coordinates{}
		_, err := engine.Rank(context.Background(), Request{Origin: &origin, State: "Maharashtra", Commodity: "Onion"})
		var nErr *NoDataError
		if !errors.As(err, &nErr) {
			t.Fatalf("expected *NoDataError, got %T (%v)", err, err)
		}
	})
}

func TestRank_PartialDistanceFailureExcludesOnlyThatRecord(t *testing.T) {
	good := onionRecord("Nashik", "Lasalgaon", 1500)
	bad := onionRecord("Pune", "Pune Mandi", 900)
	source := &mockPrices{records: map[string][]agmarknet.Record{
		"Maharashtra|||Onion|": {good, bad},
	}}
	geo := &mockGeo{
		distances:    map[string]float64{destination(good): 15},
		distanceErrs: map[string]error{destination(bad): errors.New("timeout")},
	}
	engine := NewEngine(source, geo)

	origin := geocode.Coordinates{}
	got, err := engine.Rank(context.Background(), Request{Origin: &origin, State: "Maharashtra", Commodity: "Onion"})
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	if len(got) != 1 || got[0].Market != "Lasalgaon" {
		t.Errorf("got %+v, want only the Lasalgaon entry", got)
	}
}

func TestRank_ResolvesOriginOnce(t *testing.T) {
	rec := onionRecord("Nashik", "Lasalgaon", 1500)
	source := &mockPrices{records: map[string][]agmarknet.Record{
		"Maharashtra|||Onion|": {rec},
	}}
	geo := &mockGeo{
		origin:    geocode.Coordinates{Latitude: 19.9, Longitude: 73.7},
		distances: map[string]float64{destination(rec): 8},
	}
	engine := NewEngine(source, geo)

	if _, err := engine.Rank(context.Background(), Request{State: "Maharashtra", Village: "Pimpalgaon", Commodity: "Onion"}); err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	if geo.resolveCalls != 1 {
		t.Errorf("resolve calls = %d, want 1", geo.resolveCalls)
	}
}

func TestRank_StableTiesAndIdempotence(t *testing.T) {
	first := onionRecord("Nashik", "Mandi A", 1000)
	second := onionRecord("Pune", "Mandi B", 1000)
	source := &mockPrices{records: map[string][]agmarknet.Record{
		"Maharashtra|||Onion|": {first, second},
	}}
	geo := &mockGeo{distances: map[string]float64{
		destination(first):  10,
		destination(second): 10,
	}}
	engine := NewEngine(source, geo)

	origin := geocode.Coordinates{}
	req := Request{Origin: &origin, State: "Maharashtra", Commodity: "Onion"}

	run1, err := engine.Rank(context.Background(), req)
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	// Equal total cost: dataset order must hold.
	if run1[0].Market != "Mandi A" || run1[1].Market != "Mandi B" {
		t.Errorf("tie order = %s, %s; want dataset order Mandi A, Mandi B", run1[0].Market, run1[1].Market)
	}

	run2, err := engine.Rank(context.Background(), req)
	if err != nil {
		t.Fatalf("second Rank returned error: %v", err)
	}
	if !reflect.DeepEqual(run1, run2) {
		t.Errorf("identical requests produced different rankings:\n%v\n%v", run1, run2)
	}
}
