// Package alert generates proactive mandi price alerts. A sweep walks stored
// farmer profiles, ranks the markets for each of the farmer's crops, and
// publishes the best option per crop as an event.
package alert

import (
	"context"
	"log"
	"time"

	"mandi/internal/keys"
	"mandi/internal/models"
	"mandi/internal/ranking"
	"mandi/pkg/fanout"
	"mandi/pkg/geocode"
)

// cropWorkers bounds how many crops of one farmer are ranked concurrently.
const cropWorkers = 5

// Ranker produces ranked mandi options for a request.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) ([]ranking.Mandi, error)
}

// Publisher delivers one alert event, keyed for partition ordering.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// SnapshotWriter stores the full ranked list of a sweep for later inspection.
type SnapshotWriter interface {
	PutJSON(ctx context.Context, objectKey string, v any) error
}

// Alert is the published event: the cheapest option for one crop of one
// farmer, with the rest of the ranked list attached.
type Alert struct {
	FarmerEmail string          `json:"farmer_email"`
	Crop        string          `json:"crop"`
	Best        ranking.Mandi   `json:"best_option"`
	Options     []ranking.Mandi `json:"options"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Sweeper runs alert sweeps. The snapshot writer may be nil, in which case
// sweeps only publish.
type Sweeper struct {
	ranker    Ranker
	publisher Publisher
	snapshots SnapshotWriter
	now       func() time.Time
}

func NewSweeper(ranker Ranker, publisher Publisher, snapshots SnapshotWriter) *Sweeper {
	return &Sweeper{
		ranker:    ranker,
		publisher: publisher,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// SweepProfile ranks every crop of one farmer and publishes an alert per crop
// that produced options. A failing crop is logged and skipped so the other
// crops still alert. Returns the number of alerts published.
func (s *Sweeper) SweepProfile(ctx context.Context, profile models.FarmerProfile) int {
	if len(profile.Crops) == 0 {
		return 0
	}

	var origin *geocode.Coordinates
	if profile.HasCoordinates() {
		origin = &geocode.Coordinates{
			Latitude:  *profile.Location.Latitude,
			Longitude: *profile.Location.Longitude,
		}
	}

	results := fanout.Map(ctx, profile.Crops, cropWorkers, func(ctx context.Context, crop string) (Alert, error) {
		options, err := s.ranker.Rank(ctx, ranking.Request{
			Origin:    origin,
			State:     profile.Location.State,
			District:  profile.Location.District,
			Village:   profile.Location.Village,
			Commodity: crop,
		})
		if err != nil {
			return Alert{}, err
		}
		return Alert{
			FarmerEmail: profile.Email,
			Crop:        crop,
			Best:        options[0],
			Options:     options,
			GeneratedAt: s.now().UTC(),
		}, nil
	})

	published := 0
	for i, res := range results {
		if res.Err != nil {
			log.Printf("No alert for %s / %s: %v", profile.Email, profile.Crops[i], res.Err)
			continue
		}
		if err := s.publisher.Publish(ctx, profile.Email, res.Value); err != nil {
			log.Printf("Failed to publish alert for %s / %s: %v", profile.Email, profile.Crops[i], err)
			continue
		}
		if s.snapshots != nil {
			key := keys.Snapshot(profile.Email, res.Value.Crop, res.Value.GeneratedAt)
			if err := s.snapshots.PutJSON(ctx, key, res.Value.Options); err != nil {
				log.Printf("Failed to store snapshot %s: %v", key, err)
			}
		}
		published++
	}
	return published
}

// Sweep runs SweepProfile over every profile and returns the total number of
// published alerts.
func (s *Sweeper) Sweep(ctx context.Context, profiles []models.FarmerProfile) int {
	total := 0
	for _, profile := range profiles {
		if ctx.Err() != nil {
			return total
		}
		total += s.SweepProfile(ctx, profile)
	}
	return total
}
