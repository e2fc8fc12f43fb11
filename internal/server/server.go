// Package server exposes the advisory service over HTTP: mandi ranking,
// profile location updates, farmer weather/soil info and audio uploads.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"mandi/internal/models"
	"mandi/internal/ranking"
	"mandi/pkg/geocode"
	"mandi/pkg/soilgrids"
	"mandi/pkg/weather"
)

// Ranker produces ranked mandi options.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) ([]ranking.Mandi, error)
}

// Geocoder resolves administrative names and derives pincodes.
type Geocoder interface {
	Resolve(ctx context.Context, state, district, village string) (geocode.Coordinates, error)
	Pincode(ctx context.Context, coords geocode.Coordinates) (string, error)
}

// WeatherSource fetches current conditions for a coordinate.
type WeatherSource interface {
	Current(ctx context.Context, latitude, longitude float64) (*weather.Conditions, error)
}

// SoilSource fetches topsoil properties for a coordinate.
type SoilSource interface {
	TopsoilProperties(ctx context.Context, latitude, longitude float64) (map[string]soilgrids.Property, error)
}

// ProfileStore persists farmer profiles.
type ProfileStore interface {
	Save(ctx context.Context, p models.FarmerProfile) error
	Get(ctx context.Context, email string) (*models.FarmerProfile, error)
	UpdateLocation(ctx context.Context, email string, latitude, longitude float64, pincode string) error
}

// AudioStore keeps farmer voice notes.
type AudioStore interface {
	PutAudio(ctx context.Context, objectKey, contentType string, body io.Reader, size int64) error
	PresignedAudioURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// Server holds the handler dependencies. All collaborators are injected so
// the handlers can be tested with doubles.
type Server struct {
	ranker   Ranker
	geo      Geocoder
	weather  WeatherSource
	soil     SoilSource
	profiles ProfileStore
	audio    AudioStore
}

func New(ranker Ranker, geo Geocoder, weatherSrc WeatherSource, soil SoilSource, profiles ProfileStore, audio AudioStore) *Server {
	return &Server{
		ranker:   ranker,
		geo:      geo,
		weather:  weatherSrc,
		soil:     soil,
		profiles: profiles,
		audio:    audio,
	}
}

// Router builds the HTTP handler with routing, CORS, request logging and
// panic recovery applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/rank-mandi", s.handleRankMandi).Methods("POST")
	r.HandleFunc("/profiles", s.handleSaveProfile).Methods("POST")
	r.HandleFunc("/update-location", s.handleUpdateLocation).Methods("POST")
	r.HandleFunc("/farmer-info", s.handleFarmerInfo).Methods("GET")
	r.HandleFunc("/farmers/{id}/audio", s.handleAudioUpload).Methods("POST")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	return loggingMiddleware(recoveryMiddleware(corsHandler.Handler(r)))
}
