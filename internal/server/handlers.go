package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mandi/internal/keys"
	"mandi/internal/models"
	"mandi/internal/ranking"
	"mandi/internal/store"
	"mandi/pkg/geocode"
)

const audioURLExpiry = 60 * time.Minute

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRankMandi(w http.ResponseWriter, r *http.Request) {
	var req ranking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	options, err := s.ranker.Rank(r.Context(), req)
	if err != nil {
		var vErr *ranking.ValidationError
		var nErr *ranking.NoDataError
		var tErr *ranking.TransportError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.As(err, &nErr):
			writeError(w, http.StatusNotFound, nErr.Error())
		case errors.As(err, &tErr):
			writeError(w, http.StatusBadGateway, tErr.Error())
		default:
			log.Printf("rank-mandi failed: %v", err)
			writeError(w, http.StatusInternalServerError, "ranking failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": options})
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.FarmerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if profile.Email == "" || profile.Location.State == "" {
		writeError(w, http.StatusBadRequest, "email and location.state are required")
		return
	}

	// Geocoding is best-effort on save; the update-location flow can fill the
	// coordinates in later.
	if !profile.HasCoordinates() {
		coords, err := s.geo.Resolve(r.Context(), profile.Location.State, profile.Location.District, profile.Location.Village)
		if err != nil {
			log.Printf("Could not geocode profile %s: %v", profile.Email, err)
		} else {
			profile.Location.Latitude = &coords.Latitude
			profile.Location.Longitude = &coords.Longitude
			if pincode, err := s.geo.Pincode(r.Context(), coords); err == nil && pincode != "" {
				profile.Location.Pincode = pincode
			}
		}
	}

	if err := s.profiles.Save(r.Context(), profile); err != nil {
		log.Printf("Failed to save profile %s: %v", profile.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	profile, err := s.profiles.Get(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no profile for "+req.Email)
			return
		}
		log.Printf("Failed to load profile %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile.Location.State == "" {
		writeError(w, http.StatusBadRequest, "stored profile has no state to geocode")
		return
	}

	coords, err := s.geo.Resolve(r.Context(), profile.Location.State, profile.Location.District, profile.Location.Village)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	pincode, err := s.geo.Pincode(r.Context(), coords)
	if err != nil {
		log.Printf("Pincode lookup failed for %s: %v", req.Email, err)
	}

	if err := s.profiles.UpdateLocation(r.Context(), req.Email, coords.Latitude, coords.Longitude, pincode); err != nil {
		log.Printf("Failed to update location for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to update location")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":     req.Email,
		"latitude":  coords.Latitude,
		"longitude": coords.Longitude,
		"pincode":   pincode,
	})
}

func (s *Server) handleFarmerInfo(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, "state query parameter is required")
		return
	}
	district := r.URL.Query().Get("district")
	village := r.URL.Query().Get("village")

	coords, err := s.geo.Resolve(r.Context(), state, district, village)
	if err != nil {
		var resErr *geocode.ResolutionError
		if errors.As(err, &resErr) {
			writeError(w, http.StatusNotFound, resErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	response := map[string]any{
		"location": map[string]any{
			"place":     geocode.PlaceName(state, district, village),
			"latitude":  coords.Latitude,
			"longitude": coords.Longitude,
		},
	}

	// Weather and soil are enrichments: either may be unavailable without
	// failing the whole request.
	if conditions, err := s.weather.Current(r.Context(), coords.Latitude, coords.Longitude); err != nil {
		log.Printf("Weather lookup failed for %s: %v", state, err)
	} else {
		response["weather"] = conditions
	}
	if soil, err := s.soil.TopsoilProperties(r.Context(), coords.Latitude, coords.Longitude); err != nil {
		log.Printf("Soil lookup failed for %s: %v", state, err)
	} else {
		response["soil"] = soil
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request) {
	farmerID := mux.Vars(r)["id"]

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file field is required")
		return
	}
	defer file.Close()

	objectKey := keys.Audio(farmerID, header.Filename)
	contentType := header.Header.Get("Content-Type")
	if err := s.audio.PutAudio(r.Context(), objectKey, contentType, file, header.Size); err != nil {
		log.Printf("Failed to store audio for %s: %v", farmerID, err)
		writeError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	url, err := s.audio.PresignedAudioURL(r.Context(), objectKey, audioURLExpiry)
	if err != nil {
		log.Printf("Failed to presign audio URL for %s: %v", objectKey, err)
		writeError(w, http.StatusInternalServerError, "failed to create download URL")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"object_key": objectKey,
		"url":        url,
	})
}
