// Package store persists farmer profiles in Postgres. Profiles are keyed by
// email; the update-location flow writes geocoded coordinates and the derived
// pincode back onto the stored row.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mandi/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS farmer_profiles (
	email      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	district   TEXT NOT NULL DEFAULT '',
	village    TEXT NOT NULL DEFAULT '',
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	pincode    TEXT NOT NULL DEFAULT '',
	crops      TEXT[] NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ErrNotFound is returned when no profile exists for the given email.
var ErrNotFound = errors.New("farmer profile not found")

// ProfileStore is a Postgres-backed farmer profile repository.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore connects to Postgres, verifies the connection and makes
// sure the profile table exists.
func NewProfileStore(ctx context.Context, dsn string) (*ProfileStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %v", err)
	}
	return &ProfileStore{pool: pool}, nil
}

func (s *ProfileStore) Close() {
	s.pool.Close()
}

// Save inserts a profile or replaces the stored one for the same email.
func (s *ProfileStore) Save(ctx context.Context, p models.FarmerProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO farmer_profiles (email, name, state, district, village, latitude, longitude, pincode, crops, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			district = EXCLUDED.district,
			village = EXCLUDED.village,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			pincode = EXCLUDED.pincode,
			crops = EXCLUDED.crops,
			updated_at = now()`,
		p.Email, p.Name, p.Location.State, p.Location.District, p.Location.Village,
		p.Location.Latitude, p.Location.Longitude, p.Location.Pincode, p.Crops,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %v", p.Email, err)
	}
	return nil
}

// Get returns the profile stored for the given email.
func (s *ProfileStore) Get(ctx context.Context, email string) (*models.FarmerProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT email, name, state, district, village, latitude, longitude, pincode, crops
		FROM farmer_profiles WHERE email = $1`, email)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %v", email, err)
	}
	return p, nil
}

// List returns every stored profile; the alert sweeper walks all of them.
func (s *ProfileStore) List(ctx context.Context) ([]models.FarmerProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email, name, state, district, village, latitude, longitude, pincode, crops
		FROM farmer_profiles ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %v", err)
	}
	defer rows.Close()

	var profiles []models.FarmerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %v", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateLocation writes freshly geocoded coordinates and pincode onto an
// existing profile.
func (s *ProfileStore) UpdateLocation(ctx context.Context, email string, latitude, longitude float64, pincode string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE farmer_profiles
		SET latitude = $2, longitude = $3, pincode = $4, updated_at = now()
		WHERE email = $1`,
		email, latitude, longitude, pincode)
	if err != nil {
		return fmt.Errorf("failed to update location for %s: %v", email, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*models.FarmerProfile, error) {
	var p models.FarmerProfile
	err := row.Scan(
		&p.Email, &p.Name,
		&p.Location.State, &p.Location.District, &p.Location.Village,
		&p.Location.Latitude, &p.Location.Longitude, &p.Location.Pincode,
		&p.Crops,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
