// Package locations adapts the user's stored location profiles to the
// reconciler's ProfileDirectory contract.
package locations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/geocoding"
	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// Geocoder is the slice of geocoding.Geocoder the directory needs.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocoding.Result, error)
}

// Directory reads a user's location profiles, geocoding address-only
// profiles on demand and persisting the resolved coordinate so the address
// is not geocoded again on the next run.
type Directory struct {
	db       shared.Database
	geocoder Geocoder
	userID   string
	logger   *slog.Logger

	mu    sync.Mutex
	names map[string]string // profile id -> display name, filled by ResolveCoordinates
}

func NewDirectory(db shared.Database, geocoder Geocoder, userID string, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		db:       db,
		geocoder: geocoder,
		userID:   userID,
		logger:   logger,
		names:    make(map[string]string),
	}
}

// ResolveCoordinates returns every live profile with a usable coordinate.
// Profiles carrying only an address are geocoded; failures skip the profile
// rather than failing the lookup.
func (d *Directory) ResolveCoordinates(ctx context.Context) (map[string]reconcile.Coordinate, error) {
	profiles, err := d.db.ListLocationProfiles(ctx, d.userID)
	if err != nil {
		return nil, fmt.Errorf("list location profiles: %w", err)
	}

	resolved := make(map[string]reconcile.Coordinate)
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range profiles {
		if p.Deleted {
			continue
		}
		d.names[p.ProfileID] = p.Name

		if p.HasCoordinate {
			resolved[p.ProfileID] = reconcile.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
			continue
		}
		if p.Address == "" {
			continue
		}

		res, err := d.geocoder.Geocode(ctx, p.Address)
		if err != nil {
			d.logger.Warn("Geocoding failed, profile skipped", "profile_id", p.ProfileID, "error", err)
			continue
		}
		if res == nil {
			d.logger.Info("Address did not geocode, profile skipped", "profile_id", p.ProfileID)
			continue
		}

		resolved[p.ProfileID] = reconcile.Coordinate{Lat: res.Lat, Lon: res.Lon}

		// Persist so the next run skips the geocoder entirely.
		update := map[string]interface{}{
			"latitude":       res.Lat,
			"longitude":      res.Lon,
			"has_coordinate": true,
		}
		if err := d.db.UpdateLocationProfile(ctx, d.userID, p.ProfileID, update); err != nil {
			d.logger.Warn("Failed to persist geocoded coordinate", "profile_id", p.ProfileID, "error", err)
		}
	}

	return resolved, nil
}

// ProfileName returns the display name seen during the last
// ResolveCoordinates call, "" when unknown.
func (d *Directory) ProfileName(profileID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.names[profileID]
}

// UpsertProfile stores a profile chosen in the manual resolution UI and
// returns its id. An existing live profile with the same name and a
// coordinate is reused instead of duplicated.
func (d *Directory) UpsertProfile(ctx context.Context, name, address string, coord reconcile.Coordinate) (string, error) {
	profiles, err := d.db.ListLocationProfiles(ctx, d.userID)
	if err != nil {
		return "", fmt.Errorf("list location profiles: %w", err)
	}
	for _, p := range profiles {
		if !p.Deleted && p.Name == name && p.HasCoordinate {
			return p.ProfileID, nil
		}
	}

	profile := &types.LocationProfileRecord{
		ProfileID:     uuid.NewString(),
		Name:          name,
		Address:       address,
		Latitude:      coord.Lat,
		Longitude:     coord.Lon,
		HasCoordinate: true,
	}
	if err := d.db.SetLocationProfile(ctx, d.userID, profile); err != nil {
		return "", fmt.Errorf("create location profile: %w", err)
	}

	d.mu.Lock()
	d.names[profile.ProfileID] = name
	d.mu.Unlock()

	d.logger.Info("Created location profile from manual selection", "profile_id", profile.ProfileID, "name", name)
	return profile.ProfileID, nil
}
