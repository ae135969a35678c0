package locations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/geocoding"
	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
	"github.com/realronaldrump/workout-app-sub000/pkg/testing/mocks"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

type stubGeocoder struct {
	results map[string]*geocoding.Result
	err     error
	calls   []string
}

func (s *stubGeocoder) Geocode(_ context.Context, address string) (*geocoding.Result, error) {
	s.calls = append(s.calls, address)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[address], nil
}

func TestResolveCoordinatesMixesStoredAndGeocoded(t *testing.T) {
	var updates []string
	db := &mocks.MockDatabase{
		ListLocationProfilesFunc: func(_ context.Context, _ string) ([]*types.LocationProfileRecord, error) {
			return []*types.LocationProfileRecord{
				{ProfileID: "p1", Name: "Main Gym", Latitude: 40.0, Longitude: -75.0, HasCoordinate: true},
				{ProfileID: "p2", Name: "Downtown", Address: "1 Main St"},
				{ProfileID: "p3", Name: "Old Gym", Deleted: true, HasCoordinate: true},
				{ProfileID: "p4", Name: "No Address"},
			}, nil
		},
		UpdateLocationProfileFunc: func(_ context.Context, _, profileID string, data map[string]interface{}) error {
			updates = append(updates, profileID)
			assert.Equal(t, true, data["has_coordinate"])
			return nil
		},
	}
	geo := &stubGeocoder{results: map[string]*geocoding.Result{
		"1 Main St": {Lat: 41.5, Lon: -74.5},
	}}

	dir := NewDirectory(db, geo, "user-1", nil)
	coords, err := dir.ResolveCoordinates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]reconcile.Coordinate{
		"p1": {Lat: 40.0, Lon: -75.0},
		"p2": {Lat: 41.5, Lon: -74.5},
	}, coords)
	assert.Equal(t, []string{"1 Main St"}, geo.calls)
	assert.Equal(t, []string{"p2"}, updates)

	assert.Equal(t, "Main Gym", dir.ProfileName("p1"))
	assert.Equal(t, "Downtown", dir.ProfileName("p2"))
	assert.Equal(t, "", dir.ProfileName("missing"))
}

func TestResolveCoordinatesGeocodeFailureSkipsProfile(t *testing.T) {
	db := &mocks.MockDatabase{
		ListLocationProfilesFunc: func(_ context.Context, _ string) ([]*types.LocationProfileRecord, error) {
			return []*types.LocationProfileRecord{
				{ProfileID: "p1", Name: "Downtown", Address: "1 Main St"},
			}, nil
		},
	}
	geo := &stubGeocoder{err: errors.New("rate limited")}

	dir := NewDirectory(db, geo, "user-1", nil)
	coords, err := dir.ResolveCoordinates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, coords)
}

func TestResolveCoordinatesListError(t *testing.T) {
	db := &mocks.MockDatabase{
		ListLocationProfilesFunc: func(_ context.Context, _ string) ([]*types.LocationProfileRecord, error) {
			return nil, errors.New("unavailable")
		},
	}
	dir := NewDirectory(db, &stubGeocoder{}, "user-1", nil)
	_, err := dir.ResolveCoordinates(context.Background())
	assert.ErrorContains(t, err, "list location profiles")
}

func TestUpsertProfileReusesExisting(t *testing.T) {
	db := &mocks.MockDatabase{
		ListLocationProfilesFunc: func(_ context.Context, _ string) ([]*types.LocationProfileRecord, error) {
			return []*types.LocationProfileRecord{
				{ProfileID: "p1", Name: "Main Gym", HasCoordinate: true},
			}, nil
		},
		SetLocationProfileFunc: func(_ context.Context, _ string, _ *types.LocationProfileRecord) error {
			t.Fatal("should not create a new profile")
			return nil
		},
	}
	dir := NewDirectory(db, &stubGeocoder{}, "user-1", nil)
	id, err := dir.UpsertProfile(context.Background(), "Main Gym", "", reconcile.Coordinate{Lat: 1, Lon: 2})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestUpsertProfileCreatesNew(t *testing.T) {
	var created *types.LocationProfileRecord
	db := &mocks.MockDatabase{
		SetLocationProfileFunc: func(_ context.Context, _ string, profile *types.LocationProfileRecord) error {
			created = profile
			return nil
		},
	}
	dir := NewDirectory(db, &stubGeocoder{}, "user-1", nil)
	id, err := dir.UpsertProfile(context.Background(), "New Gym", "2 Oak Ave", reconcile.Coordinate{Lat: 40.1, Lon: -75.1})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created.ProfileID, id)
	assert.Equal(t, "New Gym", created.Name)
	assert.Equal(t, "2 Oak Ave", created.Address)
	assert.True(t, created.HasCoordinate)
	assert.Equal(t, 40.1, created.Latitude)

	assert.Equal(t, "New Gym", dir.ProfileName(id))
}
