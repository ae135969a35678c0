package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
	"github.com/realronaldrump/workout-app-sub000/pkg/testing/mocks"
)

var runBase = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

// latOffset shifts a latitude by roughly the given number of meters.
func latOffset(meters float64) float64 {
	return meters / 6371000.0 * 180.0 / 3.141592653589793
}

func newRunner(catalog *mocks.MockCatalog, dir *mocks.MockProfileDirectory, cache *mocks.MockSyncCache, sink *mocks.MockAssignmentSink, progress reconcile.ProgressFunc) *reconcile.Runner {
	return reconcile.NewRunner(catalog, dir, cache, sink, nil, progress)
}

func singleProfileDirectory(id string, coord reconcile.Coordinate) *mocks.MockProfileDirectory {
	return &mocks.MockProfileDirectory{
		ResolveCoordinatesFunc: func(ctx context.Context) (map[string]reconcile.Coordinate, error) {
			return map[string]reconcile.Coordinate{id: coord}, nil
		},
		ProfileNameFunc: func(profileID string) string { return "Gym " + profileID },
	}
}

// Scenario A: a time-matched record whose route start lies within 100 m of a
// profile produces an assignment with that distance.
func TestRunAssignsNearbyProfile(t *testing.T) {
	gym := reconcile.Coordinate{Lat: 40.0, Lon: -75.0}
	routeStart := reconcile.Coordinate{Lat: gym.Lat + latOffset(100), Lon: gym.Lon}

	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(5 * time.Minute), End: runBase.Add(70 * time.Minute)},
			}, nil
		},
		FetchRouteStartFunc: func(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
			return &routeStart, nil
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, singleProfileDirectory("p1", gym), &mocks.MockSyncCache{}, sink, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", Name: "Leg Day", StartedAt: runBase, Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Assigned)
	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, reconcile.OutcomeAssigned, item.Kind)
	assert.Equal(t, "p1", item.LocationID)
	assert.Equal(t, "Gym p1", item.LocationName)
	assert.InDelta(t, 100, item.DistanceMeters, 0.5)

	require.Len(t, sink.Applied, 1)
	assert.Equal(t, map[string]string{"s1": "p1"}, sink.Applied[0])
	assert.Equal(t, "p1", sink.LastLocation)
	assert.Zero(t, runner.Fallback().Len())
}

// Scenario B: no candidate within either tolerance.
func TestRunSkipsWhenNoRecordMatches(t *testing.T) {
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(-13 * time.Hour), End: runBase.Add(-12 * time.Hour)},
			}, nil
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, singleProfileDirectory("p1", reconcile.Coordinate{Lat: 40, Lon: -75}), &mocks.MockSyncCache{}, sink, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s2", Name: "Push Day", StartedAt: runBase, Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedNoRecord)
	assert.Zero(t, report.Assigned)
	assert.Empty(t, sink.Applied)
	assert.Empty(t, catalog.FetchRouteStartCalls)

	fallback := runner.Fallback().All()
	require.Len(t, fallback, 1)
	assert.Equal(t, "s2", fallback[0].SessionID)
	assert.Nil(t, fallback[0].Coordinate)
}

// Scenario C: route authorization denied for the whole run.
func TestRunRoutePermissionDenied(t *testing.T) {
	catalog := &mocks.MockCatalog{
		RequestRouteAuthorizationFunc: func(ctx context.Context) error {
			return fmt.Errorf("platform: %w", reconcile.ErrRoutePermission)
		},
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(time.Minute), End: runBase.Add(time.Hour)},
			}, nil
		},
	}
	runner := newRunner(catalog, singleProfileDirectory("p1", reconcile.Coordinate{Lat: 40, Lon: -75}), &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s3", StartedAt: runBase, Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.True(t, report.RoutePermissionUnavailable)
	assert.Equal(t, 1, report.SkippedNoRouteLocation)
	// Route access was never attempted once denied.
	assert.Empty(t, catalog.FetchRouteStartCalls)
	assert.Equal(t, 1, runner.Fallback().Len())
}

// Scenario C variant: permission denial surfaces on the first fetch instead.
func TestRunRoutePermissionDeniedOnFetch(t *testing.T) {
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(time.Minute), End: runBase.Add(time.Hour)},
				{ID: "r2", Start: runBase.Add(24*time.Hour + time.Minute), End: runBase.Add(25 * time.Hour)},
			}, nil
		},
		FetchRouteStartFunc: func(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
			return nil, reconcile.ErrRoutePermission
		},
	}
	runner := newRunner(catalog, singleProfileDirectory("p1", reconcile.Coordinate{Lat: 40, Lon: -75}), &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
		{ID: "s2", StartedAt: runBase.Add(24 * time.Hour), Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.True(t, report.RoutePermissionUnavailable)
	assert.Equal(t, 2, report.SkippedNoRouteLocation)
	// The flag is sticky: only the first record triggered a fetch.
	assert.Equal(t, []string{"r1"}, catalog.FetchRouteStartCalls)
}

// Scenario D: no profiles with coordinates at all.
func TestRunProfilesMissingLocationData(t *testing.T) {
	routeStart := reconcile.Coordinate{Lat: 40, Lon: -75}
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(time.Minute), End: runBase.Add(time.Hour)},
			}, nil
		},
		FetchRouteStartFunc: func(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
			return &routeStart, nil
		},
	}
	dir := &mocks.MockProfileDirectory{
		ResolveCoordinatesFunc: func(ctx context.Context) (map[string]reconcile.Coordinate, error) {
			return map[string]reconcile.Coordinate{}, nil
		},
	}
	runner := newRunner(catalog, dir, &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedProfilesMissingLocations)
	assert.Zero(t, report.SkippedNoNearbyLocation)

	// The fallback entry keeps the partial coordinate for map centering.
	fallback := runner.Fallback().All()
	require.Len(t, fallback, 1)
	require.NotNil(t, fallback[0].Coordinate)
	assert.Equal(t, routeStart, *fallback[0].Coordinate)
}

// Memoization property: FetchRouteStart at most once per record id even when
// several sessions map to the same record.
func TestRunMemoizesRouteFetchPerRecord(t *testing.T) {
	routeStart := reconcile.Coordinate{Lat: 40, Lon: -75}
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(time.Minute), End: runBase.Add(time.Hour)},
			}, nil
		},
		FetchRouteStartFunc: func(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
			return &routeStart, nil
		},
	}
	runner := newRunner(catalog, singleProfileDirectory("p1", routeStart), &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
		{ID: "s2", StartedAt: runBase.Add(3 * time.Minute), Duration: time.Hour},
		{ID: "s3", StartedAt: runBase.Add(7 * time.Minute), Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, catalog.FetchRouteStartCalls)
}

// Cache short-circuit property: a cached coordinate near a live profile
// assigns deterministically regardless of catalog contents.
func TestRunCachedCoordinateShortCircuit(t *testing.T) {
	gym := reconcile.Coordinate{Lat: 40, Lon: -75}
	cachedCoord := reconcile.Coordinate{Lat: gym.Lat + latOffset(50), Lon: gym.Lon}

	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return nil, nil // catalog has nothing
		},
	}
	cache := &mocks.MockSyncCache{
		EntryFunc: func(ctx context.Context, sessionID string) (*reconcile.CacheEntry, error) {
			return &reconcile.CacheEntry{SessionID: sessionID, Coordinate: &cachedCoord}, nil
		},
	}
	runner := newRunner(catalog, singleProfileDirectory("p1", gym), cache, &mocks.MockAssignmentSink{}, nil)

	report, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Assigned)
	assert.InDelta(t, 50, report.Items[0].DistanceMeters, 0.5)
	assert.Empty(t, catalog.FetchRouteStartCalls)
}

func TestRunAbortsWhenCatalogAuthorizationDenied(t *testing.T) {
	authErr := errors.New("user declined catalog access")
	catalog := &mocks.MockCatalog{
		RequestAuthorizationFunc: func(ctx context.Context) error { return authErr },
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, sink, nil)

	_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase},
	})
	require.ErrorIs(t, err, authErr)
	assert.Empty(t, sink.Applied)
}

func TestRunAbortsWhenCatalogQueryFails(t *testing.T) {
	queryErr := errors.New("catalog unavailable")
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return nil, queryErr
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, sink, nil)

	_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase},
	})
	require.ErrorIs(t, err, queryErr)
	assert.Empty(t, sink.Applied)
}

func TestRunEmptyTargetsIsNoOp(t *testing.T) {
	catalog := &mocks.MockCatalog{
		RequestAuthorizationFunc: func(ctx context.Context) error {
			t.Fatal("authorization should not be requested for an empty target set")
			return nil
		},
	}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	report, err := runner.Run(context.Background(), "run-1", nil)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{{ID: "s1", StartedAt: runBase}})
		assert.NoError(t, err)
	}()

	<-started
	_, err := runner.Run(context.Background(), "run-2", []reconcile.LoggedSession{{ID: "s1", StartedAt: runBase}})
	assert.ErrorIs(t, err, reconcile.ErrRunInProgress)

	close(release)
	wg.Wait()
}

func TestRunQueryWindowPaddedByRelaxedTolerance(t *testing.T) {
	var gotOldest, gotNewest time.Time
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			gotOldest, gotNewest = oldest, newest
			return nil, nil
		},
	}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, nil)

	targets := []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
		{ID: "s2", StartedAt: runBase.Add(-72 * time.Hour), Duration: 30 * time.Minute},
		{ID: "s3", StartedAt: runBase.Add(24 * time.Hour)}, // default duration
	}
	_, err := runner.Run(context.Background(), "run-1", targets)
	require.NoError(t, err)

	assert.Equal(t, runBase.Add(-72*time.Hour).Add(-reconcile.RelaxedTolerance), gotOldest)
	assert.Equal(t, runBase.Add(24*time.Hour).Add(reconcile.DefaultSessionDuration).Add(reconcile.RelaxedTolerance), gotNewest)
}

func TestRunProgressMonotonic(t *testing.T) {
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return nil, nil
		},
	}
	var fractions []float64
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, &mocks.MockAssignmentSink{}, func(f float64) {
		fractions = append(fractions, f)
	})

	targets := []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase},
		{ID: "s2", StartedAt: runBase.Add(time.Hour)},
		{ID: "s3", StartedAt: runBase.Add(2 * time.Hour)},
		{ID: "s4", StartedAt: runBase.Add(3 * time.Hour)},
	}
	_, err := runner.Run(context.Background(), "run-1", targets)
	require.NoError(t, err)

	require.NotEmpty(t, fractions)
	assert.Zero(t, fractions[0])
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
}

func TestRunApplyAssignmentsExactlyOnce(t *testing.T) {
	gym := reconcile.Coordinate{Lat: 40, Lon: -75}
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return []reconcile.ExternalRecord{
				{ID: "r1", Start: runBase.Add(time.Minute), End: runBase.Add(time.Hour)},
				{ID: "r2", Start: runBase.Add(24*time.Hour + time.Minute), End: runBase.Add(25 * time.Hour)},
			}, nil
		},
		FetchRouteStartFunc: func(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
			return &gym, nil
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, singleProfileDirectory("p1", gym), &mocks.MockSyncCache{}, sink, nil)

	_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase, Duration: time.Hour},
		{ID: "s2", StartedAt: runBase.Add(24 * time.Hour), Duration: time.Hour},
	})
	require.NoError(t, err)

	require.Len(t, sink.Applied, 1)
	assert.Equal(t, map[string]string{"s1": "p1", "s2": "p1"}, sink.Applied[0])
}

func TestResolveManuallyExistingProfile(t *testing.T) {
	catalog := &mocks.MockCatalog{
		QueryRecordsFunc: func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
			return nil, nil
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(catalog, &mocks.MockProfileDirectory{}, &mocks.MockSyncCache{}, sink, nil)

	// Populate the fallback queue via a run that matches nothing.
	_, err := runner.Run(context.Background(), "run-1", []reconcile.LoggedSession{
		{ID: "s1", StartedAt: runBase},
	})
	require.NoError(t, err)
	require.Equal(t, 1, runner.Fallback().Len())

	profileID, err := runner.ResolveManually(context.Background(), reconcile.ManualSelection{
		SessionID: "s1",
		ProfileID: "p9",
	})
	require.NoError(t, err)

	assert.Equal(t, "p9", profileID)
	require.Len(t, sink.Applied, 1)
	assert.Equal(t, map[string]string{"s1": "p9"}, sink.Applied[0])
	assert.Equal(t, "p9", sink.LastLocation)
	assert.Zero(t, runner.Fallback().Len())
}

func TestResolveManuallyCreatesProfile(t *testing.T) {
	dir := &mocks.MockProfileDirectory{
		UpsertProfileFunc: func(ctx context.Context, name, address string, coord reconcile.Coordinate) (string, error) {
			assert.Equal(t, "New Gym", name)
			return "p-new", nil
		},
	}
	sink := &mocks.MockAssignmentSink{}
	runner := newRunner(&mocks.MockCatalog{}, dir, &mocks.MockSyncCache{}, sink, nil)

	profileID, err := runner.ResolveManually(context.Background(), reconcile.ManualSelection{
		SessionID:  "s1",
		Name:       "New Gym",
		Coordinate: reconcile.Coordinate{Lat: 40, Lon: -75},
	})
	require.NoError(t, err)
	assert.Equal(t, "p-new", profileID)
	require.Len(t, sink.Applied, 1)
	assert.Equal(t, map[string]string{"s1": "p-new"}, sink.Applied[0])
}
