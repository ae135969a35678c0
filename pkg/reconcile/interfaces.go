package reconcile

import (
	"context"
	"errors"
	"time"
)

// ErrRoutePermission is returned (possibly wrapped) by Catalog implementations
// when route access is denied or not granted. The runner treats it as a
// run-wide soft failure rather than an abort.
var ErrRoutePermission = errors.New("route permission unavailable")

// ErrRunInProgress is returned by Run when another run is still active.
var ErrRunInProgress = errors.New("reconciliation already in progress")

// Catalog is the authorization-gated external workout platform.
type Catalog interface {
	// RequestAuthorization verifies catalog access. Failure aborts the run.
	RequestAuthorization(ctx context.Context) error
	// RequestRouteAuthorization verifies route/location access. Failure
	// degrades the run (cache-only matching) instead of aborting it.
	RequestRouteAuthorization(ctx context.Context) error
	// QueryRecords lists workout records whose start falls inside [oldest, newest].
	QueryRecords(ctx context.Context, oldest, newest time.Time) ([]ExternalRecord, error)
	// FetchRouteStart returns the record's starting coordinate, or nil when
	// the record has no route. Permission failures are reported via
	// ErrRoutePermission.
	FetchRouteStart(ctx context.Context, recordID string) (*Coordinate, error)
}

// ProfileDirectory supplies known location profiles.
type ProfileDirectory interface {
	// ResolveCoordinates returns every profile with a usable coordinate,
	// geocoding addresses on demand.
	ResolveCoordinates(ctx context.Context) (map[string]Coordinate, error)
	// ProfileName looks a profile's display name up, "" when unknown.
	ProfileName(profileID string) string
	// UpsertProfile creates or reuses a profile from a manual map selection
	// and returns its id.
	UpsertProfile(ctx context.Context, name, address string, coord Coordinate) (string, error)
}

// SyncCache is the read-only per-session short-circuit cache.
type SyncCache interface {
	// Entry returns the cached mapping for a session, nil when none exists.
	Entry(ctx context.Context, sessionID string) (*CacheEntry, error)
}

// AssignmentSink receives the run's only external mutations.
type AssignmentSink interface {
	// ApplyAssignments writes sessionID -> profileID tags in one bulk write.
	ApplyAssignments(ctx context.Context, assignments map[string]string) error
	// SetLastUsedLocation updates the "last used location" hint.
	SetLastUsedLocation(ctx context.Context, profileID string) error
}

// ProgressFunc receives monotonically non-decreasing progress in [0, 1].
type ProgressFunc func(fraction float64)
