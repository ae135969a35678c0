// Package reconcile matches logged workout sessions against an external
// health-platform catalog and tags each session with the location profile
// where it most likely happened.
package reconcile

import "time"

// DefaultSessionDuration is assumed when a session has no recorded end time.
const DefaultSessionDuration = 60 * time.Minute

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LoggedSession is a locally logged workout, read-only to this package.
type LoggedSession struct {
	ID        string
	Name      string
	StartedAt time.Time
	Duration  time.Duration // estimated; 0 means unknown
}

// EstimatedWindow returns the session's [start, end) window, falling back to
// DefaultSessionDuration when no explicit duration was recorded.
func (s LoggedSession) EstimatedWindow() (time.Time, time.Time) {
	d := s.Duration
	if d <= 0 {
		d = DefaultSessionDuration
	}
	return s.StartedAt, s.StartedAt.Add(d)
}

// ExternalRecord is a workout instance known to the external platform.
// Fetched per run, never persisted here.
type ExternalRecord struct {
	ID    string
	Start time.Time
	End   time.Time
}

// LocationProfile is a known place with a resolved coordinate.
type LocationProfile struct {
	ID         string
	Name       string
	Coordinate Coordinate
}

// CacheEntry is a previously observed mapping for a session, supplied by the
// sync cache. Either field may be absent.
type CacheEntry struct {
	SessionID  string
	RecordID   string
	Coordinate *Coordinate
}

// SkipReason distinguishes why a session could not be auto-assigned.
type SkipReason string

const (
	SkipNoMatchingRecord         SkipReason = "no_matching_record"
	SkipNoRouteLocation          SkipReason = "no_route_location"
	SkipNoNearbyLocation         SkipReason = "no_nearby_location"
	SkipProfilesMissingLocations SkipReason = "profiles_missing_location_data"
)

// Message returns the user-facing reason string.
func (r SkipReason) Message(routePermissionUnavailable bool) string {
	switch r {
	case SkipNoMatchingRecord:
		return "no matching record"
	case SkipNoRouteLocation:
		if routePermissionUnavailable {
			return "no route/start location, permission unavailable"
		}
		return "no route/start location"
	case SkipNoNearbyLocation:
		return "no nearby location"
	case SkipProfilesMissingLocations:
		return "profiles missing location data"
	}
	return string(r)
}

// OutcomeKind tags a MatchOutcome.
type OutcomeKind string

const (
	OutcomeAssigned OutcomeKind = "assigned"
	OutcomeSkipped  OutcomeKind = "skipped"
)

// MatchOutcome is the per-session result, immutable once recorded in the
// report. Exactly one of the Assigned payload or the Skip reason is set,
// selected by Kind.
type MatchOutcome struct {
	SessionID   string      `json:"session_id"`
	SessionName string      `json:"session_name,omitempty"`
	SessionDate time.Time   `json:"session_date"`
	Kind        OutcomeKind `json:"kind"`

	// Assigned payload
	LocationID     string  `json:"location_id,omitempty"`
	LocationName   string  `json:"location_name,omitempty"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`

	// Skipped payload
	Skip SkipReason `json:"skip_reason,omitempty"`
}

// FallbackCandidate is a session queued for manual map-based resolution.
// Coordinate carries whatever partial position is known, possibly nil.
type FallbackCandidate struct {
	SessionID   string      `json:"session_id"`
	SessionName string      `json:"session_name,omitempty"`
	SessionDate time.Time   `json:"session_date"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
}

// RunReport aggregates one run's outcomes. Items are ordered newest session
// first; each target session appears exactly once.
type RunReport struct {
	RunID     string `json:"run_id"`
	Attempted int    `json:"attempted"`
	Assigned  int    `json:"assigned"`

	SkippedNoRecord                 int `json:"skipped_no_record"`
	SkippedNoRouteLocation          int `json:"skipped_no_route_location"`
	SkippedNoNearbyLocation         int `json:"skipped_no_nearby_location"`
	SkippedProfilesMissingLocations int `json:"skipped_profiles_missing_locations"`

	RoutePermissionUnavailable bool           `json:"route_permission_unavailable"`
	Items                      []MatchOutcome `json:"items"`
}
