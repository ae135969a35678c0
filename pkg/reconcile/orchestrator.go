package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner sequences one reconciliation run: time-match each target session
// against the external catalog, resolve the matched record's starting
// coordinate, find the nearest location profile, and apply every assignment
// in a single bulk write at the end.
type Runner struct {
	catalog  Catalog
	profiles ProfileDirectory
	cache    SyncCache
	sink     AssignmentSink
	logger   *slog.Logger
	progress ProgressFunc

	mu       sync.Mutex
	running  bool
	fallback *FallbackQueue
}

// NewRunner constructs a Runner. progress may be nil.
func NewRunner(catalog Catalog, profiles ProfileDirectory, cache SyncCache, sink AssignmentSink, logger *slog.Logger, progress ProgressFunc) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		catalog:  catalog,
		profiles: profiles,
		cache:    cache,
		sink:     sink,
		logger:   logger,
		progress: progress,
		fallback: NewFallbackQueue(),
	}
}

// Fallback exposes the queue of sessions needing manual resolution.
func (r *Runner) Fallback() *FallbackQueue {
	return r.fallback
}

// runState is the per-run arena. Everything here is created at run start and
// discarded at run end; nothing is shared across runs.
type runState struct {
	records  []ExternalRecord
	resolver *routeResolver
	profiles map[string]Coordinate

	assignments map[string]string // session id -> profile id
	outcomes    []MatchOutcome
	processed   int
	total       int
}

// Run reconciles the target sessions and returns the run's report. Targets
// are processed strictly sequentially in input order. An empty target set is
// a no-op. A second Run while one is active fails with ErrRunInProgress.
func (r *Runner) Run(ctx context.Context, runID string, targets []LoggedSession) (*RunReport, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if len(targets) == 0 {
		r.logger.Info("No target sessions, nothing to reconcile")
		return &RunReport{RunID: runID}, nil
	}

	// Catalog access is a hard dependency.
	if err := r.catalog.RequestAuthorization(ctx); err != nil {
		return nil, fmt.Errorf("catalog authorization: %w", err)
	}

	state := &runState{
		assignments: make(map[string]string),
		total:       len(targets),
		resolver:    newRouteResolver(r.catalog, r.logger),
	}

	// Route access is soft: on denial the run continues in cache-only mode.
	if err := r.catalog.RequestRouteAuthorization(ctx); err != nil {
		if !errors.Is(err, ErrRoutePermission) {
			r.logger.Warn("Route authorization failed", "error", err)
		}
		state.resolver.permissionUnavailable = true
	}

	// One batched catalog query spanning every target's estimated window,
	// padded by the relaxed tolerance so widened matching stays in-range.
	oldest, newest := combinedWindow(targets)
	records, err := r.catalog.QueryRecords(ctx, oldest.Add(-RelaxedTolerance), newest.Add(RelaxedTolerance))
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	state.records = records

	profiles, err := r.profiles.ResolveCoordinates(ctx)
	if err != nil {
		// Treated like an empty directory: every session falls back.
		r.logger.Warn("Profile coordinate resolution failed", "error", err)
		profiles = nil
	}
	state.profiles = profiles

	r.fallback.Reset()
	r.reportProgress(0)

	r.logger.Info("Reconciliation started",
		"run_id", runID,
		"targets", len(targets),
		"records", len(records),
		"profiles_with_coordinates", len(profiles))

	for _, session := range targets {
		r.processSession(ctx, state, session)
		state.processed++
		r.reportProgress(float64(state.processed) / float64(state.total))
	}

	if len(state.assignments) > 0 {
		if err := r.sink.ApplyAssignments(ctx, state.assignments); err != nil {
			return nil, fmt.Errorf("apply assignments: %w", err)
		}
		if last := lastAssignedLocation(state); last != "" {
			if err := r.sink.SetLastUsedLocation(ctx, last); err != nil {
				r.logger.Warn("Failed to update last-used location hint", "error", err)
			}
		}
	}

	report := buildReport(runID, state.outcomes, state.resolver.permissionUnavailable)
	r.logger.Info("Reconciliation finished",
		"run_id", runID,
		"attempted", report.Attempted,
		"assigned", report.Assigned,
		"fallback", r.fallback.Len())
	return report, nil
}

// processSession runs the match pipeline for one target. Per-session
// failures degrade to a Skipped outcome; nothing here aborts the run.
func (r *Runner) processSession(ctx context.Context, state *runState, session LoggedSession) {
	cached, err := r.cache.Entry(ctx, session.ID)
	if err != nil {
		r.logger.Warn("Sync cache lookup failed", "session_id", session.ID, "error", err)
		cached = nil
	}

	var coord *Coordinate
	if cached != nil && cached.Coordinate != nil {
		// Cache short-circuit: no catalog or route access needed.
		coord = cached.Coordinate
	} else {
		record, ok := matchRecord(session, state.records, cached)
		if !ok {
			r.skip(state, session, SkipNoMatchingRecord, nil)
			return
		}
		coord = state.resolver.startCoordinate(ctx, record.ID, cached)
		if coord == nil {
			r.skip(state, session, SkipNoRouteLocation, nil)
			return
		}
	}

	if len(state.profiles) == 0 {
		r.skip(state, session, SkipProfilesMissingLocations, coord)
		return
	}

	profileID, distance, ok := nearestProfile(*coord, state.profiles)
	if !ok {
		r.skip(state, session, SkipNoNearbyLocation, coord)
		return
	}

	state.assignments[session.ID] = profileID
	state.outcomes = append(state.outcomes, MatchOutcome{
		SessionID:      session.ID,
		SessionName:    session.Name,
		SessionDate:    session.StartedAt,
		Kind:           OutcomeAssigned,
		LocationID:     profileID,
		LocationName:   r.profiles.ProfileName(profileID),
		DistanceMeters: distance,
	})
}

func (r *Runner) skip(state *runState, session LoggedSession, reason SkipReason, coord *Coordinate) {
	state.outcomes = append(state.outcomes, MatchOutcome{
		SessionID:   session.ID,
		SessionName: session.Name,
		SessionDate: session.StartedAt,
		Kind:        OutcomeSkipped,
		Skip:        reason,
	})
	r.fallback.Add(FallbackCandidate{
		SessionID:   session.ID,
		SessionName: session.Name,
		SessionDate: session.StartedAt,
		Coordinate:  coord,
	})
}

// ManualSelection is a place chosen in the manual resolution UI. ProfileID
// names an existing profile; when empty, a profile is created from Name,
// Address and Coordinate first.
type ManualSelection struct {
	SessionID  string
	ProfileID  string
	Name       string
	Address    string
	Coordinate Coordinate
}

// ResolveManually applies a single manually chosen assignment and removes the
// session from the fallback queue.
func (r *Runner) ResolveManually(ctx context.Context, sel ManualSelection) (string, error) {
	profileID := sel.ProfileID
	if profileID == "" {
		id, err := r.profiles.UpsertProfile(ctx, sel.Name, sel.Address, sel.Coordinate)
		if err != nil {
			return "", fmt.Errorf("upsert profile: %w", err)
		}
		profileID = id
	}

	if err := r.sink.ApplyAssignments(ctx, map[string]string{sel.SessionID: profileID}); err != nil {
		return "", fmt.Errorf("apply manual assignment: %w", err)
	}
	if err := r.sink.SetLastUsedLocation(ctx, profileID); err != nil {
		r.logger.Warn("Failed to update last-used location hint", "error", err)
	}

	r.fallback.Remove(sel.SessionID)
	r.logger.Info("Manual resolution applied", "session_id", sel.SessionID, "profile_id", profileID)
	return profileID, nil
}

func (r *Runner) reportProgress(fraction float64) {
	if r.progress != nil {
		r.progress(fraction)
	}
}

// combinedWindow spans all targets' estimated windows.
func combinedWindow(targets []LoggedSession) (oldest, newest time.Time) {
	for i, s := range targets {
		start, end := s.EstimatedWindow()
		if i == 0 || start.Before(oldest) {
			oldest = start
		}
		if i == 0 || end.After(newest) {
			newest = end
		}
	}
	return oldest, newest
}

// lastAssignedLocation picks the most recently processed assignment for the
// last-used hint.
func lastAssignedLocation(state *runState) string {
	for i := len(state.outcomes) - 1; i >= 0; i-- {
		if state.outcomes[i].Kind == OutcomeAssigned {
			return state.outcomes[i].LocationID
		}
	}
	return ""
}
