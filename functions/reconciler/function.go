// Package reconciler is the cloud function that matches logged workout
// sessions to saved location profiles using the external catalog's records.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	"github.com/realronaldrump/workout-app-sub000/pkg/bootstrap"
	"github.com/realronaldrump/workout-app-sub000/pkg/framework"
	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/geocoding"
	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/oauth"
	infrapubsub "github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/pubsub"
	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/sentry"
	"github.com/realronaldrump/workout-app-sub000/pkg/integrations/healthsync"
	"github.com/realronaldrump/workout-app-sub000/pkg/locations"
	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("ReconcileLocations", ReconcileLocations)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
		if svcErr != nil {
			slog.Error("Failed to initialize service", "error", svcErr)
			return
		}
		if err := sentry.Init(sentry.ConfigFromEnv("reconciler"), slog.Default()); err != nil {
			slog.Warn("Sentry init failed", "error", err)
		}
	})
	return svc, svcErr
}

// ReconcileLocations is the entry point
func ReconcileLocations(ctx context.Context, e event.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("reconciler", svc, reconcileHandler)(ctx, e)
}

// ReconcileRequest is the Pub/Sub payload that triggers a run. With no
// explicit session ids, every unassigned session becomes a target.
type ReconcileRequest struct {
	UserID     string                   `json:"user_id"`
	SessionIDs []string                 `json:"session_ids,omitempty"`
	Manual     *ManualResolutionRequest `json:"manual,omitempty"`
}

// ManualResolutionRequest applies a single user-chosen assignment instead
// of running the matcher. ProfileID names an existing profile; otherwise a
// profile is created from Name, Address and the coordinate.
type ManualResolutionRequest struct {
	SessionID string  `json:"session_id"`
	ProfileID string  `json:"profile_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// ReportEvent is the payload published to the report topic after a run.
type ReportEvent struct {
	UserID   string                        `json:"user_id"`
	Report   *reconcile.RunReport          `json:"report"`
	Fallback []reconcile.FallbackCandidate `json:"fallback"`
}

// reconcileHandler contains the business logic
func reconcileHandler(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (map[string]interface{}, error) {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return nil, fmt.Errorf("event.DataAs: %v", err)
	}

	var req ReconcileRequest
	if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %v", err)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("missing user_id in payload")
	}

	runner := buildRunner(ctx, fwCtx, req.UserID)

	if req.Manual != nil {
		return handleManualResolution(ctx, fwCtx, runner, req.Manual)
	}

	targets, err := selectTargets(ctx, fwCtx.Service.DB, req.UserID, req.SessionIDs)
	if err != nil {
		return nil, err
	}
	fwCtx.Logger.Info("Starting reconciliation", "target_count", len(targets))

	report, err := runner.Run(ctx, fwCtx.RunID, targets)
	if err != nil {
		return nil, err
	}

	fallback := runner.Fallback().Candidates()
	publishReport(ctx, fwCtx, req.UserID, report, fallback)
	archiveReport(ctx, fwCtx, req.UserID, report, fallback)
	notifyUser(ctx, fwCtx, req.UserID, report)

	return map[string]interface{}{
		"attempted":      report.Attempted,
		"assigned":       report.Assigned,
		"fallback_count": len(fallback),
	}, nil
}

// buildRunner wires the engine's collaborators for one user.
func buildRunner(ctx context.Context, fwCtx *framework.FrameworkContext, userID string) *reconcile.Runner {
	cfg := fwCtx.Service.Config

	tokens := oauth.NewFirestoreTokenSource(fwCtx.Service.DB, userID, "healthsync", cfg.CatalogBaseURL+"/oauth/token")
	httpClient := &http.Client{
		Transport: &oauth.Transport{Source: tokens},
		Timeout:   30 * time.Second,
	}
	client := healthsync.NewClientWithBaseURL(cfg.CatalogBaseURL, httpClient)
	catalog := healthsync.NewCatalog(client, tokens, fwCtx.Logger)

	directory := locations.NewDirectory(fwCtx.Service.DB, geocoding.NewGeocoder(), userID, fwCtx.Logger)
	cache := &syncCacheAdapter{db: fwCtx.Service.DB, userID: userID}
	sink := &assignmentSinkAdapter{db: fwCtx.Service.DB, userID: userID}

	progress := func(fraction float64) {
		payload, err := eventPayload(infrapubsub.EventTypeReconcileProgress, infrapubsub.ProgressEvent{
			UserID:   userID,
			RunID:    fwCtx.RunID,
			Fraction: fraction,
		})
		if err != nil {
			return
		}
		if _, err := fwCtx.Service.Pub.Publish(ctx, shared.TopicReconcileProgress, payload); err != nil {
			fwCtx.Logger.Warn("Failed to publish progress", "error", err)
		}
	}

	return reconcile.NewRunner(catalog, directory, cache, sink, fwCtx.Logger, progress)
}

func handleManualResolution(ctx context.Context, fwCtx *framework.FrameworkContext, runner *reconcile.Runner, manual *ManualResolutionRequest) (map[string]interface{}, error) {
	if manual.SessionID == "" {
		return nil, fmt.Errorf("missing session_id in manual resolution")
	}

	profileID, err := runner.ResolveManually(ctx, reconcile.ManualSelection{
		SessionID:  manual.SessionID,
		ProfileID:  manual.ProfileID,
		Name:       manual.Name,
		Address:    manual.Address,
		Coordinate: reconcile.Coordinate{Lat: manual.Latitude, Lon: manual.Longitude},
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"session_id": manual.SessionID,
		"profile_id": profileID,
	}, nil
}

// selectTargets resolves the run's target sessions. Explicit ids win;
// otherwise every session without a live profile assignment is a target.
func selectTargets(ctx context.Context, db shared.Database, userID string, sessionIDs []string) ([]reconcile.LoggedSession, error) {
	if len(sessionIDs) > 0 {
		targets := make([]reconcile.LoggedSession, 0, len(sessionIDs))
		for _, id := range sessionIDs {
			session, err := db.GetSession(ctx, userID, id)
			if err != nil {
				return nil, fmt.Errorf("get session %s: %w", id, err)
			}
			targets = append(targets, toLoggedSession(session))
		}
		return targets, nil
	}

	sessions, err := db.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	profiles, err := db.ListLocationProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list location profiles: %w", err)
	}

	deleted := make(map[string]bool)
	for _, p := range profiles {
		if p.Deleted {
			deleted[p.ProfileID] = true
		}
	}

	var targets []reconcile.LoggedSession
	for _, s := range sessions {
		if s.LocationProfileID != "" && !deleted[s.LocationProfileID] {
			continue
		}
		targets = append(targets, toLoggedSession(s))
	}
	return targets, nil
}

func toLoggedSession(s *types.SessionRecord) reconcile.LoggedSession {
	return reconcile.LoggedSession{
		ID:        s.SessionID,
		Name:      s.Name,
		StartedAt: s.StartedAt,
		Duration:  time.Duration(s.DurationMinutes) * time.Minute,
	}
}

// eventPayload wraps data in a CloudEvent envelope for downstream consumers.
func eventPayload(eventType string, data interface{}) ([]byte, error) {
	e, err := infrapubsub.NewCloudEvent("//reconciler", eventType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func publishReport(ctx context.Context, fwCtx *framework.FrameworkContext, userID string, report *reconcile.RunReport, fallback []reconcile.FallbackCandidate) {
	payload, err := eventPayload(infrapubsub.EventTypeReconcileReport, ReportEvent{UserID: userID, Report: report, Fallback: fallback})
	if err != nil {
		fwCtx.Logger.Error("Failed to marshal report", "error", err)
		return
	}
	if _, err := fwCtx.Service.Pub.Publish(ctx, shared.TopicReconcileReport, payload); err != nil {
		fwCtx.Logger.Error("Failed to publish report", "error", err)
	}

	if len(fallback) == 0 {
		return
	}
	// A separate fallback event lets the app surface the manual resolution
	// queue without parsing the full report.
	payload, err = eventPayload(infrapubsub.EventTypeReconcileFallback, map[string]interface{}{
		"user_id":    userID,
		"run_id":     report.RunID,
		"candidates": fallback,
	})
	if err != nil {
		return
	}
	if _, err := fwCtx.Service.Pub.Publish(ctx, shared.TopicReconcileReport, payload); err != nil {
		fwCtx.Logger.Warn("Failed to publish fallback event", "error", err)
	}
}

// archiveReport keeps a copy of the report in GCS for later inspection.
func archiveReport(ctx context.Context, fwCtx *framework.FrameworkContext, userID string, report *reconcile.RunReport, fallback []reconcile.FallbackCandidate) {
	bucket := fwCtx.Service.Config.GCSArtifactBucket
	if bucket == "" {
		return
	}
	payload, err := json.Marshal(ReportEvent{UserID: userID, Report: report, Fallback: fallback})
	if err != nil {
		return
	}
	object := fmt.Sprintf("reports/%s/%s.json", userID, report.RunID)
	if err := fwCtx.Service.Store.Write(ctx, bucket, object, payload); err != nil {
		fwCtx.Logger.Warn("Failed to archive report", "object", object, "error", err)
	}
}

func notifyUser(ctx context.Context, fwCtx *framework.FrameworkContext, userID string, report *reconcile.RunReport) {
	if report.Attempted == 0 {
		return
	}
	user, err := fwCtx.Service.DB.GetUser(ctx, userID)
	if err != nil || user == nil || len(user.FCMTokens) == 0 {
		return
	}

	body := fmt.Sprintf("%d of %d workouts matched to a location", report.Assigned, report.Attempted)
	data := map[string]string{
		"run_id": report.RunID,
		"type":   "reconcile_report",
	}
	if err := fwCtx.Service.Notify.SendPushNotification(ctx, userID, "Workout locations updated", body, user.FCMTokens, data); err != nil {
		fwCtx.Logger.Warn("Failed to send push notification", "error", err)
	}
}
