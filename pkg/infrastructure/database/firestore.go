package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	storage "github.com/realronaldrump/workout-app-sub000/pkg/storage/firestore"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

var _ shared.Database = (*FirestoreAdapter)(nil)

// FirestoreAdapter provides database operations using Firestore.
// It wraps our typed storage client.
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

func (a *FirestoreAdapter) GetUser(ctx context.Context, id string) (*types.UserRecord, error) {
	return a.storage.Users().Doc(id).Get(ctx)
}

func (a *FirestoreAdapter) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Users().Doc(id).Update(ctx, data)
}

func (a *FirestoreAdapter) ListSessions(ctx context.Context, userID string) ([]*types.SessionRecord, error) {
	return a.storage.Sessions(userID).All(ctx)
}

func (a *FirestoreAdapter) GetSession(ctx context.Context, userID, sessionID string) (*types.SessionRecord, error) {
	return a.storage.Sessions(userID).Doc(sessionID).Get(ctx)
}

// ApplySessionLocations writes every assignment through one BulkWriter so a
// run's tags land together.
func (a *FirestoreAdapter) ApplySessionLocations(ctx context.Context, userID string, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}

	bw := a.Client.BulkWriter(ctx)
	for sessionID, profileID := range assignments {
		ref := a.storage.Sessions(userID).Doc(sessionID).Ref
		if _, err := bw.Set(ref, map[string]interface{}{"location_profile_id": profileID}, firestore.MergeAll); err != nil {
			bw.End()
			return fmt.Errorf("queue assignment for session %s: %w", sessionID, err)
		}
	}
	bw.End()
	return nil
}

func (a *FirestoreAdapter) ListLocationProfiles(ctx context.Context, userID string) ([]*types.LocationProfileRecord, error) {
	return a.storage.LocationProfiles(userID).All(ctx)
}

func (a *FirestoreAdapter) SetLocationProfile(ctx context.Context, userID string, profile *types.LocationProfileRecord) error {
	return a.storage.LocationProfiles(userID).Doc(profile.ProfileID).Set(ctx, profile)
}

func (a *FirestoreAdapter) UpdateLocationProfile(ctx context.Context, userID, profileID string, data map[string]interface{}) error {
	return a.storage.LocationProfiles(userID).Doc(profileID).Update(ctx, data)
}

func (a *FirestoreAdapter) GetSyncCacheEntry(ctx context.Context, userID, sessionID string) (*types.SyncCacheRecord, error) {
	return a.storage.SyncCache(userID).Doc(sessionID).Get(ctx)
}

func (a *FirestoreAdapter) SetRun(ctx context.Context, userID string, record *types.RunRecord) error {
	return a.storage.Runs(userID).Doc(record.RunID).Set(ctx, record)
}

func (a *FirestoreAdapter) UpdateRun(ctx context.Context, userID, runID string, data map[string]interface{}) error {
	return a.storage.Runs(userID).Doc(runID).Update(ctx, data)
}
