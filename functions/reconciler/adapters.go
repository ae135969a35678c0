package reconciler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
)

// syncCacheAdapter exposes the per-session sync cache to the engine.
// A session that never synced has no entry; that reads as (nil, nil).
type syncCacheAdapter struct {
	db     shared.Database
	userID string
}

func (a *syncCacheAdapter) Entry(ctx context.Context, sessionID string) (*reconcile.CacheEntry, error) {
	record, err := a.db.GetSyncCacheEntry(ctx, a.userID, sessionID)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	entry := &reconcile.CacheEntry{
		SessionID: record.SessionID,
		RecordID:  record.ExternalRecordID,
	}
	if record.HasCoordinate {
		entry.Coordinate = &reconcile.Coordinate{Lat: record.Latitude, Lon: record.Longitude}
	}
	return entry, nil
}

// assignmentSinkAdapter writes engine results back to Firestore.
type assignmentSinkAdapter struct {
	db     shared.Database
	userID string
}

func (a *assignmentSinkAdapter) ApplyAssignments(ctx context.Context, assignments map[string]string) error {
	return a.db.ApplySessionLocations(ctx, a.userID, assignments)
}

func (a *assignmentSinkAdapter) SetLastUsedLocation(ctx context.Context, profileID string) error {
	return a.db.UpdateUser(ctx, a.userID, map[string]interface{}{
		"last_used_location_id": profileID,
	})
}
