package shared

import (
	"context"

	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	GetUser(ctx context.Context, id string) (*types.UserRecord, error)
	UpdateUser(ctx context.Context, id string, data map[string]interface{}) error

	// Sessions
	ListSessions(ctx context.Context, userID string) ([]*types.SessionRecord, error)
	GetSession(ctx context.Context, userID, sessionID string) (*types.SessionRecord, error)
	// ApplySessionLocations tags each session with its location profile in one bulk write.
	ApplySessionLocations(ctx context.Context, userID string, assignments map[string]string) error

	// Location profiles
	ListLocationProfiles(ctx context.Context, userID string) ([]*types.LocationProfileRecord, error)
	SetLocationProfile(ctx context.Context, userID string, profile *types.LocationProfileRecord) error
	UpdateLocationProfile(ctx context.Context, userID, profileID string, data map[string]interface{}) error

	// Sync cache (read-only to the reconciler)
	GetSyncCacheEntry(ctx context.Context, userID, sessionID string) (*types.SyncCacheRecord, error)

	// Run audit records
	SetRun(ctx context.Context, userID string, record *types.RunRecord) error
	UpdateRun(ctx context.Context, userID, runID string, data map[string]interface{}) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	Publish(ctx context.Context, topicID string, data []byte) (string, error)
	PublishWithAttrs(ctx context.Context, topicID string, data []byte, attrs map[string]string) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Notification Interfaces ---

type NotificationService interface {
	SendPushNotification(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error
}
