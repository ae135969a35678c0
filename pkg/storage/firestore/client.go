package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Raw exposes the underlying client for bulk operations.
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

func (c *Client) Users() *Collection[types.UserRecord] {
	return &Collection[types.UserRecord]{
		Ref:           c.fs.Collection(shared.CollectionUsers),
		ToFirestore:   UserToFirestore,
		FromFirestore: FirestoreToUser,
	}
}

// Sessions are sub-collections of Users: users/{uid}/sessions/{id}
func (c *Client) Sessions(userID string) *Collection[types.SessionRecord] {
	return &Collection[types.SessionRecord]{
		Ref:           c.userDoc(userID).Collection(shared.CollectionSessions),
		ToFirestore:   SessionToFirestore,
		FromFirestore: FirestoreToSession,
	}
}

// LocationProfiles are sub-collections of Users: users/{uid}/location_profiles/{id}
func (c *Client) LocationProfiles(userID string) *Collection[types.LocationProfileRecord] {
	return &Collection[types.LocationProfileRecord]{
		Ref:           c.userDoc(userID).Collection(shared.CollectionLocationProfiles),
		ToFirestore:   LocationProfileToFirestore,
		FromFirestore: FirestoreToLocationProfile,
	}
}

// SyncCache entries are written by the platform sync job and read-only here:
// users/{uid}/sync_cache/{sessionId}
func (c *Client) SyncCache(userID string) *Collection[types.SyncCacheRecord] {
	return &Collection[types.SyncCacheRecord]{
		Ref:           c.userDoc(userID).Collection(shared.CollectionSyncCache),
		ToFirestore:   SyncCacheToFirestore,
		FromFirestore: FirestoreToSyncCache,
	}
}

// Runs are audit records: users/{uid}/runs/{id}
func (c *Client) Runs(userID string) *Collection[types.RunRecord] {
	return &Collection[types.RunRecord]{
		Ref:           c.userDoc(userID).Collection(shared.CollectionRuns),
		ToFirestore:   RunToFirestore,
		FromFirestore: FirestoreToRun,
	}
}

func (c *Client) userDoc(userID string) *firestore.DocumentRef {
	return c.fs.Collection(shared.CollectionUsers).Doc(userID)
}
