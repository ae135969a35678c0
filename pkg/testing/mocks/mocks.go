package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// --- Mock Catalog ---

type MockCatalog struct {
	RequestAuthorizationFunc      func(ctx context.Context) error
	RequestRouteAuthorizationFunc func(ctx context.Context) error
	QueryRecordsFunc              func(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error)
	FetchRouteStartFunc           func(ctx context.Context, recordID string) (*reconcile.Coordinate, error)

	FetchRouteStartCalls []string
}

func (m *MockCatalog) RequestAuthorization(ctx context.Context) error {
	if m.RequestAuthorizationFunc != nil {
		return m.RequestAuthorizationFunc(ctx)
	}
	return nil
}

func (m *MockCatalog) RequestRouteAuthorization(ctx context.Context) error {
	if m.RequestRouteAuthorizationFunc != nil {
		return m.RequestRouteAuthorizationFunc(ctx)
	}
	return nil
}

func (m *MockCatalog) QueryRecords(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
	if m.QueryRecordsFunc != nil {
		return m.QueryRecordsFunc(ctx, oldest, newest)
	}
	return nil, nil
}

func (m *MockCatalog) FetchRouteStart(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
	m.FetchRouteStartCalls = append(m.FetchRouteStartCalls, recordID)
	if m.FetchRouteStartFunc != nil {
		return m.FetchRouteStartFunc(ctx, recordID)
	}
	return nil, nil
}

// --- Mock ProfileDirectory ---

type MockProfileDirectory struct {
	ResolveCoordinatesFunc func(ctx context.Context) (map[string]reconcile.Coordinate, error)
	ProfileNameFunc        func(profileID string) string
	UpsertProfileFunc      func(ctx context.Context, name, address string, coord reconcile.Coordinate) (string, error)
}

func (m *MockProfileDirectory) ResolveCoordinates(ctx context.Context) (map[string]reconcile.Coordinate, error) {
	if m.ResolveCoordinatesFunc != nil {
		return m.ResolveCoordinatesFunc(ctx)
	}
	return nil, nil
}

func (m *MockProfileDirectory) ProfileName(profileID string) string {
	if m.ProfileNameFunc != nil {
		return m.ProfileNameFunc(profileID)
	}
	return profileID
}

func (m *MockProfileDirectory) UpsertProfile(ctx context.Context, name, address string, coord reconcile.Coordinate) (string, error) {
	if m.UpsertProfileFunc != nil {
		return m.UpsertProfileFunc(ctx, name, address, coord)
	}
	return "profile-" + name, nil
}

// --- Mock SyncCache ---

type MockSyncCache struct {
	EntryFunc func(ctx context.Context, sessionID string) (*reconcile.CacheEntry, error)
}

func (m *MockSyncCache) Entry(ctx context.Context, sessionID string) (*reconcile.CacheEntry, error) {
	if m.EntryFunc != nil {
		return m.EntryFunc(ctx, sessionID)
	}
	return nil, nil
}

// --- Mock AssignmentSink ---

type MockAssignmentSink struct {
	ApplyAssignmentsFunc    func(ctx context.Context, assignments map[string]string) error
	SetLastUsedLocationFunc func(ctx context.Context, profileID string) error

	Applied      []map[string]string
	LastLocation string
}

func (m *MockAssignmentSink) ApplyAssignments(ctx context.Context, assignments map[string]string) error {
	if m.ApplyAssignmentsFunc != nil {
		if err := m.ApplyAssignmentsFunc(ctx, assignments); err != nil {
			return err
		}
	}
	m.Applied = append(m.Applied, assignments)
	return nil
}

func (m *MockAssignmentSink) SetLastUsedLocation(ctx context.Context, profileID string) error {
	if m.SetLastUsedLocationFunc != nil {
		if err := m.SetLastUsedLocationFunc(ctx, profileID); err != nil {
			return err
		}
	}
	m.LastLocation = profileID
	return nil
}

// --- Mock Database ---

type MockDatabase struct {
	GetUserFunc               func(ctx context.Context, id string) (*types.UserRecord, error)
	UpdateUserFunc            func(ctx context.Context, id string, data map[string]interface{}) error
	ListSessionsFunc          func(ctx context.Context, userID string) ([]*types.SessionRecord, error)
	GetSessionFunc            func(ctx context.Context, userID, sessionID string) (*types.SessionRecord, error)
	ApplySessionLocationsFunc func(ctx context.Context, userID string, assignments map[string]string) error
	ListLocationProfilesFunc  func(ctx context.Context, userID string) ([]*types.LocationProfileRecord, error)
	SetLocationProfileFunc    func(ctx context.Context, userID string, profile *types.LocationProfileRecord) error
	UpdateLocationProfileFunc func(ctx context.Context, userID, profileID string, data map[string]interface{}) error
	GetSyncCacheEntryFunc     func(ctx context.Context, userID, sessionID string) (*types.SyncCacheRecord, error)
	SetRunFunc                func(ctx context.Context, userID string, record *types.RunRecord) error
	UpdateRunFunc             func(ctx context.Context, userID, runID string, data map[string]interface{}) error
}

func (m *MockDatabase) GetUser(ctx context.Context, id string) (*types.UserRecord, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, fmt.Errorf("user not found")
}

func (m *MockDatabase) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, data)
	}
	return nil
}

func (m *MockDatabase) ListSessions(ctx context.Context, userID string) ([]*types.SessionRecord, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockDatabase) GetSession(ctx context.Context, userID, sessionID string) (*types.SessionRecord, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, userID, sessionID)
	}
	return nil, fmt.Errorf("session not found")
}

func (m *MockDatabase) ApplySessionLocations(ctx context.Context, userID string, assignments map[string]string) error {
	if m.ApplySessionLocationsFunc != nil {
		return m.ApplySessionLocationsFunc(ctx, userID, assignments)
	}
	return nil
}

func (m *MockDatabase) ListLocationProfiles(ctx context.Context, userID string) ([]*types.LocationProfileRecord, error) {
	if m.ListLocationProfilesFunc != nil {
		return m.ListLocationProfilesFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockDatabase) SetLocationProfile(ctx context.Context, userID string, profile *types.LocationProfileRecord) error {
	if m.SetLocationProfileFunc != nil {
		return m.SetLocationProfileFunc(ctx, userID, profile)
	}
	return nil
}

func (m *MockDatabase) UpdateLocationProfile(ctx context.Context, userID, profileID string, data map[string]interface{}) error {
	if m.UpdateLocationProfileFunc != nil {
		return m.UpdateLocationProfileFunc(ctx, userID, profileID, data)
	}
	return nil
}

func (m *MockDatabase) GetSyncCacheEntry(ctx context.Context, userID, sessionID string) (*types.SyncCacheRecord, error) {
	if m.GetSyncCacheEntryFunc != nil {
		return m.GetSyncCacheEntryFunc(ctx, userID, sessionID)
	}
	return nil, nil
}

func (m *MockDatabase) SetRun(ctx context.Context, userID string, record *types.RunRecord) error {
	if m.SetRunFunc != nil {
		return m.SetRunFunc(ctx, userID, record)
	}
	return nil
}

func (m *MockDatabase) UpdateRun(ctx context.Context, userID, runID string, data map[string]interface{}) error {
	if m.UpdateRunFunc != nil {
		return m.UpdateRunFunc(ctx, userID, runID, data)
	}
	return nil
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishFunc func(ctx context.Context, topicID string, data []byte) (string, error)

	Published map[string][][]byte
}

func (m *MockPublisher) record(topicID string, data []byte) {
	if m.Published == nil {
		m.Published = make(map[string][][]byte)
	}
	m.Published[topicID] = append(m.Published[topicID], data)
}

func (m *MockPublisher) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	m.record(topicID, data)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topicID, data)
	}
	return "msg-id", nil
}

func (m *MockPublisher) PublishWithAttrs(ctx context.Context, topicID string, data []byte, attrs map[string]string) (string, error) {
	m.record(topicID, data)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topicID, data)
	}
	return "msg-id", nil
}

// --- Mock Storage ---

type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Notifications ---

type MockNotificationService struct {
	SendPushNotificationFunc func(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error
}

func (m *MockNotificationService) SendPushNotification(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error {
	if m.SendPushNotificationFunc != nil {
		return m.SendPushNotificationFunc(ctx, userID, title, body, tokens, data)
	}
	return nil
}
