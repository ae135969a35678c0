// Package types holds the records shared between the persistence layer and
// the reconciliation pipeline. Firestore converters live in pkg/storage/firestore.
package types

import "time"

// UserRecord is the root user document.
type UserRecord struct {
	UserID             string
	Email              string
	FCMTokens          []string
	LastUsedLocationID string
	Integrations       map[string]*IntegrationTokens
}

// IntegrationTokens holds OAuth credentials for one connected platform.
type IntegrationTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	GrantedScopes []string
}

// SessionRecord is a logged workout session as stored under users/{uid}/sessions.
type SessionRecord struct {
	SessionID         string
	Name              string
	StartedAt         time.Time
	DurationMinutes   int // 0 when the app never recorded an explicit end
	LocationProfileID string
}

// LocationProfileRecord is a known place (gym, park, track) the user saves.
// Latitude/Longitude are zero-valued until geocoding resolves the address.
type LocationProfileRecord struct {
	ProfileID     string
	Name          string
	Address       string
	Latitude      float64
	Longitude     float64
	HasCoordinate bool
	Deleted       bool
}

// SyncCacheRecord is the read-only per-session cache written by earlier syncs.
// Either field may be unset.
type SyncCacheRecord struct {
	SessionID        string
	ExternalRecordID string
	Latitude         float64
	Longitude        float64
	HasCoordinate    bool
}

// RunRecord is the audit document written for each reconciliation run.
type RunRecord struct {
	RunID       string
	UserID      string
	Service     string
	TriggerType string
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
	Outputs     map[string]interface{}
}

// RunStatus is the lifecycle state of a RunRecord.
type RunStatus string

const (
	RunStatusStarted RunStatus = "STARTED"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusAborted RunStatus = "ABORTED"
)

// PubSubMessage is the payload of a Pub/Sub event via Cloud Event.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
}
