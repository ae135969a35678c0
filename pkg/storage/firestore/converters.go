package firestore

import (
	"time"

	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get bool from map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Helper to safely get float from map (Firestore stores numbers as int64 or float64)
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getStringSlice(m map[string]interface{}, key string) []string {
	v, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- UserRecord Converters ---

func UserToFirestore(u *types.UserRecord) map[string]interface{} {
	integrations := make(map[string]interface{}, len(u.Integrations))
	for name, tok := range u.Integrations {
		if tok == nil {
			continue
		}
		integrations[name] = map[string]interface{}{
			"access_token":   tok.AccessToken,
			"refresh_token":  tok.RefreshToken,
			"expiry":         tok.Expiry,
			"granted_scopes": tok.GrantedScopes,
		}
	}
	return map[string]interface{}{
		"user_id":               u.UserID,
		"email":                 u.Email,
		"fcm_tokens":            u.FCMTokens,
		"last_used_location_id": u.LastUsedLocationID,
		"integrations":          integrations,
	}
}

func FirestoreToUser(m map[string]interface{}) *types.UserRecord {
	u := &types.UserRecord{
		UserID:             getString(m, "user_id"),
		Email:              getString(m, "email"),
		FCMTokens:          getStringSlice(m, "fcm_tokens"),
		LastUsedLocationID: getString(m, "last_used_location_id"),
		Integrations:       make(map[string]*types.IntegrationTokens),
	}
	if integrations, ok := m["integrations"].(map[string]interface{}); ok {
		for name, raw := range integrations {
			tokMap, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			u.Integrations[name] = &types.IntegrationTokens{
				AccessToken:   getString(tokMap, "access_token"),
				RefreshToken:  getString(tokMap, "refresh_token"),
				Expiry:        getTime(tokMap, "expiry"),
				GrantedScopes: getStringSlice(tokMap, "granted_scopes"),
			}
		}
	}
	return u
}

// --- SessionRecord Converters ---

func SessionToFirestore(s *types.SessionRecord) map[string]interface{} {
	return map[string]interface{}{
		"session_id":          s.SessionID,
		"name":                s.Name,
		"started_at":          s.StartedAt,
		"duration_minutes":    s.DurationMinutes,
		"location_profile_id": s.LocationProfileID,
	}
}

func FirestoreToSession(m map[string]interface{}) *types.SessionRecord {
	return &types.SessionRecord{
		SessionID:         getString(m, "session_id"),
		Name:              getString(m, "name"),
		StartedAt:         getTime(m, "started_at"),
		DurationMinutes:   getInt(m, "duration_minutes"),
		LocationProfileID: getString(m, "location_profile_id"),
	}
}

// --- LocationProfileRecord Converters ---

func LocationProfileToFirestore(p *types.LocationProfileRecord) map[string]interface{} {
	return map[string]interface{}{
		"profile_id":     p.ProfileID,
		"name":           p.Name,
		"address":        p.Address,
		"latitude":       p.Latitude,
		"longitude":      p.Longitude,
		"has_coordinate": p.HasCoordinate,
		"deleted":        p.Deleted,
	}
}

func FirestoreToLocationProfile(m map[string]interface{}) *types.LocationProfileRecord {
	return &types.LocationProfileRecord{
		ProfileID:     getString(m, "profile_id"),
		Name:          getString(m, "name"),
		Address:       getString(m, "address"),
		Latitude:      getFloat(m, "latitude"),
		Longitude:     getFloat(m, "longitude"),
		HasCoordinate: getBool(m, "has_coordinate"),
		Deleted:       getBool(m, "deleted"),
	}
}

// --- SyncCacheRecord Converters ---

func SyncCacheToFirestore(c *types.SyncCacheRecord) map[string]interface{} {
	return map[string]interface{}{
		"session_id":         c.SessionID,
		"external_record_id": c.ExternalRecordID,
		"latitude":           c.Latitude,
		"longitude":          c.Longitude,
		"has_coordinate":     c.HasCoordinate,
	}
}

func FirestoreToSyncCache(m map[string]interface{}) *types.SyncCacheRecord {
	return &types.SyncCacheRecord{
		SessionID:        getString(m, "session_id"),
		ExternalRecordID: getString(m, "external_record_id"),
		Latitude:         getFloat(m, "latitude"),
		Longitude:        getFloat(m, "longitude"),
		HasCoordinate:    getBool(m, "has_coordinate"),
	}
}

// --- RunRecord Converters ---

func RunToFirestore(r *types.RunRecord) map[string]interface{} {
	return map[string]interface{}{
		"run_id":       r.RunID,
		"user_id":      r.UserID,
		"service":      r.Service,
		"trigger_type": r.TriggerType,
		"status":       string(r.Status),
		"error":        r.Error,
		"started_at":   r.StartedAt,
		"completed_at": r.CompletedAt,
		"outputs":      r.Outputs,
	}
}

func FirestoreToRun(m map[string]interface{}) *types.RunRecord {
	r := &types.RunRecord{
		RunID:       getString(m, "run_id"),
		UserID:      getString(m, "user_id"),
		Service:     getString(m, "service"),
		TriggerType: getString(m, "trigger_type"),
		Status:      types.RunStatus(getString(m, "status")),
		Error:       getString(m, "error"),
		StartedAt:   getTime(m, "started_at"),
		CompletedAt: getTime(m, "completed_at"),
	}
	if outputs, ok := m["outputs"].(map[string]interface{}); ok {
		r.Outputs = outputs
	}
	return r
}
