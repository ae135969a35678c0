package shared

const (
	ProjectID = "workout-app-project" // Can be overridden by env var in main if needed

	TopicReconcileRequest  = "topic-reconcile-request"
	TopicReconcileProgress = "topic-reconcile-progress"
	TopicReconcileReport   = "topic-reconcile-report"

	CollectionUsers            = "users"
	CollectionSessions         = "sessions"
	CollectionLocationProfiles = "location_profiles"
	CollectionSyncCache        = "sync_cache"
	CollectionRuns             = "runs"
)
