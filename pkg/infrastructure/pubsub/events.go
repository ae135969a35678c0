package pubsub

import (
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Event types published by the reconciler.
const (
	EventTypeReconcileProgress = "app.workout.reconcile.progress.v1"
	EventTypeReconcileReport   = "app.workout.reconcile.report.v1"
	EventTypeReconcileFallback = "app.workout.reconcile.fallback.v1"
)

// NewCloudEvent creates a standardized CloudEvent v1.0
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion("1.0")
	e.SetType(eventType)
	e.SetSource(source)

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}

	return e, nil
}

// ProgressEvent is the payload of EventTypeReconcileProgress.
type ProgressEvent struct {
	UserID   string  `json:"user_id"`
	RunID    string  `json:"run_id"`
	Fraction float64 `json:"fraction"`
}
