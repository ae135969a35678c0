// Package execution writes run audit records so every reconciliation run is
// traceable after the fact.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// RunOptions carries optional metadata recorded with a run.
type RunOptions struct {
	UserID      string
	TriggerType string
}

// LogStart creates a STARTED run record and returns its id.
func LogStart(ctx context.Context, db shared.Database, service string, opts RunOptions) (string, error) {
	runID := uuid.NewString()
	record := &types.RunRecord{
		RunID:       runID,
		UserID:      opts.UserID,
		Service:     service,
		TriggerType: opts.TriggerType,
		Status:      types.RunStatusStarted,
		StartedAt:   time.Now().UTC(),
	}
	if err := db.SetRun(ctx, opts.UserID, record); err != nil {
		return runID, err
	}
	return runID, nil
}

// LogSuccess marks the run SUCCESS and stores the handler outputs.
func LogSuccess(ctx context.Context, db shared.Database, userID, runID string, outputs map[string]interface{}) error {
	return db.UpdateRun(ctx, userID, runID, map[string]interface{}{
		"status":       string(types.RunStatusSuccess),
		"completed_at": time.Now().UTC(),
		"outputs":      outputs,
	})
}

// LogFailure marks the run FAILED with the error message.
func LogFailure(ctx context.Context, db shared.Database, userID, runID string, runErr error, outputs map[string]interface{}) error {
	data := map[string]interface{}{
		"status":       string(types.RunStatusFailed),
		"completed_at": time.Now().UTC(),
		"error":        runErr.Error(),
	}
	if outputs != nil {
		data["outputs"] = outputs
	}
	return db.UpdateRun(ctx, userID, runID, data)
}

// LogAborted marks the run ABORTED. Used when a run is refused before any
// work happens, e.g. another run is already in flight.
func LogAborted(ctx context.Context, db shared.Database, userID, runID, reason string) error {
	return db.UpdateRun(ctx, userID, runID, map[string]interface{}{
		"status":       string(types.RunStatusAborted),
		"completed_at": time.Now().UTC(),
		"error":        reason,
	})
}
