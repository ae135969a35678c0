package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/realronaldrump/workout-app-sub000/pkg/bootstrap"
	"github.com/realronaldrump/workout-app-sub000/pkg/execution"
	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/sentry"
	"github.com/realronaldrump/workout-app-sub000/pkg/types"
)

// FrameworkContext contains dependencies injected by the framework.
type FrameworkContext struct {
	Service *bootstrap.Service
	Logger  *slog.Logger
	UserID  string
	RunID   string
}

// HandlerFunc is the signature for a cloud function handler.
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (map[string]interface{}, error)

// WrapCloudEvent wraps a handler with structured logging, run audit records
// and error reporting.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		userID := extractUserID(e)

		logLevelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
		var logLevel slog.Level
		switch logLevelStr {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}

		opts := bootstrap.GetSlogHandlerOptions(logLevel)
		logger := slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", serviceName)
		if userID != "" {
			logger = logger.With("user_id", userID)
		}

		runID, err := execution.LogStart(ctx, svc.DB, serviceName, execution.RunOptions{
			UserID:      userID,
			TriggerType: "pubsub",
		})
		if err != nil {
			// Don't fail the function just because auditing failed.
			logger.Error("Failed to log run start", "error", err)
		}

		logger = logger.With("run_id", runID)
		logger.Info("Function started")

		fwCtx := &FrameworkContext{
			Service: svc,
			Logger:  logger,
			UserID:  userID,
			RunID:   runID,
		}

		outputs, handlerErr := handler(ctx, e, fwCtx)

		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr)
			sentry.CaptureException(handlerErr, map[string]interface{}{
				"service": serviceName,
				"user_id": userID,
				"run_id":  runID,
			}, logger)
			sentry.Flush()
			if logErr := execution.LogFailure(ctx, svc.DB, userID, runID, handlerErr, outputs); logErr != nil {
				logger.Warn("Failed to log run failure", "error", logErr)
			}
			return handlerErr
		}

		logger.Info("Function completed successfully")
		if logErr := execution.LogSuccess(ctx, svc.DB, userID, runID, outputs); logErr != nil {
			logger.Warn("Failed to log run success", "error", logErr)
		}
		return nil
	}
}

// extractUserID pulls the user id out of a Pub/Sub-triggered CloudEvent.
func extractUserID(e event.Event) string {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Message.Data, &payload); err != nil {
		return ""
	}
	if uid, ok := payload["user_id"].(string); ok {
		return uid
	}
	return ""
}
