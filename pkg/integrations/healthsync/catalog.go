package healthsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/realronaldrump/workout-app-sub000/pkg/infrastructure/oauth"
	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
)

// Catalog adapts the HealthSync API to the reconciler's catalog contract.
type Catalog struct {
	client *Client
	tokens oauth.TokenSource
	logger *slog.Logger
}

func NewCatalog(client *Client, tokens oauth.TokenSource, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{client: client, tokens: tokens, logger: logger}
}

// RequestAuthorization verifies the user still has a usable catalog token.
func (c *Catalog) RequestAuthorization(ctx context.Context) error {
	if _, err := c.tokens.Token(ctx); err != nil {
		return fmt.Errorf("healthsync authorization: %w", err)
	}
	return nil
}

// RequestRouteAuthorization checks the route scope on the stored grant.
// Missing scope surfaces as ErrRoutePermission so the run degrades to
// cache-only matching instead of aborting.
func (c *Catalog) RequestRouteAuthorization(ctx context.Context) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("healthsync authorization: %w", err)
	}
	for _, scope := range token.Scopes {
		if scope == ScopeRoutesRead {
			return nil
		}
	}
	return reconcile.ErrRoutePermission
}

// QueryRecords lists workouts in the window. Records with malformed
// timestamps are dropped with a warning rather than failing the query.
func (c *Catalog) QueryRecords(ctx context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
	workouts, err := c.client.ListWorkouts(ctx, oldest, newest)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	records := make([]reconcile.ExternalRecord, 0, len(workouts))
	for _, w := range workouts {
		start, err := time.Parse(time.RFC3339, w.StartDate)
		if err != nil {
			c.logger.Warn("Workout has unparseable start date, skipped", "workout_id", w.ID, "start_date", w.StartDate)
			continue
		}
		end := start
		if w.EndDate != "" {
			if parsed, err := time.Parse(time.RFC3339, w.EndDate); err == nil {
				end = parsed
			}
		}
		records = append(records, reconcile.ExternalRecord{ID: w.ID, Start: start, End: end})
	}
	return records, nil
}

// FetchRouteStart downloads the workout's route FIT file and returns the
// first recorded GPS position. A workout without a route yields (nil, nil);
// a 401/403 from the route endpoint yields ErrRoutePermission.
func (c *Catalog) FetchRouteStart(ctx context.Context, recordID string) (*reconcile.Coordinate, error) {
	data, err := c.client.DownloadRouteFIT(ctx, recordID)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, reconcile.ErrRoutePermission
			case http.StatusNotFound:
				return nil, nil
			}
		}
		return nil, fmt.Errorf("download route: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	coord, err := firstPosition(data)
	if err != nil {
		c.logger.Warn("Failed to decode route file", "workout_id", recordID, "error", err)
		return nil, nil
	}
	return coord, nil
}

// firstPosition decodes a FIT file and returns the first record message
// carrying a valid position, nil when the route has no GPS data.
func firstPosition(data []byte) (*reconcile.Coordinate, error) {
	fitDec := decoder.New(bytes.NewReader(data))

	for fitDec.Next() {
		fitData, err := fitDec.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIT file: %w", err)
		}

		for i := range fitData.Messages {
			msg := &fitData.Messages[i]
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			recordMsg := mesgdef.NewRecord(msg)
			// FIT uses semicircles, 0x7FFFFFFF marks an absent position.
			if recordMsg.PositionLat == 0x7FFFFFFF || recordMsg.PositionLong == 0x7FFFFFFF {
				continue
			}
			const semicircleConst = 11930464.7111 // 2^31 / 180
			return &reconcile.Coordinate{
				Lat: float64(recordMsg.PositionLat) / semicircleConst,
				Lon: float64(recordMsg.PositionLong) / semicircleConst,
			}, nil
		}
	}

	return nil, nil
}
