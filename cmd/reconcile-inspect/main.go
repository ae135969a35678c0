// reconcile-inspect replays a reconciliation run against a local JSON
// fixture, printing what would be assigned without touching Firestore or
// the catalog API. Useful for debugging matcher behavior:
//
//	go run ./cmd/reconcile-inspect -fixture testdata/run.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/realronaldrump/workout-app-sub000/pkg/reconcile"
)

type fixture struct {
	Sessions []struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		StartedAt       time.Time `json:"started_at"`
		DurationMinutes int       `json:"duration_minutes"`
	} `json:"sessions"`
	Records []struct {
		ID    string    `json:"id"`
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"records"`
	Profiles []struct {
		ID   string  `json:"id"`
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	} `json:"profiles"`
	Cache []struct {
		SessionID     string  `json:"session_id"`
		RecordID      string  `json:"record_id"`
		Lat           float64 `json:"lat"`
		Lon           float64 `json:"lon"`
		HasCoordinate bool    `json:"has_coordinate"`
	} `json:"cache"`
	Routes          map[string][2]float64 `json:"routes"` // record id -> [lat, lon]
	RoutePermission bool                  `json:"route_permission"`
}

type fixtureCatalog struct {
	fix *fixture
}

func (c *fixtureCatalog) RequestAuthorization(context.Context) error { return nil }

func (c *fixtureCatalog) RequestRouteAuthorization(context.Context) error {
	if !c.fix.RoutePermission {
		return reconcile.ErrRoutePermission
	}
	return nil
}

func (c *fixtureCatalog) QueryRecords(_ context.Context, oldest, newest time.Time) ([]reconcile.ExternalRecord, error) {
	var records []reconcile.ExternalRecord
	for _, r := range c.fix.Records {
		if r.Start.Before(oldest) || r.Start.After(newest) {
			continue
		}
		end := r.End
		if end.IsZero() {
			end = r.Start
		}
		records = append(records, reconcile.ExternalRecord{ID: r.ID, Start: r.Start, End: end})
	}
	return records, nil
}

func (c *fixtureCatalog) FetchRouteStart(_ context.Context, recordID string) (*reconcile.Coordinate, error) {
	pos, ok := c.fix.Routes[recordID]
	if !ok {
		return nil, nil
	}
	return &reconcile.Coordinate{Lat: pos[0], Lon: pos[1]}, nil
}

type fixtureDirectory struct {
	fix *fixture
}

func (d *fixtureDirectory) ResolveCoordinates(context.Context) (map[string]reconcile.Coordinate, error) {
	coords := make(map[string]reconcile.Coordinate, len(d.fix.Profiles))
	for _, p := range d.fix.Profiles {
		coords[p.ID] = reconcile.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return coords, nil
}

func (d *fixtureDirectory) ProfileName(profileID string) string {
	for _, p := range d.fix.Profiles {
		if p.ID == profileID {
			return p.Name
		}
	}
	return ""
}

func (d *fixtureDirectory) UpsertProfile(context.Context, string, string, reconcile.Coordinate) (string, error) {
	return "", fmt.Errorf("not supported in replay mode")
}

type fixtureCache struct {
	fix *fixture
}

func (c *fixtureCache) Entry(_ context.Context, sessionID string) (*reconcile.CacheEntry, error) {
	for _, e := range c.fix.Cache {
		if e.SessionID != sessionID {
			continue
		}
		entry := &reconcile.CacheEntry{SessionID: e.SessionID, RecordID: e.RecordID}
		if e.HasCoordinate {
			entry.Coordinate = &reconcile.Coordinate{Lat: e.Lat, Lon: e.Lon}
		}
		return entry, nil
	}
	return nil, nil
}

// dryRunSink collects assignments instead of writing them anywhere.
type dryRunSink struct {
	assignments map[string]string
	lastUsed    string
}

func (s *dryRunSink) ApplyAssignments(_ context.Context, assignments map[string]string) error {
	s.assignments = assignments
	return nil
}

func (s *dryRunSink) SetLastUsedLocation(_ context.Context, profileID string) error {
	s.lastUsed = profileID
	return nil
}

func main() {
	fixturePath := flag.String("fixture", "", "path to JSON fixture")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile-inspect -fixture <file.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fixture: %v\n", err)
		os.Exit(1)
	}

	var fix fixture
	if err := json.Unmarshal(data, &fix); err != nil {
		fmt.Fprintf(os.Stderr, "parse fixture: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	targets := make([]reconcile.LoggedSession, 0, len(fix.Sessions))
	for _, s := range fix.Sessions {
		targets = append(targets, reconcile.LoggedSession{
			ID:        s.ID,
			Name:      s.Name,
			StartedAt: s.StartedAt,
			Duration:  time.Duration(s.DurationMinutes) * time.Minute,
		})
	}

	sink := &dryRunSink{}
	runner := reconcile.NewRunner(
		&fixtureCatalog{fix: &fix},
		&fixtureDirectory{fix: &fix},
		&fixtureCache{fix: &fix},
		sink,
		logger,
		func(fraction float64) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "progress: %.0f%%\n", fraction*100)
			}
		},
	)

	report, err := runner.Run(context.Background(), "replay", targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Attempted: %d  Assigned: %d\n", report.Attempted, report.Assigned)
	if report.RoutePermissionUnavailable {
		fmt.Println("Route permission unavailable: matching used cached coordinates only")
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tDATE\tRESULT\tDETAIL")
	for _, item := range report.Items {
		name := item.SessionName
		if name == "" {
			name = item.SessionID
		}
		switch item.Kind {
		case reconcile.OutcomeAssigned:
			fmt.Fprintf(w, "%s\t%s\tassigned\t%s (%.0fm)\n",
				name, item.SessionDate.Format("2006-01-02 15:04"), item.LocationName, item.DistanceMeters)
		case reconcile.OutcomeSkipped:
			fmt.Fprintf(w, "%s\t%s\tskipped\t%s\n",
				name, item.SessionDate.Format("2006-01-02 15:04"), item.Skip.Message(report.RoutePermissionUnavailable))
		}
	}
	w.Flush()

	if fallback := runner.Fallback().Candidates(); len(fallback) > 0 {
		fmt.Printf("\n%d session(s) queued for manual resolution\n", len(fallback))
	}
}
