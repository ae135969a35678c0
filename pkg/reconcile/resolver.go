package reconcile

import (
	"context"
	"errors"
	"log/slog"
)

// routeResolver memoizes route-start lookups for one run. A record's
// coordinate is fetched at most once regardless of how many sessions map to
// it; "no route available" is cached the same way as a real coordinate.
type routeResolver struct {
	catalog Catalog
	logger  *slog.Logger

	coords map[string]*Coordinate // by record id; nil value = known no-route

	// permissionUnavailable latches once any fetch fails with
	// ErrRoutePermission and stays set for the rest of the run.
	permissionUnavailable bool
}

func newRouteResolver(catalog Catalog, logger *slog.Logger) *routeResolver {
	return &routeResolver{
		catalog: catalog,
		logger:  logger,
		coords:  make(map[string]*Coordinate),
	}
}

// startCoordinate returns the starting coordinate for a matched record, or
// the cache entry's coordinate when one exists (no network access). Fetch
// failures never abort the run; they resolve to "no coordinate".
func (r *routeResolver) startCoordinate(ctx context.Context, recordID string, cached *CacheEntry) *Coordinate {
	if cached != nil && cached.Coordinate != nil {
		return cached.Coordinate
	}

	if coord, seen := r.coords[recordID]; seen {
		return coord
	}

	if r.permissionUnavailable {
		// No point retrying the platform once it has denied route access.
		r.coords[recordID] = nil
		return nil
	}

	coord, err := r.catalog.FetchRouteStart(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrRoutePermission) {
			r.logger.Warn("Route permission unavailable, continuing without route lookups", "record_id", recordID)
			r.permissionUnavailable = true
		} else {
			r.logger.Warn("Route start fetch failed", "record_id", recordID, "error", err)
		}
		coord = nil
	}

	r.coords[recordID] = coord
	return coord
}
