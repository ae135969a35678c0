package reconcile

import "sort"

// buildReport aggregates one run's outcomes into totals and per-reason skip
// counts. Items are sorted by session date descending for display.
func buildReport(runID string, outcomes []MatchOutcome, routePermissionUnavailable bool) *RunReport {
	report := &RunReport{
		RunID:                      runID,
		Attempted:                  len(outcomes),
		RoutePermissionUnavailable: routePermissionUnavailable,
		Items:                      make([]MatchOutcome, len(outcomes)),
	}
	copy(report.Items, outcomes)
	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].SessionDate.After(report.Items[j].SessionDate)
	})

	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeAssigned:
			report.Assigned++
		case OutcomeSkipped:
			switch o.Skip {
			case SkipNoMatchingRecord:
				report.SkippedNoRecord++
			case SkipNoRouteLocation:
				report.SkippedNoRouteLocation++
			case SkipNoNearbyLocation:
				report.SkippedNoNearbyLocation++
			case SkipProfilesMissingLocations:
				report.SkippedProfilesMissingLocations++
			}
		}
	}
	return report
}
