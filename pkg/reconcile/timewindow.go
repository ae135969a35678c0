package reconcile

import (
	"math"
	"time"
)

const (
	// StrictTolerance is the default maximum start-time difference between a
	// session and a candidate record.
	StrictTolerance = 20 * time.Minute
	// RelaxedTolerance widens the search when strict matching finds nothing.
	RelaxedTolerance = 12 * time.Hour

	// overlapWeight rewards candidates whose recorded span overlaps the
	// session's estimated window.
	overlapWeight = 0.25
)

// bestRecordMatch returns the candidate whose start time is within tolerance
// of the session's window start and whose score is lowest. Score is the start
// difference in seconds minus overlapWeight times the overlap in seconds, so
// a closer start wins and overlapping spans break near-ties. On equal scores
// the first-encountered candidate is kept, so callers must preserve the
// catalog's result ordering.
func bestRecordMatch(session LoggedSession, records []ExternalRecord, tolerance time.Duration) (ExternalRecord, bool) {
	winStart, winEnd := session.EstimatedWindow()

	var best ExternalRecord
	bestScore := math.Inf(1)
	found := false

	for _, rec := range records {
		diff := rec.Start.Sub(winStart)
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}

		score := diff.Seconds() - overlapWeight*overlapSeconds(rec.Start, rec.End, winStart, winEnd)
		if score < bestScore {
			best = rec
			bestScore = score
			found = true
		}
	}
	return best, found
}

// overlapSeconds returns the duration of intersection of [aStart, aEnd] and
// [bStart, bEnd] in seconds, 0 when disjoint.
func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}

// matchRecord picks the external record for a session. A cache entry naming a
// record present in the candidate set short-circuits time matching entirely;
// otherwise the strict tolerance is tried first and the relaxed tolerance only
// when strict matching finds nothing.
func matchRecord(session LoggedSession, records []ExternalRecord, cached *CacheEntry) (ExternalRecord, bool) {
	if cached != nil && cached.RecordID != "" {
		for _, rec := range records {
			if rec.ID == cached.RecordID {
				return rec, true
			}
		}
	}

	if rec, ok := bestRecordMatch(session, records, StrictTolerance); ok {
		return rec, true
	}
	return bestRecordMatch(session, records, RelaxedTolerance)
}
