package reconcile

import "math"

// MaxLocationDistanceMeters is the assignment threshold. A profile at exactly
// this distance still matches; anything beyond it does not.
const MaxLocationDistanceMeters = 250.0

// nearestProfile returns the closest profile to coord within
// MaxLocationDistanceMeters. The bool result is false when no profile
// qualifies; callers must handle the empty-directory case separately (it has
// its own skip reason).
func nearestProfile(coord Coordinate, profiles map[string]Coordinate) (string, float64, bool) {
	bestID := ""
	bestDist := math.Inf(1)

	for id, pc := range profiles {
		d := haversineMeters(coord, pc)
		// Tie-break on id so map iteration order cannot change the result.
		if d < bestDist || (d == bestDist && id < bestID) {
			bestID = id
			bestDist = d
		}
	}

	if bestID == "" || bestDist > MaxLocationDistanceMeters {
		return "", 0, false
	}
	return bestID, bestDist, true
}

// haversineMeters computes the great-circle distance between two points in
// meters using the Haversine formula.
func haversineMeters(a, b Coordinate) float64 {
	const earthRadiusM = 6371000.0

	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
