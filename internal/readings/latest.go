package readings

import (
	"slices"
	"strings"

	"github.com/septivank/sensor-telemetry-api/internal/db"
)

// LatestPerSensor keeps the newest reading of each sensor, sorted by sensor id.
// When two readings of a sensor share the newest timestamp the higher id wins.
func LatestPerSensor(all []db.SensorReading) []db.SensorReading {
	latest := make(map[string]db.SensorReading, len(all))
	for _, r := range all {
		if cur, ok := latest[r.SensorID]; !ok || supersedes(r, cur) {
			latest[r.SensorID] = r
		}
	}

	out := make([]db.SensorReading, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b db.SensorReading) int {
		return strings.Compare(a.SensorID, b.SensorID)
	})
	return out
}

func supersedes(candidate, current db.SensorReading) bool {
	if !candidate.Timestamp.Equal(current.Timestamp) {
		return candidate.Timestamp.After(current.Timestamp)
	}
	return candidate.ID > current.ID
}
