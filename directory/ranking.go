package directory

import (
	"math"
	"sort"

	"github.com/playergold/playergold-bootstrap-core/structures"
)

// Candidate score is a weighted blend of four normalized components. Closer,
// faster, more stable and more active nodes sort first.
const (
	PROXIMITY_WEIGHT = 0.35
	LATENCY_WEIGHT   = 0.25
	UPTIME_WEIGHT    = 0.25
	ACTIVITY_WEIGHT  = 0.15
)

const EARTH_RADIUS_KM = 6371.0

// RankNetworkMap filters out self and malformed records, then orders the rest
// by descending connection score.
func RankNetworkMap(records []structures.DirectoryNodeRecord, config *structures.NodeLevelConfig) []structures.DirectoryNodeRecord {

	type scoredRecord struct {
		record structures.DirectoryNodeRecord

		score float64
	}

	scored := make([]scoredRecord, 0, len(records))

	for _, record := range records {

		if record.NodeId == "" || record.NodeId == config.PublicKey {
			continue
		}

		if record.PublicIp == "" || record.Port < 1 || record.Port > 65535 {
			continue
		}

		scored = append(scored, scoredRecord{record: record, score: ScoreDirectoryNode(record, config.Latitude, config.Longitude)})

	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	ranked := make([]structures.DirectoryNodeRecord, 0, len(scored))

	for _, entry := range scored {
		ranked = append(ranked, entry.record)
	}

	return ranked
}

func ScoreDirectoryNode(record structures.DirectoryNodeRecord, localLatitude, localLongitude float64) float64 {

	distanceKm := HaversineKm(localLatitude, localLongitude, record.Latitude, record.Longitude)

	proximityScore := 1.0 / (1.0 + distanceKm/1000.0)

	latencyScore := 1.0 / (1.0 + math.Max(record.NetworkLatency, 0)/100.0)

	uptimeScore := math.Min(math.Max(record.UptimePercentage/100.0, 0), 1.0)

	activityScore := math.Min(float64(record.ConnectedPeers), 10) / 20.0

	if record.MiningActive {
		activityScore += 0.5
	}

	return PROXIMITY_WEIGHT*proximityScore + LATENCY_WEIGHT*latencyScore + UPTIME_WEIGHT*uptimeScore + ACTIVITY_WEIGHT*activityScore
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {

	lat1Rad := lat1 * math.Pi / 180

	lat2Rad := lat2 * math.Pi / 180

	deltaLat := (lat2 - lat1) * math.Pi / 180

	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return 2 * EARTH_RADIUS_KM * math.Asin(math.Sqrt(a))
}
