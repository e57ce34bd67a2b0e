package structures

// ConnectionAttempt is an append-only diagnostic record of one peer-connection
// try. The storage layer keeps only the most recent window of records.
type ConnectionAttempt struct {
	TargetId  string `json:"targetId"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Timestamp int64  `json:"timestamp"`
}

type ConnectionAttemptStats struct {
	TotalAttempts    int     `json:"totalAttempts"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"successRate"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
}

func BuildConnectionAttemptStats(attempts []ConnectionAttempt) ConnectionAttemptStats {

	stats := ConnectionAttemptStats{TotalAttempts: len(attempts)}

	if len(attempts) == 0 {
		return stats
	}

	var latencySum int64

	for _, attempt := range attempts {

		if attempt.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}

		latencySum += attempt.LatencyMs

	}

	stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalAttempts)
	stats.AverageLatencyMs = float64(latencySum) / float64(stats.TotalAttempts)

	return stats
}
