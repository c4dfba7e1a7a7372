package util

import "math"

// DistributionStats summarises how evenly values (e.g. entries per shard) are spread.
type DistributionStats struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDeviation float64 `json:"std_deviation"`
	MinMaxRatio  float64 `json:"min_max_ratio"` // 1.0 means perfectly even
}

// NewDistributionStats computes DistributionStats for values.
// An empty input yields the zero value.
func NewDistributionStats(values []float64) DistributionStats {
	if len(values) == 0 {
		return DistributionStats{}
	}

	stats := DistributionStats{Min: values[0], Max: values[0], MinMaxRatio: 1.0}

	var sum float64
	for _, v := range values {
		sum += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Mean = sum / float64(len(values))

	var squaredDiffs float64
	for _, v := range values {
		diff := v - stats.Mean
		squaredDiffs += diff * diff
	}
	stats.StdDeviation = math.Sqrt(squaredDiffs / float64(len(values)))

	if stats.Max > 0 {
		stats.MinMaxRatio = stats.Min / stats.Max
	}

	return stats
}
