package domain

// Default AutoCluster thresholds.
const (
	DefaultMaxDistanceKm   = 50
	DefaultMaxTimeGapHours = 24
	DefaultMinSize         = 3
)

// ClusterOptions are the caller-supplied thresholds for AutoCluster.
// All three must be positive.
type ClusterOptions struct {
	MaxDistanceKm   float64 `json:"max_distance_km" validate:"gt=0"`
	MaxTimeGapHours float64 `json:"max_time_gap_hours" validate:"gt=0"`
	MinSize         int     `json:"min_size" validate:"gt=0"`
}

// DefaultClusterOptions returns 50 km, 24 h, 3 photos.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		MaxDistanceKm:   DefaultMaxDistanceKm,
		MaxTimeGapHours: DefaultMaxTimeGapHours,
		MinSize:         DefaultMinSize,
	}
}
