package dispatch

// Config defines dispatch-related settings.
type Config struct {
	// AverageSpeedKmh feeds the flat-speed ETA estimate.
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
	// DefaultRadiusKm bounds candidate searches when the caller gives none.
	DefaultRadiusKm float64 `json:"default_radius_km"`
	// CandidateLimit caps ranked results when the caller gives none.
	CandidateLimit int `json:"candidate_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.AverageSpeedKmh <= 0 {
		c.AverageSpeedKmh = 40
	}
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = 25
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 10
	}
}
