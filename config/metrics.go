package config

// MetricsConfig wires the observability sinks.
type MetricsConfig struct {
	// PrometheusAddr exposes /metrics when non-empty, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr"`
	// Influx enables the InfluxDB outcome sink.
	Influx InfluxConfig `json:"influx"`
}

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}
