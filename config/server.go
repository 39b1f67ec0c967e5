package config

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	// Addr is the API listen address.
	Addr string `json:"addr"`
	// AuthToken enables a static bearer-token check when non-empty.
	AuthToken string `json:"auth_token"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
