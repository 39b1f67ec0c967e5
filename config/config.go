// Package config loads the service configuration from YAML or JSON files
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/carelink/dispatchd/core/dispatch"
	"github.com/carelink/dispatchd/infra/mqtt"
)

type Config struct {
	Server   ServerConfig    `json:"server"`
	Dispatch dispatch.Config `json:"dispatch"`
	History  HistoryConfig   `json:"history"`
	Metrics  MetricsConfig   `json:"metrics"`
	MQTT     mqtt.Config     `json:"mqtt"`
}

// Load reads the file at path and applies D_-prefixed environment
// overrides, e.g. D_SERVER__ADDR for server.addr.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("D_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "d_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.History.SetDefaults()
	if err := cfg.History.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
