package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/scribe/relay"
)

// Config holds the full server configuration.
type Config struct {
	Addr   string       `yaml:"addr"`
	DBPath string       `yaml:"db_path"`
	Relay  relay.Config `yaml:"relay"`
}

func defaultConfig() Config {
	return Config{
		Addr:   ":8080",
		DBPath: "scribe.db",
	}
}

// loadConfig reads the YAML config file when present and applies environment
// overrides on top.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("SCRIBE_API_KEY"); v != "" {
		cfg.Relay.APIKey = v
	}
	if v := os.Getenv("SCRIBE_API_URL"); v != "" {
		cfg.Relay.BaseURL = v
	}
	if v := os.Getenv("SCRIBE_MODEL"); v != "" {
		cfg.Relay.Model = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	return cfg, nil
}
