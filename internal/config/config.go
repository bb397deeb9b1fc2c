package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API  APIConfig  `yaml:"api"`
	Live LiveConfig `yaml:"live"`
	Push PushConfig `yaml:"push"`
	Log  LogConfig  `yaml:"log"`
}

type APIConfig struct {
	// Origin is the base URL of the booking API, e.g. "https://api.example.com"
	// or "http://127.0.0.1:8080".
	Origin string `yaml:"origin"`
	// PageOrigin is the origin the application itself is served from, used by
	// the same-origin preference when resolving the live endpoint. Empty means
	// no page origin is known and the API origin is used as-is.
	PageOrigin string `yaml:"page_origin"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LiveConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type PushConfig struct {
	// ProjectID identifies the push project when requesting a device token.
	ProjectID string `yaml:"project_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config at path, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, for callers that run without a
// config file.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			Origin:  "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Live: LiveConfig{
			ReconnectDelay: 3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.origin %q is not an absolute URL", c.API.Origin)
	}
	if c.API.PageOrigin != "" {
		if pu, err := url.Parse(c.API.PageOrigin); err != nil || pu.Host == "" {
			return fmt.Errorf("api.page_origin %q is not an absolute URL", c.API.PageOrigin)
		}
	}
	if c.Live.ReconnectDelay <= 0 {
		return fmt.Errorf("live.reconnect_delay must be positive, got %v", c.Live.ReconnectDelay)
	}
	return nil
}
