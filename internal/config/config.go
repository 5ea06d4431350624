package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gechoice/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Host struct {
		Key string `yaml:"key"`
	} `yaml:"host"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		ID  string `yaml:"id"`
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Questions []domain.RawQuestion `yaml:"questions"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CatalogID returns the configured catalog id or "default".
func (c Config) CatalogID() string {
	if c.Catalog.ID != "" {
		return c.Catalog.ID
	}
	return "default"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
