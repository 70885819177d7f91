package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Airtable  *airtableConfig
	Providers *providerConfig
	Service   *svcConfig
}

type airtableConfig struct {
	APIKey string `envconfig:"AIRTABLE_API_KEY" default:""`
	BaseID string `envconfig:"AIRTABLE_BASE_ID" default:""`
}

type providerConfig struct {
	ApifyAPIKey     string `envconfig:"APIFY_API_KEY" default:""`
	FalAPIKey       string `envconfig:"FAL_API_KEY" default:""`
	WavespeedAPIKey string `envconfig:"WAVESPEED_API_KEY" default:""`
}

type svcConfig struct {
	Address        string        `envconfig:"REPLICATOR_ADDRESS" default:":8080"`
	MetricsAddress string        `envconfig:"REPLICATOR_METRICS_ADDRESS" default:":8081"`
	LogLevel       string        `envconfig:"REPLICATOR_LOG_LEVEL" default:"info"`
	PollInterval   time.Duration `envconfig:"REPLICATOR_POLL_INTERVAL" default:"60s"`
	MaxConcurrent  int           `envconfig:"REPLICATOR_MAX_CONCURRENT" default:"2"`
}

// New loads the configuration from the environment. A local .env file is
// honored when present so the batch command can run outside a container.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns a configuration carrying the struct defaults, without
// consulting a .env file. Used by tests.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks that the credentials without which no job can run are
// present. Provider keys for image/video generation are checked later, at
// adapter construction, because only one of the two providers is selected.
func (c *Config) Validate() error {
	missing := []string{}
	if c.Airtable.APIKey == "" {
		missing = append(missing, "AIRTABLE_API_KEY")
	}
	if c.Airtable.BaseID == "" {
		missing = append(missing, "AIRTABLE_BASE_ID")
	}
	if c.Providers.ApifyAPIKey == "" {
		missing = append(missing, "APIFY_API_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing configuration: " + strings.Join(missing, ", "))
	}
	if c.Service.MaxConcurrent < 1 {
		return errors.New("REPLICATOR_MAX_CONCURRENT must be at least 1")
	}
	return nil
}
