package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file, expands environment variables,
// applies defaults and validates the result.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.MinIntervalHours == 0 {
		cfg.Watch.MinIntervalHours = 3.5
	}
	if cfg.Watch.MaxIntervalHours == 0 {
		cfg.Watch.MaxIntervalHours = 4.5
	}
	if cfg.Watch.CadenceHours == 0 {
		cfg.Watch.CadenceHours = 2
	}
	if cfg.Watch.PostsPerAccount == 0 {
		cfg.Watch.PostsPerAccount = 10
	}
	if cfg.Watch.MinConfidence == 0 {
		cfg.Watch.MinConfidence = 90
	}
	if cfg.Watch.JitterSeconds == 0 {
		cfg.Watch.JitterSeconds = 3
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelaySeconds == 0 {
		cfg.Retry.BaseDelaySeconds = 2
	}
	if cfg.Cache.SweepIntervalHours == 0 {
		cfg.Cache.SweepIntervalHours = 1
	}
	if cfg.Cache.VerdictTTLHours == 0 {
		cfg.Cache.VerdictTTLHours = 24 * 7
	}
	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = 15
	}
	if cfg.Classifier.TimeoutSeconds == 0 {
		cfg.Classifier.TimeoutSeconds = 60
	}
	if cfg.PIDFile == "" {
		cfg.PIDFile = "/tmp/postwatch.pid"
	}
}

// Validate enforces the configuration bounds. Violations are fatal at startup.
func (cfg *AppConfig) Validate() error {
	w := cfg.Watch
	if w.MinIntervalHours < 1 {
		return fmt.Errorf("watch.min_interval_hours must be >= 1, got %v", w.MinIntervalHours)
	}
	if w.MinIntervalHours >= w.MaxIntervalHours {
		return fmt.Errorf(
			"watch.min_interval_hours (%v) must be < watch.max_interval_hours (%v)",
			w.MinIntervalHours, w.MaxIntervalHours,
		)
	}
	if w.CadenceHours < 0.5 {
		return fmt.Errorf("watch.cadence_hours must be >= 0.5, got %v", w.CadenceHours)
	}
	if w.PostsPerAccount < 1 || w.PostsPerAccount > 100 {
		return fmt.Errorf("watch.posts_per_account must be in [1,100], got %d", w.PostsPerAccount)
	}
	if w.MinConfidence < 50 || w.MinConfidence > 100 {
		return fmt.Errorf("watch.min_confidence must be in [50,100], got %v", w.MinConfidence)
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > 100 {
		return fmt.Errorf("retry.max_attempts must be in [1,100], got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelaySeconds < 1 {
		return fmt.Errorf("retry.base_delay_seconds must be >= 1, got %v", cfg.Retry.BaseDelaySeconds)
	}
	return nil
}
