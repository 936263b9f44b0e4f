package config

import (
	"time"

	redisclient "github.com/vietddude/postwatch/internal/infra/redis"
	"github.com/vietddude/postwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Watch      WatchConfig        `yaml:"watch"`
	Retry      RetryConfig        `yaml:"retry"`
	Cache      CacheConfig        `yaml:"cache"`
	Source     CollaboratorConfig `yaml:"source"`
	Classifier CollaboratorConfig `yaml:"classifier"`
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	PIDFile    string             `yaml:"pid_file"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// WatchConfig holds scheduling and pipeline settings. Durations are expressed
// as plain numbers (hours / seconds) so the YAML stays parser-agnostic.
type WatchConfig struct {
	MinIntervalHours float64 `yaml:"min_interval_hours"` // jittered refresh, lower bound
	MaxIntervalHours float64 `yaml:"max_interval_hours"` // jittered refresh, upper bound
	CadenceHours     float64 `yaml:"cadence_hours"`      // fixed-cadence pipeline period
	PostsPerAccount  int     `yaml:"posts_per_account"`
	MinConfidence    float64 `yaml:"min_confidence"`
	JitterSeconds    float64 `yaml:"jitter_seconds"` // per-account pre-fetch jitter window
}

// MinInterval returns the jittered job's lower interval bound.
func (w WatchConfig) MinInterval() time.Duration {
	return time.Duration(w.MinIntervalHours * float64(time.Hour))
}

// MaxInterval returns the jittered job's upper interval bound.
func (w WatchConfig) MaxInterval() time.Duration {
	return time.Duration(w.MaxIntervalHours * float64(time.Hour))
}

// Cadence returns the fixed-cadence job's period.
func (w WatchConfig) Cadence() time.Duration {
	return time.Duration(w.CadenceHours * float64(time.Hour))
}

// Jitter returns the per-account jitter window.
func (w WatchConfig) Jitter() time.Duration {
	return time.Duration(w.JitterSeconds * float64(time.Second))
}

// RetryConfig holds bounded-retry settings for collaborator calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds"`
}

// BaseDelay returns the first backoff delay.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds * float64(time.Second))
}

// CacheConfig holds TTL cache settings.
type CacheConfig struct {
	SweepIntervalHours float64 `yaml:"sweep_interval_hours"`
	VerdictTTLHours    float64 `yaml:"verdict_ttl_hours"`
}

// SweepInterval returns the background expiry sweep period.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours * float64(time.Hour))
}

// VerdictTTL returns how long classification verdicts stay cached.
func (c CacheConfig) VerdictTTL() time.Duration {
	return time.Duration(c.VerdictTTLHours * float64(time.Hour))
}

// CollaboratorConfig holds settings for an external HTTP collaborator.
type CollaboratorConfig struct {
	URL            string  `yaml:"url"`
	Token          string  `yaml:"token"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Timeout returns the per-request HTTP timeout.
func (c CollaboratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
