// Package redis provides the optional shared verdict cache. When configured
// it lets multiple instances (and restarts) reuse verdicts that were never
// persisted, e.g. not-an-event judgments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Verdicts stores classification verdicts in Redis with a TTL.
type Verdicts struct {
	rdb *redis.Client
}

// NewVerdicts creates a new Redis-backed verdict store.
func NewVerdicts(cfg Config) (*Verdicts, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Verdicts{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (v *Verdicts) Close() error {
	return v.rdb.Close()
}

func verdictKey(postID string) string {
	return fmt.Sprintf("verdict:%s", postID)
}

// Get retrieves a cached verdict for a post, if present.
func (v *Verdicts) Get(ctx context.Context, postID string) (*domain.Verdict, bool, error) {
	val, err := v.rdb.Get(ctx, verdictKey(postID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(val), &verdict); err != nil {
		return nil, false, fmt.Errorf("invalid verdict payload: %w", err)
	}
	return &verdict, true, nil
}

// Set stores a verdict with the given TTL.
func (v *Verdicts) Set(
	ctx context.Context,
	postID string,
	verdict *domain.Verdict,
	ttl time.Duration,
) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	if err := v.rdb.Set(ctx, verdictKey(postID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}
