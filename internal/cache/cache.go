// Package cache stores recent website audits so repeated scans of the same
// site skip the Lighthouse run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
)

// KeyPrefix namespaces audit entries in a shared Redis.
const KeyPrefix = "leadhunter:audit:"

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// AuditCache looks up and stores audits by site URL.
type AuditCache interface {
	Get(ctx context.Context, url string) (*model.QualityAudit, bool, error)
	Set(ctx context.Context, url string, audit *model.QualityAudit) error
	Close() error
}

// Key returns the cache key for url. Case, scheme, a leading "www." and a
// trailing slash do not change the key.
func Key(url string) string {
	u := normalize.NormalizeURL(url)
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	return KeyPrefix + strings.TrimPrefix(u, "www.")
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string) (*model.QualityAudit, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, *model.QualityAudit) error { return nil }

func (Noop) Close() error { return nil }

// kv is the subset of *redis.Client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisAuditCache keeps audits as JSON with a TTL.
type RedisAuditCache struct {
	rdb kv
	ttl time.Duration
}

// NewRedis parses redisURL, verifies connectivity and returns a cache.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisAuditCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	return newRedis(client, ttl), nil
}

func newRedis(rdb kv, ttl time.Duration) *RedisAuditCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisAuditCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached audit for url, if any.
func (c *RedisAuditCache) Get(ctx context.Context, url string) (*model.QualityAudit, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", url)
	}

	var audit model.QualityAudit
	if err := json.Unmarshal(raw, &audit); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", url)
	}
	return &audit, true, nil
}

// Set stores audit for url.
func (c *RedisAuditCache) Set(ctx context.Context, url string, audit *model.QualityAudit) error {
	raw, err := json.Marshal(audit)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", url)
	}
	if err := c.rdb.Set(ctx, Key(url), raw, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: set %s", url)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisAuditCache) Close() error {
	return c.rdb.Close()
}
