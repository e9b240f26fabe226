// Package cache stores computed reports in Redis. A cache that cannot reach
// Redis degrades to a no-op so reports are always recomputed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
	"github.com/okian/bareme/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Default cache configuration constants.
const (
	defaultKeyPrefix   = "bareme:report:"
	defaultPingTimeout = 2 * time.Second
)

// ErrUnavailable is returned by Ping when no Redis connection is held.
var ErrUnavailable = errors.New("report cache unavailable")

// ReportCache is a Redis-backed cache of computed reports.
type ReportCache struct {
	client    *redis.Client
	logger    logger.Logger
	keyPrefix string

	warnedUnavailable atomic.Bool
}

// Option applies a configuration option to the ReportCache.
type Option func(*ReportCache)

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *ReportCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKeyPrefix namespaces every key written by the cache.
func WithKeyPrefix(prefix string) Option {
	return func(c *ReportCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// NewRedis connects to Redis and pings it once. When the ping fails the
// returned cache bypasses every call.
func NewRedis(ctx context.Context, redisOpts *redis.Options, opts ...Option) *ReportCache {
	c := newReportCache(opts...)

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn(ctx, "redis unavailable, bypassing report cache",
			logger.String("addr", redisOpts.Addr),
			logger.Error(err),
		)
		c.warnedUnavailable.Store(true)
		_ = client.Close()
		return c
	}

	c.client = client
	c.logger.Info(ctx, "report cache connected", logger.String("addr", redisOpts.Addr))
	return c
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(client *redis.Client, opts ...Option) *ReportCache {
	c := newReportCache(opts...)
	c.client = client
	return c
}

// Disabled returns a cache that never stores anything.
func Disabled() *ReportCache {
	return newReportCache()
}

func newReportCache(opts ...Option) *ReportCache {
	c := &ReportCache{
		logger:    logger.Nop(),
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache holds a Redis connection.
func (c *ReportCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Key derives the cache key for a set of credentials. The raw jeton never
// reaches Redis.
func (c *ReportCache) Key(creds model.Credentials) string {
	sum := sha256.Sum256([]byte(creds.Jeton + "\x00" + creds.Login + "\x00" + creds.URL))
	return c.keyPrefix + hex.EncodeToString(sum[:])
}

// Ping checks the Redis connection.
func (c *ReportCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrUnavailable
	}
	return c.client.Ping(ctx).Err()
}

// Get looks up a report. A miss returns ok=false and a nil error.
func (c *ReportCache) Get(ctx context.Context, key string) (types.Report, bool, error) {
	if !c.Enabled() {
		return types.Report{}, false, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss()
			return types.Report{}, false, nil
		}
		metrics.RecordCacheError("get")
		c.warnUnavailableOnce(ctx, err)
		return types.Report{}, false, fmt.Errorf("cache get: %w", err)
	}

	var report types.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		metrics.RecordCacheError("get")
		return types.Report{}, false, fmt.Errorf("cache decode: %w", err)
	}

	metrics.RecordCacheHit()
	return report, true, nil
}

// Set stores a report for ttl. Non-positive TTLs are ignored.
func (c *ReportCache) Set(ctx context.Context, key string, report types.Report, ttl time.Duration) error {
	if !c.Enabled() || ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		metrics.RecordCacheError("set")
		c.warnUnavailableOnce(ctx, err)
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ReportCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func (c *ReportCache) warnUnavailableOnce(ctx context.Context, err error) {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		c.logger.Warn(ctx, "redis unavailable, bypassing report cache", logger.Error(err))
	}
}
