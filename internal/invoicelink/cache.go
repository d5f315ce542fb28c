package invoicelink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// LinkCache remembers invoice links per booking intent so repeated
// confirmations reuse the same link.
type LinkCache interface {
	Get(ctx context.Context, key string) (link string, ok bool, err error)
	Set(ctx context.Context, key, link string, ttl time.Duration) error
}

// CacheKey derives a cache key from the invoice request fields.
func CacheKey(description, prices, payload string) string {
	sum := sha256.New()
	for _, part := range []string{description, prices, payload} {
		sum.Write([]byte(part))
		sum.Write([]byte{0})
	}
	return "invoice_link:" + hex.EncodeToString(sum.Sum(nil))
}

// RedisLinkCache stores links in Redis.
type RedisLinkCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisLinkCache(client *redis.Client, tracer trace.Tracer) *RedisLinkCache {
	if client == nil {
		panic("invoicelink: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.invoicelink.cache")
	}
	return &RedisLinkCache{redis: client, tracer: tracer}
}

func (c *RedisLinkCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := c.tracer.Start(ctx, "invoicelink.cache_get")
	defer span.End()

	link, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("invoicelink: failed to read cached link: %w", err)
	}
	return link, true, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, key, link string, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "invoicelink.cache_set")
	defer span.End()

	if err := c.redis.Set(ctx, key, link, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("invoicelink: failed to cache link: %w", err)
	}
	return nil
}

// memorySweepInterval bounds how often Set scans for expired entries.
const memorySweepInterval = time.Minute

// MemoryLinkCache is an in-process LinkCache for single-instance deployments
// without Redis. Expired entries are dropped on read and swept on write.
type MemoryLinkCache struct {
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]memoryEntry
	nextSweep time.Time
}

type memoryEntry struct {
	link      string
	expiresAt time.Time
}

func NewMemoryLinkCache() *MemoryLinkCache {
	return &MemoryLinkCache{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryLinkCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.link, true, nil
}

func (c *MemoryLinkCache) Set(_ context.Context, key, link string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(memorySweepInterval)
	}
	entry := memoryEntry{link: link}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryLinkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryLinkCache) sweep(now time.Time) {
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
