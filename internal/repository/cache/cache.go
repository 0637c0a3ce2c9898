package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/db"
)

// Category names a cache bucket with its own TTL policy.
type Category string

// Cache categories.
const (
	CategorySQLResult     Category = "sql_result"
	CategoryColumnSearch  Category = "column_search"
	CategorySQLGeneration Category = "sql_generation"
	CategoryMetadata      Category = "metadata"
)

// TTLs maps categories to their time-to-live.
type TTLs struct {
	SQLResult     time.Duration
	ColumnSearch  time.Duration
	SQLGeneration time.Duration
	Metadata      time.Duration
}

// DefaultTTLs returns the standard per-category lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		SQLResult:     time.Hour,
		ColumnSearch:  6 * time.Hour,
		SQLGeneration: 6 * time.Hour,
		Metadata:      12 * time.Hour,
	}
}

func (t TTLs) forCategory(c Category) time.Duration {
	switch c {
	case CategorySQLResult:
		return t.SQLResult
	case CategoryColumnSearch:
		return t.ColumnSearch
	case CategorySQLGeneration:
		return t.SQLGeneration
	case CategoryMetadata:
		return t.Metadata
	default:
		return time.Hour
	}
}

// store is the consumer interface for the cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// entry is the stored envelope around a cached value.
type entry struct {
	Key          string          `json:"key"`
	Category     Category        `json:"category"`
	Value        json.RawMessage `json:"value"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	HitCount     int64           `json:"hit_count"`
	LastAccessed time.Time       `json:"last_accessed"`
}

// CategoryStats aggregates entry counts and hits for one category.
type CategoryStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
}

// Stats is a point-in-time snapshot of cache contents.
type Stats struct {
	TotalEntries int                        `json:"total_entries"`
	Categories   map[Category]CategoryStats `json:"categories"`
}

// Cache is a content-addressed TTL cache over a key-value store.
// Keys are derived from the category and a canonical encoding of the
// request parameters, so equal parameter sets hit the same entry
// regardless of map iteration order.
type Cache struct {
	store      store
	keyPrefix  string
	ttls       TTLs
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a cache over the given store.
// cacheTotal is a counter vec with labels "category" and "result" ("hit"/"miss"), may be nil.
func New(s store, keyPrefix string, ttls TTLs, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		store:      s,
		keyPrefix:  keyPrefix,
		ttls:       ttls,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Key derives the cache key for a category and parameter set.
// Maps are JSON-encoded with sorted keys, so parameter order never matters.
func (c *Cache) Key(category Category, params map[string]any) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode cache params: %w", err)
	}
	h := sha256.Sum256(append([]byte(category), canonical...))
	return hex.EncodeToString(h[:])[:32], nil
}

// Get looks up a cached value and unmarshals it into out.
// A hit bumps the entry's hit count and last-accessed time without
// extending its TTL. Expired entries are deleted on read.
func (c *Cache) Get(ctx context.Context, category Category, params map[string]any, out any) (bool, error) {
	key, err := c.Key(category, params)
	if err != nil {
		return false, err
	}

	storeKey := c.keyPrefix + key
	data, err := c.store.Get(ctx, storeKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cache entry", zap.String("key", storeKey), zap.Error(err))
		}
		c.incCache(category, "miss")
		return false, nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Failed to decode cache entry", zap.String("key", storeKey), zap.Error(err))
		c.incCache(category, "miss")
		return false, nil
	}

	if c.now().After(e.ExpiresAt) {
		if err := c.store.Del(ctx, storeKey); err != nil {
			c.logger.Warn("Failed to delete expired cache entry", zap.String("key", storeKey), zap.Error(err))
		}
		c.incCache(category, "miss")
		return false, nil
	}

	if err := json.Unmarshal(e.Value, out); err != nil {
		c.incCache(category, "miss")
		return false, fmt.Errorf("decode cached value: %w", err)
	}

	c.recordHit(ctx, storeKey, &e)
	c.incCache(category, "hit")
	return true, nil
}

// Set stores a value under the category's TTL.
func (c *Cache) Set(ctx context.Context, category Category, params map[string]any, value any) error {
	key, err := c.Key(category, params)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}

	now := c.now()
	ttl := c.ttls.forCategory(category)
	e := entry{
		Key:          key,
		Category:     category,
		Value:        raw,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		HitCount:     0,
		LastAccessed: now,
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := c.store.SetWithTTL(ctx, c.keyPrefix+key, data, ttl); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(ctx context.Context, category Category, params map[string]any) error {
	key, err := c.Key(category, params)
	if err != nil {
		return err
	}
	if err := c.store.Del(ctx, c.keyPrefix+key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Sweep removes every expired entry and returns how many were deleted.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	keys, err := c.store.Scan(ctx, c.keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cache keys: %w", err)
	}

	deleted := 0
	now := c.now()
	for _, k := range keys {
		data, err := c.store.Get(ctx, k)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || now.After(e.ExpiresAt) {
			if err := c.store.Del(ctx, k); err != nil {
				c.logger.Warn("Failed to delete cache entry during sweep", zap.String("key", k), zap.Error(err))
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}

// Stats reads every live entry and aggregates counts and hits per category.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.store.Scan(ctx, c.keyPrefix+"*")
	if err != nil {
		return Stats{}, fmt.Errorf("scan cache keys: %w", err)
	}

	stats := Stats{Categories: make(map[Category]CategoryStats)}
	now := c.now()
	for _, k := range keys {
		data, err := c.store.Get(ctx, k)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		if now.After(e.ExpiresAt) {
			continue
		}
		cs := stats.Categories[e.Category]
		cs.Entries++
		cs.Hits += e.HitCount
		stats.Categories[e.Category] = cs
		stats.TotalEntries++
	}
	return stats, nil
}

// recordHit rewrites the envelope with updated hit stats, keeping the
// remaining TTL so accesses never extend an entry's life.
func (c *Cache) recordHit(ctx context.Context, storeKey string, e *entry) {
	e.HitCount++
	e.LastAccessed = c.now()

	remaining := e.ExpiresAt.Sub(c.now())
	if remaining <= 0 {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, storeKey, data, remaining); err != nil {
		c.logger.Warn("Failed to update cache hit count", zap.String("key", storeKey), zap.Error(err))
	}
}

func (c *Cache) incCache(category Category, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(string(category), result).Inc()
	}
}
