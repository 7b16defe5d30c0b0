// Package cache provides an in-process TTL key/value cache with a
// periodic sweep for expired entries.
package cache

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Config controls cache defaults.
type Config struct {
	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration
	// SweepInterval is how often the background sweep evicts expired
	// entries.
	SweepInterval time.Duration
}

// DefaultConfig matches the production bot defaults (5 minute TTL,
// sweep every minute).
func DefaultConfig() Config {
	return Config{DefaultTTL: 5 * time.Minute, SweepInterval: time.Minute}
}

type entry struct {
	value        any
	expiresAt    time.Time
	createdAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

// Stats summarizes cache occupancy for reporting.
type Stats struct {
	Entries       int   `json:"entries"`
	TotalAccesses int64 `json:"total_accesses"`
	Expired       int   `json:"expired"`
}

// Cache is a mutex-guarded TTL map. Expired entries are never served:
// reads evict lazily and the sweep loop evicts in bulk.
type Cache struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// New creates a cache with the provided configuration. The sweep loop
// is not running until Start is called.
func New(cfg Config, logger *logging.Logger) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Cache{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Start launches the background sweep. Calling Start more than once is
// a no-op; the loop stops when Stop is called or ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		sweepCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.sweepLoop(sweepCtx)
	})
}

// Stop cancels the sweep loop and waits for it to exit.
func (c *Cache) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Cache) sweepLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := c.evictExpired(); evicted > 0 && c.logger != nil {
				c.logger.Debug("Swept expired cache entries",
					zap.Int("evicted", evicted))
			}
		}
	}
}

func (c *Cache) evictExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Get returns the value for key, or (nil, false) for a miss. An
// expired entry counts as a miss and is evicted.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(now) {
		delete(c.entries, key)
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	return e.value, true
}

// Set stores value under key. A non-positive ttl falls back to the
// configured default. Last writer wins.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := c.now()

	c.mu.Lock()
	c.entries[key] = &entry{
		value:        value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessed: now,
	}
	c.mu.Unlock()
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// GetOrSet returns the cached value or computes it with factory and
// stores the result before returning it. Concurrent misses for the
// same key may each run the factory; the last writer wins.
func (c *Cache) GetOrSet(key string, ttl time.Duration, factory func() (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := factory()
	if err != nil {
		return nil, err
	}

	c.Set(key, value, ttl)
	return value, nil
}

// InvalidatePattern removes every key matching the regular expression
// and returns the number of removed entries.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 && c.logger != nil {
		c.logger.Debug("Invalidated cache entries",
			zap.String("pattern", pattern),
			zap.Int("removed", removed))
	}
	return removed, nil
}

// Clear removes all entries and returns how many were evicted.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	c.entries = make(map[string]*entry)
	return count
}

// Stats reports current occupancy without evicting anything.
func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		stats.TotalAccesses += e.accessCount
		if !e.expiresAt.After(now) {
			stats.Expired++
		}
	}
	return stats
}

func (c *Cache) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
