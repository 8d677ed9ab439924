package store

import (
	"context"
	"sync"
	"time"

	"github.com/liamcoop/trialmatch/trial"
)

// CacheConfig holds configuration for trial list caching
type CacheConfig struct {
	// TTL is the time-to-live of a cached list.
	// Zero means no expiration; only mutations invalidate.
	TTL time.Duration
}

// CachedTrialStore wraps a TrialStore and caches List results. Mutations
// made through it invalidate the cache.
type CachedTrialStore struct {
	TrialStore

	config   CacheConfig
	mu       sync.RWMutex
	trials   []*StoredTrial
	cachedAt time.Time
	isValid  bool
	// generation is bumped by Invalidate. A List only caches its result
	// when no invalidation happened while it read the wrapped store.
	generation uint64
	now        func() time.Time
}

// NewCachedTrialStore wraps next with a List cache
func NewCachedTrialStore(next TrialStore, config CacheConfig) *CachedTrialStore {
	return &CachedTrialStore{TrialStore: next, config: config, now: time.Now}
}

// List returns the cached list, refreshing it from the wrapped store when
// invalid or expired
func (c *CachedTrialStore) List(ctx context.Context) ([]*StoredTrial, error) {
	if trials, ok := c.cached(); ok {
		return trials, nil
	}

	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	trials, err := c.TrialStore.List(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == generation {
		c.trials = trials
		c.cachedAt = c.now()
		c.isValid = true
	}
	c.mu.Unlock()

	return copyTrials(trials), nil
}

func (c *CachedTrialStore) cached() ([]*StoredTrial, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return nil, false
	}
	if c.config.TTL > 0 && c.now().Sub(c.cachedAt) > c.config.TTL {
		return nil, false
	}
	return copyTrials(c.trials), true
}

func copyTrials(trials []*StoredTrial) []*StoredTrial {
	out := make([]*StoredTrial, len(trials))
	copy(out, trials)
	return out
}

// Invalidate clears the cache, forcing a refresh on the next List
func (c *CachedTrialStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.trials = nil
	c.generation++
}

func (c *CachedTrialStore) Add(ctx context.Context, cfg trial.Config) error {
	defer c.Invalidate()
	return c.TrialStore.Add(ctx, cfg)
}

func (c *CachedTrialStore) Update(ctx context.Context, cfg trial.Config) error {
	defer c.Invalidate()
	return c.TrialStore.Update(ctx, cfg)
}

func (c *CachedTrialStore) Delete(ctx context.Context, trialID string) error {
	defer c.Invalidate()
	return c.TrialStore.Delete(ctx, trialID)
}
