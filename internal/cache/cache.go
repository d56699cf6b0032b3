// Package cache memoizes computed trajectories by input/config fingerprint.
//
// Two tiers: an LRU in front for decoded trajectories, SQLite behind it for
// the serialized blobs. Computation is deterministic, so a corrupt stored
// blob is simply a miss: recompute and overwrite.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/bluele/gcache"

	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/traj"
)

// ComputeFunc produces the trajectory for a cache miss.
type ComputeFunc func(ctx context.Context) (*traj.Trajectory, error)

// Cache is the two-tier result cache. Safe for concurrent use; concurrent
// requests for the same key run the computation at most once.
type Cache struct {
	store  *Store
	memory gcache.Cache

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// New creates a cache over the given store with an in-memory LRU of
// memoryEntries decoded trajectories (0 disables the memory tier).
func New(store *Store, memoryEntries int) *Cache {
	var memory gcache.Cache
	if memoryEntries > 0 {
		memory = gcache.New(memoryEntries).LRU().Build()
	}
	return &Cache{
		store:    store,
		memory:   memory,
		inflight: make(map[string]*sync.Mutex),
	}
}

// keyLock returns the per-key mutex, creating it on first use.
func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		c.inflight[key] = l
	}
	return l
}

// GetOrCompute returns the trajectory for key, computing and persisting it
// on a miss. A concurrent second request for the same key waits for the
// in-flight computation and then reads its result.
func (c *Cache) GetOrCompute(ctx context.Context, key, sourcePath string, fn ComputeFunc) (*traj.Trajectory, error) {
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if c.memory != nil {
		if v, err := c.memory.Get(key); err == nil {
			if t, ok := v.(*traj.Trajectory); ok {
				return t, nil
			}
		}
	}

	blob, err := c.store.Get(key)
	if err == nil {
		t, decodeErr := traj.Decode(blob)
		if decodeErr == nil {
			c.remember(key, t)
			return t, nil
		}
		// corrupt entry: treat as a miss and overwrite below
		monitoring.Logf("cache: corrupt entry for key %.12s…, recomputing: %v", key, decodeErr)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	t, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := traj.Encode(t)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(key, sourcePath, encoded); err != nil {
		return nil, err
	}

	c.remember(key, t)
	return t, nil
}

// Invalidate drops every entry derived from sourcePath, memory tier
// included.
func (c *Cache) Invalidate(sourcePath string) error {
	n, err := c.store.DeleteBySource(sourcePath)
	if err != nil {
		return err
	}
	if c.memory != nil {
		c.memory.Purge()
	}
	if n > 0 {
		monitoring.Logf("cache: invalidated %d entries for %s", n, sourcePath)
	}
	return nil
}

func (c *Cache) remember(key string, t *traj.Trajectory) {
	if c.memory == nil {
		return
	}
	if err := c.memory.Set(key, t); err != nil {
		monitoring.Debugf("cache: memory set failed: %v", err)
	}
}
