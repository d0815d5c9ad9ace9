package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
)

// cachePolicy decides how long a head tree stays in memory. An entry that was
// not read for ttl plus hitBonus per recent read is dropped on the next sweep.
type cachePolicy struct {
	sweep      time.Duration
	ttl        time.Duration
	hitBonus   time.Duration
	maxEntries int
}

var defaultCachePolicy = cachePolicy{
	sweep:      10 * time.Second,
	ttl:        40 * time.Second,
	hitBonus:   4 * time.Second,
	maxEntries: 100_000,
}

// trackerState is the latest known tree of an object.
type trackerState struct {
	tree  *tree.Node
	rev   store.RevisionID
	chain int // patches since the last snapshot

	lastRead atomic.Int64 // unix nanos
	hits     atomic.Uint32
}

func (ts *trackerState) touch(now time.Time) {
	ts.lastRead.Store(now.UnixNano())
}

func (ts *trackerState) expired(now time.Time, p cachePolicy) bool {
	idle := now.Sub(time.Unix(0, ts.lastRead.Load()))
	return idle > p.ttl+time.Duration(ts.hits.Load())*p.hitBonus
}

// CacheStats counts state cache activity since the service was created.
type CacheStats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// stateCache holds the head tree of recently used objects so commits do not
// replay the patch chain every time.
type stateCache struct {
	policy cachePolicy

	mu   sync.RWMutex
	data map[string]*trackerState

	hits, misses, evictions atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

func newStateCache(p cachePolicy) *stateCache {
	c := &stateCache{
		policy: p,
		data:   make(map[string]*trackerState, 1024),
		stop:   make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// close stops the sweeper and empties the cache. Calling it again is a no-op.
func (c *stateCache) close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		c.data = make(map[string]*trackerState)
		c.mu.Unlock()
	})
}

func (c *stateCache) sweepLoop() {
	ticker := time.NewTicker(c.policy.sweep)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.sweep(now)
		case <-c.stop:
			return
		}
	}
}

// sweep drops expired entries and halves the hit count of the rest, so old
// popularity fades. It returns the number of dropped entries.
func (c *stateCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, ts := range c.data {
		if ts.expired(now, c.policy) {
			delete(c.data, id)
			n++
			continue
		}
		ts.hits.Store(ts.hits.Load() / 2)
	}
	c.evictions.Add(uint64(n))
	return n
}

// get returns nil on a miss. The entry is shared; its tree must not be modified.
func (c *stateCache) get(objectID string) *trackerState {
	c.mu.RLock()
	ts := c.data[objectID]
	c.mu.RUnlock()

	if ts == nil {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	ts.hits.Add(1)
	ts.touch(time.Now())
	return ts
}

// set stores ts, which must own its tree. When the cache is full the least
// recently read entry makes room.
func (c *stateCache) set(objectID string, ts *trackerState) {
	ts.touch(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[objectID]; !ok && len(c.data) >= c.policy.maxEntries {
		c.dropColdest()
	}
	c.data[objectID] = ts
}

// dropColdest expects c.mu to be held.
func (c *stateCache) dropColdest() {
	var (
		coldest string
		oldest  int64
	)
	for id, ts := range c.data {
		if last := ts.lastRead.Load(); coldest == "" || last < oldest {
			coldest, oldest = id, last
		}
	}
	if coldest != "" {
		delete(c.data, coldest)
		c.evictions.Add(1)
	}
}

func (c *stateCache) stats() CacheStats {
	c.mu.RLock()
	n := len(c.data)
	c.mu.RUnlock()
	return CacheStats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
