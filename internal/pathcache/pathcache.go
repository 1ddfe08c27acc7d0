// Package pathcache memoizes path-finder queries keyed by
// (startId, endId, maxHops, filterDigest), per spec section 4.10. It adapts
// the teacher's generic LRU cache with TTL expiry, adding graph-mutation
// invalidation: a write touching any entity id that appears in a cached
// path evicts that entry outright, even if the TTL has not elapsed.
package pathcache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"litkg/internal/pathfinder"
	"litkg/internal/types"
	"litkg/pkg/cache"
)

// Key identifies one path query for memoization purposes.
type Key struct {
	StartID      string
	EndID        string
	MaxHops      int
	FilterDigest string
}

// Digest builds a deterministic filter digest from a set of relation type
// filters, so that callers don't need to hand-construct cache keys.
func Digest(types []types.RelationType) string {
	if len(types) == 0 {
		return "*"
	}
	sorted := make([]string, len(types))
	for i, t := range types {
		sorted[i] = string(t)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// entry is the cached value: the captured result plus the set of entity ids
// that appear anywhere in it, used for mutation-based invalidation.
type entry struct {
	result     pathfinder.PathResult
	capturedAt time.Time
	touches    map[string]bool
}

// Cache wraps a bounded, TTL-expiring LRU keyed by Key, adding an index from
// entity id to the cache keys whose paths touch it.
type Cache struct {
	mu      sync.Mutex
	lru     *cache.LRU[Key, entry]
	byTouch map[string]map[Key]bool
}

// New builds a path cache bounded to maxEntries with the given TTL.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		lru:     cache.New[Key, entry](&cache.Config{MaxEntries: maxEntries, TTL: ttl}),
		byTouch: make(map[string]map[Key]bool),
	}
}

// Get returns a cached PathResult for key, or (_, false) on a miss or
// expiry. A TTL expiry is a normal miss: the caller recomputes and calls
// Put to refresh.
func (c *Cache) Get(key Key) (pathfinder.PathResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return pathfinder.PathResult{}, false
	}
	return e.result, true
}

// Put stores result under key, indexing every entity id the result's paths
// touch (plus the query's own start/end ids) for later invalidation.
func (c *Cache) Put(key Key, result pathfinder.PathResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	touches := map[string]bool{key.StartID: true, key.EndID: true}
	for _, p := range result.Paths {
		for _, id := range p.Nodes {
			touches[id] = true
		}
	}

	c.lru.Set(key, entry{result: result, capturedAt: time.Now(), touches: touches})

	for id := range touches {
		if c.byTouch[id] == nil {
			c.byTouch[id] = make(map[Key]bool)
		}
		c.byTouch[id][key] = true
	}
}

// InvalidateEntity evicts every cached entry whose captured paths (or query
// endpoints) involve id. Call this on any graph write that creates,
// updates, or deletes a node or edge touching id.
func (c *Cache) InvalidateEntity(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byTouch[id]
	if len(keys) == 0 {
		return
	}
	for key := range keys {
		c.lru.Delete(key)
	}
	delete(c.byTouch, id)
}

// InvalidateRelation evicts entries touched by either endpoint of a
// mutated relation. Graph writers should call this (or InvalidateEntity
// twice) whenever a relation is created, its review status changes, or it
// is removed.
func (c *Cache) InvalidateRelation(rel types.RelationKey) {
	c.InvalidateEntity(rel.Source)
	c.InvalidateEntity(rel.Target)
}

// Size returns the number of live entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Size()
}

// BuildKey is a convenience constructor matching the (startId, endId,
// maxHops, filterDigest) tuple from the cache's contract.
func BuildKey(startID, endID string, maxHops int, filters []types.RelationType) Key {
	return Key{StartID: startID, EndID: endID, MaxHops: maxHops, FilterDigest: Digest(filters)}
}

// String renders a Key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s->%s@%d[%s]", k.StartID, k.EndID, k.MaxHops, k.FilterDigest)
}
