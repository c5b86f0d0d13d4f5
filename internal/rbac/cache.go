package rbac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/nikhilbhutani/tenantguard/internal/cache"
)

// Cache stores resolved permission sets. Entries are keyed by the tenant's
// and the global invalidation generations, so bumping a generation makes
// every older entry unreachable. A reader that resolved against pre-commit
// state stores its result under the old generation, which is never read
// again once the writer bumps after commit.
type Cache interface {
	Generations(ctx context.Context, tenantID uuid.UUID) (Generation, error)
	Get(ctx context.Context, key CacheKey) (Set, bool)
	Put(ctx context.Context, key CacheKey, perms Set)
	Invalidate(ctx context.Context, tenantID *uuid.UUID) error
}

type Generation struct {
	Tenant uint64
	Global uint64
}

type CacheKey struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Gen      Generation
}

func (k CacheKey) String() string {
	return fmt.Sprintf("perms:%s:%s:%d:%d", k.TenantID, k.UserID, k.Gen.Tenant, k.Gen.Global)
}

// NoCache resolves every request against the store.
type NoCache struct{}

func (NoCache) Generations(context.Context, uuid.UUID) (Generation, error) { return Generation{}, nil }
func (NoCache) Get(context.Context, CacheKey) (Set, bool)                   { return nil, false }
func (NoCache) Put(context.Context, CacheKey, Set)                          {}
func (NoCache) Invalidate(context.Context, *uuid.UUID) error                { return nil }

type lruEntry struct {
	perms   Set
	expires time.Time
}

// LRUCache is a process-local cache. It is only correct for a single API
// replica; multi-replica deployments use RedisCache so that invalidations
// reach every process.
type LRUCache struct {
	entries *lru.Cache
	ttl     time.Duration

	mu      sync.Mutex
	tenants map[uuid.UUID]uint64
	global  uint64
}

func NewLRUCache(size int, ttl time.Duration) (*LRUCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUCache{entries: entries, ttl: ttl, tenants: make(map[uuid.UUID]uint64)}, nil
}

func (c *LRUCache) Generations(_ context.Context, tenantID uuid.UUID) (Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Generation{Tenant: c.tenants[tenantID], Global: c.global}, nil
}

func (c *LRUCache) Get(_ context.Context, key CacheKey) (Set, bool) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	e := raw.(lruEntry)
	if c.ttl > 0 && time.Now().After(e.expires) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.perms, true
}

func (c *LRUCache) Put(_ context.Context, key CacheKey, perms Set) {
	c.entries.Add(key, lruEntry{perms: perms, expires: time.Now().Add(c.ttl)})
}

func (c *LRUCache) Invalidate(_ context.Context, tenantID *uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tenantID == nil {
		c.global++
		return nil
	}
	c.tenants[*tenantID]++
	return nil
}

// RedisCache shares generations and entries across API replicas.
type RedisCache struct {
	c   *cache.Cache
	ttl time.Duration
}

func NewRedisCache(c *cache.Cache, ttl time.Duration) *RedisCache {
	return &RedisCache{c: c, ttl: ttl}
}

const globalGenKey = "gen:global"

func tenantGenKey(id uuid.UUID) string { return "gen:tenant:" + id.String() }

func (r *RedisCache) Generations(ctx context.Context, tenantID uuid.UUID) (Generation, error) {
	vals, err := r.c.Counters(ctx, tenantGenKey(tenantID), globalGenKey)
	if err != nil {
		return Generation{}, err
	}
	return Generation{Tenant: uint64(vals[0]), Global: uint64(vals[1])}, nil
}

func (r *RedisCache) Get(ctx context.Context, key CacheKey) (Set, bool) {
	var names []string
	if err := r.c.Get(ctx, key.String(), &names); err != nil {
		return nil, false
	}
	return NewSet(names...), true
}

func (r *RedisCache) Put(ctx context.Context, key CacheKey, perms Set) {
	// a failed write only costs a future miss
	_ = r.c.Set(ctx, key.String(), perms.Names(), r.ttl)
}

func (r *RedisCache) Invalidate(ctx context.Context, tenantID *uuid.UUID) error {
	key := globalGenKey
	if tenantID != nil {
		key = tenantGenKey(*tenantID)
	}
	if _, err := r.c.Increment(ctx, key); err != nil {
		return fmt.Errorf("bump %s: %w", key, err)
	}
	return nil
}

var errCacheDisabled = errors.New("permission cache disabled after failed invalidation")
