package xframe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/query"
)

// Cache is the interface for caching compiled statements.
// Users may implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a compiled statement.
type CacheKey struct {
	Flavor      string
	Fingerprint string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return "xframe:" + k.Flavor + ":" + k.Fingerprint
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process Cache. The zero value is ready to use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.clock().Before(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.clock().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]memoryEntry)
	}
	c.entries[key] = e
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// DeletePrefix implements Cache.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Cache = (*MemoryCache)(nil)

// StatementCache memoizes compilation in a Cache. Statements are stored
// msgpack encoded under their flavor and chain fingerprint.
type StatementCache struct {
	compiler *compiler.Compiler
	cache    Cache
	ttl      time.Duration
}

// NewStatementCache returns a StatementCache compiling with c. A nil cache
// selects a new MemoryCache.
func NewStatementCache(c *compiler.Compiler, cache Cache, ttl time.Duration) *StatementCache {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &StatementCache{compiler: c, cache: cache, ttl: ttl}
}

// Key returns the cache key of chain.
func (sc *StatementCache) Key(chain *query.Chain) CacheKey {
	return CacheKey{Flavor: sc.compiler.Flavor().Name(), Fingerprint: chain.Fingerprint()}
}

// Compile returns the compiled statement of chain, reading it from the
// cache when present. Cache failures fall back to compiling. Elem is
// restored from chain for row statements only.
func (sc *StatementCache) Compile(ctx context.Context, chain *query.Chain) (*compiler.Statement, error) {
	key := sc.Key(chain).String()
	if data, err := sc.cache.Get(ctx, key); err == nil && data != nil {
		var st compiler.Statement
		if err := msgpack.Unmarshal(data, &st); err == nil {
			if st.Kind == query.KindSelect && !st.Scalar {
				st.Elem = chain.Elem()
			}
			return &st, nil
		}
	}
	st, err := sc.compiler.Compile(chain)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("xframe: encode statement: %w", err)
	}
	if err := sc.cache.Set(ctx, key, data, sc.ttl); err != nil {
		return nil, fmt.Errorf("xframe: cache statement: %w", err)
	}
	return st, nil
}

// Invalidate drops every statement cached for the flavor of the compiler.
func (sc *StatementCache) Invalidate(ctx context.Context) error {
	return sc.cache.DeletePrefix(ctx, "xframe:"+sc.compiler.Flavor().Name()+":")
}
