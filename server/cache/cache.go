// Package cache holds transform results keyed by normalized prompt.
//
// The cache is insert-only: once it holds its maximum number of entries new
// results are dropped rather than evicting old ones. Entries only leave
// through Clear or when SetLimit lowers the bound, in which case the oldest
// entries go first.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/prompt2json/enhancer"
)

// DefaultMaxEntries bounds a cache created without an explicit limit.
const DefaultMaxEntries = 1000

// Key returns the cache key of prompt: the hex MD5 of its trimmed, lowercased
// form. Prompts differing only in case or surrounding whitespace share a key.
func Key(prompt string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return hex.EncodeToString(sum[:])
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]enhancer.Result
	order   *queue.Queue[string]
	limit   int
}

// New creates a cache holding at most limit entries. A non-positive limit
// uses DefaultMaxEntries.
func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	return &Cache{
		entries: make(map[string]enhancer.Result),
		order:   queue.New[string](),
		limit:   limit,
	}
}

// Get returns the result stored under key.
func (c *Cache) Get(key string) (enhancer.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Add stores r under key and reports whether the cache holds key afterwards.
// An existing entry is kept as is; a full cache rejects new keys.
func (c *Cache) Add(key string, r enhancer.Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return true
	}
	if len(c.entries) >= c.limit {
		return false
	}
	r.Cached = false
	c.entries[key] = r
	c.order.Add(key)
	return true
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]enhancer.Result)
	c.order = queue.New[string]()
	return n
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Limit returns the maximum number of entries.
func (c *Cache) Limit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limit
}

// SetLimit changes the bound, dropping the oldest entries when the cache
// holds more than limit. It returns the number of entries dropped. A
// non-positive limit is ignored.
func (c *Cache) SetLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	dropped := 0
	for len(c.entries) > limit {
		delete(c.entries, c.order.Remove())
		dropped++
	}
	return dropped
}
