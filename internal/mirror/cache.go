package mirror

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/five82/newsdesk/internal/content"
)

// ErrEmptyKey is returned when a cache operation is given a blank key.
var ErrEmptyKey = errors.New("mirror: empty key")

// Entry is the last known-good result for one logical query.
type Entry struct {
	Key        string
	Items      []content.Item
	CapturedAt time.Time
}

// Cache holds last known-good results keyed by logical query. Entries are only
// ever replaced whole; Get returns ok=false when nothing is stored.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, items []content.Item) error
	Invalidate(ctx context.Context, key string) error
}

// Ensure implementations satisfy Cache at compile time.
var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*SQLiteCache)(nil)
)

// MemoryCache is an in-process Cache. The zero value is ready to use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Entry{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry.Items = content.Clone(entry.Items)
	return entry, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, items []content.Item) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	entry := Entry{Key: key, Items: content.Clone(items), CapturedAt: c.clock()}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}
