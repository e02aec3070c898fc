package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type cacheKey struct {
	tenant string
	kind   common.CacheKind
	hash   string
}

// Cache is an in-memory extraction cache.
type Cache struct {
	locker
	entries map[cacheKey]common.CacheEntry
}

// NewCache creates an in-memory extraction cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]common.CacheEntry)}
}

var _ store.ExtractionCache = (*Cache)(nil)

// Store upserts an entry on the (tenant, kind, contentHash) key. Last
// write wins; the id of the surviving row is returned.
func (c *Cache) Store(_ context.Context, entry common.CacheEntry) (string, error) {
	t, err := store.ValidateTenant(entry.Tenant)
	if err != nil {
		return "", err
	}
	if entry.ContentHash == "" {
		return "", fmt.Errorf("cache entry content hash is empty")
	}
	entry.Tenant = t

	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{tenant: t, kind: entry.Kind, hash: entry.ContentHash}
	if existing, ok := c.entries[key]; ok {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	} else {
		if entry.ID == "" {
			entry.ID, err = gonanoid.New()
			if err != nil {
				return "", err
			}
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
	}
	c.entries[key] = entry
	return entry.ID, nil
}

// Get returns the entry for a key or store.ErrNotFound.
func (c *Cache) Get(_ context.Context, tenant string, kind common.CacheKind, contentHash string) (common.CacheEntry, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.CacheEntry{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey{tenant: t, kind: kind, hash: contentHash}]
	if !ok {
		return common.CacheEntry{}, store.ErrNotFound
	}
	return entry, nil
}

// GetByChunk returns all entries recorded for one chunk, oldest first.
func (c *Cache) GetByChunk(_ context.Context, tenant, chunkID string) ([]common.CacheEntry, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []common.CacheEntry
	for key, entry := range c.entries {
		if key.tenant == t && entry.ChunkID == chunkID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteByTenant removes every entry of one tenant and returns the
// count.
func (c *Cache) DeleteByTenant(_ context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if key.tenant == t {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// DeleteByChunks removes entries recorded for the given chunks.
func (c *Cache) DeleteByChunks(_ context.Context, tenant string, chunkIDs []string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		wanted[id] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if key.tenant == t && wanted[entry.ChunkID] {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}
