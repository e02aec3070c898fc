package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

func TestCacheStoreLastWriteWins(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	hash := common.ContentHash("chunk text")
	first := common.CacheEntry{
		Tenant:      "acme",
		Kind:        common.CacheKindEntityExtraction,
		ChunkID:     "chunk-1",
		ContentHash: hash,
		RawResult:   `{"entities":[]}`,
	}
	id1, err := c.Store(ctx, first)
	if err != nil {
		t.Fatal(err)
	}

	second := first
	second.RawResult = `{"entities":[{"name":"A"}]}`
	id2, err := c.Store(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("overwriting the same key must keep the id: %s vs %s", id1, id2)
	}

	got, err := c.Get(ctx, "acme", common.CacheKindEntityExtraction, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.RawResult != second.RawResult {
		t.Fatalf("last write must win, got %q", got.RawResult)
	}
}

func TestCacheKeySeparation(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	hash := common.ContentHash("same content")

	kinds := []common.CacheKind{common.CacheKindEntityExtraction, common.CacheKindGleaning}
	for _, kind := range kinds {
		if _, err := c.Store(ctx, common.CacheEntry{
			Tenant: "acme", Kind: kind, ContentHash: hash, RawResult: string(kind),
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Store(ctx, common.CacheEntry{
		Tenant: "other", Kind: kinds[0], ContentHash: hash, RawResult: "other tenant",
	}); err != nil {
		t.Fatal(err)
	}

	for _, kind := range kinds {
		got, err := c.Get(ctx, "acme", kind, hash)
		if err != nil {
			t.Fatal(err)
		}
		if got.RawResult != string(kind) {
			t.Fatalf("kinds must not collide, got %q for %s", got.RawResult, kind)
		}
	}

	if _, err := c.Get(ctx, "acme", common.CacheKindSummarization, hash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing key must return ErrNotFound, got %v", err)
	}
}

func TestCacheChunkAndTenantDeletion(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	entries := []common.CacheEntry{
		{Tenant: "acme", Kind: common.CacheKindEntityExtraction, ChunkID: "c1", ContentHash: "h1"},
		{Tenant: "acme", Kind: common.CacheKindGleaning, ChunkID: "c1", ContentHash: "h2"},
		{Tenant: "acme", Kind: common.CacheKindEntityExtraction, ChunkID: "c2", ContentHash: "h3"},
		{Tenant: "other", Kind: common.CacheKindEntityExtraction, ChunkID: "c1", ContentHash: "h4"},
	}
	for _, e := range entries {
		if _, err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	byChunk, err := c.GetByChunk(ctx, "acme", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byChunk) != 2 {
		t.Fatalf("expected both kinds for chunk c1, got %d", len(byChunk))
	}

	removed, err := c.DeleteByChunks(ctx, "acme", []string{"c1"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed entries, got %d", removed)
	}

	removed, err = c.DeleteByTenant(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining acme entry removed, got %d", removed)
	}
	if _, err := c.Get(ctx, "other", common.CacheKindEntityExtraction, "h4"); err != nil {
		t.Fatalf("other tenant's cache must survive, got %v", err)
	}
}
