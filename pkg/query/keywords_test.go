package query

import (
	"context"
	"testing"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store/memory"
)

func TestKeywordExtractStoresTokenUsage(t *testing.T) {
	client := newStubClient()
	cache := memory.NewCache()
	e := NewKeywordExtractor(client, cache, 1, time.Millisecond)
	ctx := context.Background()

	kw, err := e.Extract(ctx, "acme", "Who runs Acme Corp?", "")
	if err != nil {
		t.Fatal(err)
	}
	if kw.Empty() {
		t.Fatal("expected keywords from the stub")
	}

	hash := common.ContentHash("\x00" + "Who runs Acme Corp?")
	entry, err := cache.Get(ctx, "acme", common.CacheKindKeywordExtraction, hash)
	if err != nil {
		t.Fatal(err)
	}
	if entry.TokensUsed == 0 {
		t.Fatal("keyword cache entry stored without token usage")
	}
}
