package ingest

import (
	"context"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store/memory"
)

func newTestExtractor(client *stubClient, gleaning int) *Extractor {
	return NewExtractor(ExtractorParams{
		Client:         client,
		Cache:          memory.NewCache(),
		EntityTypes:    []string{"ORGANIZATION", "LOCATION"},
		Language:       "English",
		GleaningRounds: gleaning,
		MaxRetries:     1,
	})
}

func TestExtractChunkProvenance(t *testing.T) {
	client := newStubClient()
	x := newTestExtractor(client, 0)
	chunk := common.Chunk{ID: "chunk-1", DocumentID: "doc-1", Tenant: "acme", Text: "Acme Corp is based in Berlin."}

	entities, relations, err := x.ExtractChunk(context.Background(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 || len(relations) != 1 {
		t.Fatalf("unexpected extraction size: %d entities, %d relations", len(entities), len(relations))
	}
	for _, e := range entities {
		if e.SourceDocumentID != "doc-1" || len(e.SourceChunkIDs) != 1 || e.SourceChunkIDs[0] != "chunk-1" {
			t.Fatalf("entity missing provenance: %+v", e)
		}
	}
	if relations[0].Weight != 8 {
		t.Fatalf("relationship strength must carry over as weight, got %v", relations[0].Weight)
	}
}

func TestExtractChunkCacheHitSkipsModel(t *testing.T) {
	client := newStubClient()
	x := newTestExtractor(client, 0)
	chunk := common.Chunk{ID: "chunk-1", DocumentID: "doc-1", Tenant: "acme", Text: "Acme Corp is based in Berlin."}
	ctx := context.Background()

	first, _, err := x.ExtractChunk(ctx, chunk)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst, _ := client.calls()

	second, _, err := x.ExtractChunk(ctx, chunk)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterSecond, _ := client.calls()

	if callsAfterSecond != callsAfterFirst {
		t.Fatalf("cache hit must not call the model again: %d -> %d calls", callsAfterFirst, callsAfterSecond)
	}
	if len(first) != len(second) {
		t.Fatalf("cached extraction must reproduce the original: %d vs %d entities", len(first), len(second))
	}

	// same content under a different document id still hits cache
	other := chunk
	other.ID = "chunk-9"
	other.DocumentID = "doc-2"
	if _, _, err := x.ExtractChunk(ctx, other); err != nil {
		t.Fatal(err)
	}
	callsAfterThird, _ := client.calls()
	if callsAfterThird != callsAfterFirst {
		t.Fatalf("identical content must hit cache across documents: %d -> %d calls", callsAfterFirst, callsAfterThird)
	}
}

func TestGleaningStopsOnEmptyResult(t *testing.T) {
	client := newStubClient()
	x := newTestExtractor(client, 3)
	chunk := common.Chunk{ID: "chunk-1", DocumentID: "doc-1", Tenant: "acme", Text: "Acme Corp is based in Berlin."}

	entities, _, err := x.ExtractChunk(context.Background(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 {
		t.Fatalf("empty gleaning rounds must not add entities, got %d", len(entities))
	}
	calls, _ := client.calls()
	// one extraction plus exactly one gleaning round that came back empty
	if calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", calls)
	}
}

func TestExtractStubsUnknownRelationEndpoints(t *testing.T) {
	client := newStubClient()
	client.extraction = `{
		"entities": [{"name": "A", "type": "CONCEPT", "description": "thing"}],
		"relationships": [{"source": "A", "target": "B", "description": "A uses B", "keywords": [], "strength": 3}]
	}`
	x := newTestExtractor(client, 0)
	chunk := common.Chunk{ID: "c", DocumentID: "d", Tenant: "acme", Text: "text"}

	entities, relations, err := x.ExtractChunk(context.Background(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(relations) != 1 {
		t.Fatalf("relation must survive, got %d", len(relations))
	}
	if len(entities) != 2 {
		t.Fatalf("unknown endpoint must get a stub entity, got %d entities", len(entities))
	}
}

func TestSummarizeCached(t *testing.T) {
	client := newStubClient()
	x := newTestExtractor(client, 0)
	ctx := context.Background()

	fragments := []string{"Fact one.", "Fact two.", "Fact three."}
	first, err := x.Summarize(ctx, "acme", "ACME CORP", fragments)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("summary must not be empty")
	}
	second, err := x.Summarize(ctx, "acme", "ACME CORP", fragments)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("cached summary must be stable: %q vs %q", first, second)
	}
}

func TestExtractChunkStoresTokenUsage(t *testing.T) {
	client := newStubClient()
	cache := memory.NewCache()
	x := NewExtractor(ExtractorParams{
		Client:      client,
		Cache:       cache,
		EntityTypes: []string{"ORGANIZATION", "LOCATION"},
		Language:    "English",
		MaxRetries:  1,
	})
	chunk := common.Chunk{ID: "chunk-1", DocumentID: "doc-1", Tenant: "acme", Text: "Acme Corp is based in Berlin."}

	if _, _, err := x.ExtractChunk(context.Background(), chunk); err != nil {
		t.Fatal(err)
	}

	entries, err := cache.GetByChunk(context.Background(), "acme", "chunk-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("expected a cache entry for the extracted chunk")
	}
	for _, e := range entries {
		if e.TokensUsed == 0 {
			t.Fatalf("cache entry %s/%s stored without token usage", e.Kind, e.ContentHash)
		}
	}
}
