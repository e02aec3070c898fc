package query

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/store/memory"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

const testTenant = "acme"

func newTestPipeline(t *testing.T) (*Pipeline, *stubClient) {
	t.Helper()
	codec, err := tokens.NewCodec("o200k_base")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	ctx := context.Background()
	graph := memory.NewGraphStore(4096)
	vectors := memory.NewVectorStore(8)
	cache := memory.NewCache()
	client := newStubClient()

	if err := graph.CreateGraph(ctx, testTenant); err != nil {
		t.Fatalf("CreateGraph: %v", err)
	}
	entities := []common.Entity{
		{Name: "ACME CORP", Type: "ORGANIZATION", Description: "A company that makes everything.", SourceDocumentID: "doc-1"},
		{Name: "BERLIN", Type: "LOCATION", Description: "Capital of Germany.", SourceDocumentID: "doc-1"},
	}
	if err := graph.UpsertEntities(ctx, testTenant, entities); err != nil {
		t.Fatalf("UpsertEntities: %v", err)
	}
	relation := common.Relation{
		Source:           "ACME CORP",
		Target:           "BERLIN",
		Description:      "Acme Corp is headquartered in Berlin.",
		Keywords:         []string{"headquarters"},
		Weight:           8,
		SourceDocumentID: "doc-1",
	}
	if err := graph.UpsertRelation(ctx, testTenant, relation); err != nil {
		t.Fatalf("UpsertRelation: %v", err)
	}

	for _, e := range entities {
		vec, _ := client.Embed(ctx, e.Name+"\n"+e.Description)
		rec := common.VectorRecord{
			ID:        common.EntityVectorID(testTenant, e.Name),
			Embedding: vec,
			Type:      common.VectorTypeEntity,
			Content:   e.Name + "\n" + e.Description,
			Tenant:    testTenant,
		}
		if err := vectors.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert entity vector: %v", err)
		}
	}
	chunkText := "Acme Corp operates out of Berlin and builds everything."
	chunkVec, _ := client.Embed(ctx, chunkText)
	chunk := common.VectorRecord{
		ID:         common.ChunkVectorID(testTenant, "doc-1", 0),
		Embedding:  chunkVec,
		Type:       common.VectorTypeChunk,
		Content:    chunkText,
		DocumentID: "doc-1",
		Tenant:     testTenant,
	}
	if err := vectors.Upsert(ctx, chunk); err != nil {
		t.Fatalf("Upsert chunk vector: %v", err)
	}

	client.embedCalls = 0
	pipeline := NewPipeline(PipelineParams{
		Client:         client,
		Graph:          graph,
		Vector:         vectors,
		Cache:          cache,
		Codec:          codec,
		TopK:           5,
		ContextBudget:  2000,
		SectionHeaders: true,
		MaxRetries:     2,
		RetryBase:      time.Millisecond,
	})
	return pipeline, client
}

func TestPipelineMixRetrievesAllKinds(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	res, err := pipeline.Run(context.Background(), Request{
		Tenant: testTenant,
		Query:  "Where is Acme Corp headquartered?",
		Mode:   ModeMix,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Empty() {
		t.Fatal("expected retrieval results")
	}

	kinds := map[ItemKind]int{}
	for _, src := range res.Sources {
		kinds[src.Kind]++
	}
	if kinds[ItemEntity] == 0 || kinds[ItemRelation] == 0 || kinds[ItemChunk] == 0 {
		t.Fatalf("missing candidate kind in sources: %v", kinds)
	}
	if !strings.Contains(res.Context, "ACME CORP") {
		t.Fatalf("context missing retrieved entity:\n%s", res.Context)
	}
	if res.Stats.ItemsIncluded != len(res.Sources) {
		t.Fatalf("included %d != %d sources", res.Stats.ItemsIncluded, len(res.Sources))
	}
}

func TestPipelineKeywordCacheHit(t *testing.T) {
	pipeline, client := newTestPipeline(t)
	ctx := context.Background()
	req := Request{Tenant: testTenant, Query: "Where is Acme Corp headquartered?", Mode: ModeLocal}

	if _, err := pipeline.Run(ctx, req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	format1, _ := client.calls()

	if _, err := pipeline.Run(ctx, req); err != nil {
		t.Fatalf("second run: %v", err)
	}
	format2, _ := client.calls()

	if format1 != 1 {
		t.Fatalf("first run made %d keyword calls, want 1", format1)
	}
	if format2 != format1 {
		t.Fatalf("second run re-extracted keywords: %d calls", format2)
	}
}

func TestPipelineNaiveSkipsGraph(t *testing.T) {
	pipeline, client := newTestPipeline(t)

	res, err := pipeline.Run(context.Background(), Request{
		Tenant: testTenant,
		Query:  "Where is Acme Corp headquartered?",
		Mode:   ModeNaive,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	format, _ := client.calls()
	if format != 0 {
		t.Fatalf("naive mode extracted keywords: %d calls", format)
	}
	for _, src := range res.Sources {
		if src.Kind != ItemChunk {
			t.Fatalf("naive mode returned %s source %q", src.Kind, src.ID)
		}
	}
	if res.Empty() {
		t.Fatal("expected chunk results")
	}
}

func TestPipelineBypassSkipsRetrieval(t *testing.T) {
	pipeline, client := newTestPipeline(t)

	res, err := pipeline.Run(context.Background(), Request{
		Tenant: testTenant,
		Query:  "Tell me a joke.",
		Mode:   ModeBypass,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Empty() || res.Context != "" {
		t.Fatalf("bypass produced context: %+v", res)
	}
	format, embed := client.calls()
	if format != 0 || embed != 0 {
		t.Fatalf("bypass touched the model: %d format, %d embed calls", format, embed)
	}
}

func TestPipelineEmptyKeywordsStillSearches(t *testing.T) {
	pipeline, client := newTestPipeline(t)
	client.keywords = `{"high_level_keywords": [], "low_level_keywords": []}`

	res, err := pipeline.Run(context.Background(), Request{
		Tenant: testTenant,
		Query:  "Where is Acme Corp headquartered?",
		Mode:   ModeMix,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Vector similarity still finds the entities even without keywords.
	if res.Empty() {
		t.Fatal("expected vector-only results")
	}
}

func TestPipelineInvalidTenant(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, err := pipeline.Run(context.Background(), Request{
		Tenant: "Not A Tenant!",
		Query:  "anything",
		Mode:   ModeMix,
	})
	if err == nil || !strings.Contains(err.Error(), store.ErrInvalidTenant.Error()) {
		t.Fatalf("expected invalid tenant error, got %v", err)
	}
}
