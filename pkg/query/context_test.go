package query

import (
	"strings"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

func TestBuildContextSections(t *testing.T) {
	merged := []Item{
		item(ItemEntity, "ent:ACME CORP", 1),
		item(ItemRelation, "rel:ACME CORP->BERLIN", 1),
		item(ItemChunk, "chunk:acme:doc-1:0", 1),
	}
	text, sources := BuildContext(merged, nil, ContextOptions{SectionHeaders: true})

	for _, header := range []string{"-----Entities-----", "-----Relationships-----", "-----Document Excerpts-----"} {
		if !strings.Contains(text, header) {
			t.Fatalf("context missing header %q:\n%s", header, text)
		}
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3", len(sources))
	}
	if sources[0].ID != "ent:ACME CORP" || sources[2].Kind != ItemChunk {
		t.Fatalf("unexpected source list: %+v", sources)
	}
}

func TestBuildContextFlatKeepsMergedOrder(t *testing.T) {
	merged := []Item{
		item(ItemEntity, "e1", 1),
		item(ItemChunk, "c1", 1),
		item(ItemEntity, "e2", 1),
	}
	_, sources := BuildContext(merged, nil, ContextOptions{})
	for i, want := range []string{"e1", "c1", "e2"} {
		if sources[i].ID != want {
			t.Fatalf("sources[%d] = %q, want %q", i, sources[i].ID, want)
		}
	}
}

func TestBuildContextHistory(t *testing.T) {
	history := []ai.ChatMessage{
		{Role: "user", Message: "who runs acme?"},
		{Role: "assistant", Message: "Acme Corp is run from Berlin."},
	}
	text, sources := BuildContext(nil, history, ContextOptions{SectionHeaders: true})
	if !strings.Contains(text, "user: who runs acme?") {
		t.Fatalf("history not rendered:\n%s", text)
	}
	if len(sources) != 0 {
		t.Fatalf("history must not produce sources, got %d", len(sources))
	}
}

func TestBuildContextEmpty(t *testing.T) {
	text, sources := BuildContext(nil, nil, ContextOptions{})
	if text != "" || sources != nil {
		t.Fatalf("expected empty context, got %q with %d sources", text, len(sources))
	}
}
