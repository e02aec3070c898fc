package ingest

import (
	"strings"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

func testCodec(t *testing.T) *tokens.Codec {
	t.Helper()
	codec, err := tokens.NewCodec("o200k_base")
	if err != nil {
		t.Fatal(err)
	}
	return codec
}

func TestSplitTextRespectsTokenBudget(t *testing.T) {
	codec := testCodec(t)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 200)

	chunks := SplitText(codec, text, 100, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if got := codec.Count(c); got > 100 {
			t.Fatalf("chunk %d exceeds budget: %d tokens", i, got)
		}
		if c != strings.TrimSpace(c) {
			t.Fatalf("chunk %d has ragged whitespace: %q", i, c)
		}
	}
}

func TestSplitTextOverlapRepeatsWords(t *testing.T) {
	codec := testCodec(t)
	text := strings.Repeat("alpha beta gamma delta epsilon ", 100)

	chunks := SplitText(codec, text, 50, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	firstWords := strings.Fields(chunks[0])
	secondWords := strings.Fields(chunks[1])
	tail := firstWords[len(firstWords)-1]
	if secondWords[0] != tail && !strings.Contains(chunks[1], tail) {
		t.Fatalf("expected overlap between chunks, first ends %q, second starts %q", tail, secondWords[0])
	}
}

func TestSplitTextEdgeCases(t *testing.T) {
	codec := testCodec(t)

	if got := SplitText(codec, "", 100, 10); got != nil {
		t.Fatalf("empty text must produce no chunks, got %v", got)
	}
	if got := SplitText(codec, "   \n\t  ", 100, 10); got != nil {
		t.Fatalf("whitespace-only text must produce no chunks, got %v", got)
	}

	// a single word never splits, even over budget
	oversized := strings.Repeat("x", 4000)
	chunks := SplitText(codec, oversized, 10, 2)
	if len(chunks) != 1 || chunks[0] != oversized {
		t.Fatalf("single word must stay intact, got %d chunks", len(chunks))
	}
}

func TestChunkDocumentDeterministicIDs(t *testing.T) {
	codec := testCodec(t)
	doc := common.Document{
		ID:      "doc-1",
		Tenant:  "acme",
		Content: strings.Repeat("some text to split into chunks ", 300),
	}

	first := ChunkDocument(codec, doc, 100, 10)
	second := ChunkDocument(codec, doc, 100, 10)
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("chunking must be deterministic: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("chunk %d id changed between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].ChunkIndex != i || first[i].DocumentID != "doc-1" || first[i].Tenant != "acme" {
			t.Fatalf("chunk %d has wrong provenance: %+v", i, first[i])
		}
	}
}
