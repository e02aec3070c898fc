package query

import "testing"

func item(kind ItemKind, id string, tokens int) Item {
	return Item{Kind: kind, ID: id, Text: id, Tokens: tokens}
}

func TestTruncateBudgetInvariant(t *testing.T) {
	c := Candidates{
		Entities: []Item{
			item(ItemEntity, "e1", 30),
			item(ItemEntity, "e2", 30),
			item(ItemEntity, "e3", 30),
		},
		Relations: []Item{
			item(ItemRelation, "r1", 20),
			item(ItemRelation, "r2", 20),
		},
		Chunks: []Item{
			item(ItemChunk, "c1", 25),
			item(ItemChunk, "c2", 25),
		},
	}
	total := len(c.Entities) + len(c.Relations) + len(c.Chunks)

	budget := 100 // shares: 40/30/30
	out, stats := Truncate(c, budget, nil)

	if stats.ItemsIncluded+stats.ItemsTruncated != total {
		t.Fatalf("included %d + truncated %d != total %d",
			stats.ItemsIncluded, stats.ItemsTruncated, total)
	}
	used := 0
	for _, list := range [][]Item{out.Entities, out.Relations, out.Chunks} {
		for _, it := range list {
			used += it.Tokens
		}
	}
	if used > budget {
		t.Fatalf("included tokens %d exceed budget %d", used, budget)
	}
	if used != stats.TokensUsed {
		t.Fatalf("stats.TokensUsed = %d, want %d", stats.TokensUsed, used)
	}
	// 40-token entity share fits one 30-token entity, 30-token shares fit
	// one relation and one chunk.
	if len(out.Entities) != 1 || len(out.Relations) != 1 || len(out.Chunks) != 1 {
		t.Fatalf("kept %d/%d/%d items, want 1/1/1",
			len(out.Entities), len(out.Relations), len(out.Chunks))
	}
}

func TestTruncateDropsWholeItems(t *testing.T) {
	c := Candidates{
		Entities: []Item{
			item(ItemEntity, "big", 100),
			item(ItemEntity, "small", 1),
		},
	}
	out, stats := Truncate(c, 10, []float64{1, 0, 0})

	// The first entity overflows its share, so the list stops there even
	// though the second entity would fit.
	if len(out.Entities) != 0 {
		t.Fatalf("kept %d entities, want 0", len(out.Entities))
	}
	if stats.ItemsTruncated != 2 {
		t.Fatalf("truncated = %d, want 2", stats.ItemsTruncated)
	}
}

func TestTruncateKeepsRankedOrder(t *testing.T) {
	c := Candidates{
		Chunks: []Item{
			item(ItemChunk, "first", 5),
			item(ItemChunk, "second", 5),
			item(ItemChunk, "third", 5),
		},
	}
	out, _ := Truncate(c, 100, []float64{0, 0, 1})
	if len(out.Chunks) != 3 {
		t.Fatalf("kept %d chunks, want 3", len(out.Chunks))
	}
	for i, want := range []string{"first", "second", "third"} {
		if out.Chunks[i].ID != want {
			t.Fatalf("chunk %d = %q, want %q", i, out.Chunks[i].ID, want)
		}
	}
}
