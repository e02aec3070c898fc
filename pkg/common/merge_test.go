package common

import (
	"reflect"
	"testing"
)

func TestMergeDescriptions_Idempotent(t *testing.T) {
	first := MergeDescriptions("", "A software company.", 0)
	second := MergeDescriptions(first, "A software company.", 0)
	if second != "A software company." {
		t.Fatalf("expected unchanged description, got %q", second)
	}
}

func TestMergeDescriptions_Concatenates(t *testing.T) {
	merged := MergeDescriptions("First fact.", "Second fact.", 0)
	want := "First fact." + DescriptionSeparator + "Second fact."
	if merged != want {
		t.Fatalf("expected %q, got %q", want, merged)
	}
}

func TestMergeDescriptions_Truncates(t *testing.T) {
	merged := MergeDescriptions("aaaa", "bbbb", 6)
	if len([]rune(merged)) != 6 {
		t.Fatalf("expected 6 runes, got %d (%q)", len([]rune(merged)), merged)
	}
}

func TestMergeEntity_Idempotent(t *testing.T) {
	e := Entity{
		Name:           "ACME",
		Type:           "ORGANIZATION",
		Description:    "A company.",
		SourceChunkIDs: []string{"c1"},
	}
	merged := MergeEntity(e, e, 0)
	if len(merged.SourceChunkIDs) != 1 || merged.SourceChunkIDs[0] != "c1" {
		t.Fatalf("expected one chunk id, got %v", merged.SourceChunkIDs)
	}
	if merged.Description != "A company." {
		t.Fatalf("expected unchanged description, got %q", merged.Description)
	}
}

func TestMergeEntity_UnionsChunks(t *testing.T) {
	a := Entity{Name: "ACME", Description: "A company.", SourceChunkIDs: []string{"c1", "c2"}}
	b := Entity{Name: "ACME", Description: "Makes anvils.", SourceChunkIDs: []string{"c2", "c3"}}
	merged := MergeEntity(a, b, 0)
	if !reflect.DeepEqual(merged.SourceChunkIDs, []string{"c1", "c2", "c3"}) {
		t.Fatalf("expected union of chunk ids, got %v", merged.SourceChunkIDs)
	}
}

func TestMergeRelation_WeightLastWrite(t *testing.T) {
	a := Relation{Source: "A", Target: "B", Weight: 2, SourceChunkIDs: []string{"c1"}}
	b := Relation{Source: "A", Target: "B", Weight: 7, SourceChunkIDs: []string{"c2"}}
	merged := MergeRelation(a, b, 0)
	if merged.Weight != 7 {
		t.Fatalf("expected latest weight 7, got %f", merged.Weight)
	}
	if !reflect.DeepEqual(merged.SourceChunkIDs, []string{"c1", "c2"}) {
		t.Fatalf("expected chunk union, got %v", merged.SourceChunkIDs)
	}
}

func TestNormalizeName(t *testing.T) {
	if NormalizeName("  acme Corp ") != "ACME CORP" {
		t.Fatalf("unexpected normalization: %q", NormalizeName("  acme Corp "))
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	if ContentHash("same input") != ContentHash("same input") {
		t.Fatal("expected identical hashes for identical input")
	}
	if ContentHash("a") == ContentHash("b") {
		t.Fatal("expected different hashes for different input")
	}
}
