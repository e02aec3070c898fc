package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

func TestGraphRequiresCreate(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()

	err := s.UpsertEntity(ctx, "acme", common.Entity{Name: "X"})
	if !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("expected ErrGraphNotFound, got %v", err)
	}

	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatalf("CreateGraph must be idempotent: %v", err)
	}
	if err := s.UpsertEntity(ctx, "acme", common.Entity{Name: "X"}); err != nil {
		t.Fatal(err)
	}
}

func TestGraphTenantIsolation(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()

	for _, tenant := range []string{"alpha", "beta"} {
		if err := s.CreateGraph(ctx, tenant); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.UpsertEntity(ctx, "alpha", common.Entity{Name: "SHARED NAME", Description: "alpha's view"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertEntity(ctx, "beta", common.Entity{Name: "SHARED NAME", Description: "beta's view"}); err != nil {
		t.Fatal(err)
	}

	a, err := s.GetEntity(ctx, "alpha", "SHARED NAME")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetEntity(ctx, "beta", "SHARED NAME")
	if err != nil {
		t.Fatal(err)
	}
	if a.Description == b.Description {
		t.Fatal("colliding names across tenants must not share state")
	}

	if err := s.DeleteGraph(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEntity(ctx, "beta", "SHARED NAME"); err != nil {
		t.Fatalf("deleting one tenant must not touch another: %v", err)
	}
	if _, err := s.GetEntity(ctx, "alpha", "SHARED NAME"); !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("expected ErrGraphNotFound after delete, got %v", err)
	}
}

func TestUpsertEntityMergeIdempotent(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()
	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	e := common.Entity{
		Name:           "acme corp",
		Type:           "ORGANIZATION",
		Description:    "A company.",
		SourceChunkIDs: []string{"c1"},
	}
	for i := 0; i < 3; i++ {
		if err := s.UpsertEntity(ctx, "acme", e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetEntity(ctx, "acme", "ACME CORP")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "A company." {
		t.Fatalf("repeated identical upserts must not grow the description: %q", got.Description)
	}
	if len(got.SourceChunkIDs) != 1 {
		t.Fatalf("chunk ids must stay a set: %v", got.SourceChunkIDs)
	}

	e.Description = "Based in Berlin."
	e.SourceChunkIDs = []string{"c2"}
	if err := s.UpsertEntity(ctx, "acme", e); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetEntity(ctx, "acme", "acme corp")
	if err != nil {
		t.Fatal(err)
	}
	want := "A company." + common.DescriptionSeparator + "Based in Berlin."
	if got.Description != want {
		t.Fatalf("new fragment must concatenate, got %q", got.Description)
	}
	if len(got.SourceChunkIDs) != 2 {
		t.Fatalf("chunk ids must union, got %v", got.SourceChunkIDs)
	}
}

func TestUpsertRelationWeightLastWrite(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()
	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	r := common.Relation{Source: "a", Target: "b", Weight: 2, Keywords: []string{"x"}}
	if err := s.UpsertRelation(ctx, "acme", r); err != nil {
		t.Fatal(err)
	}
	r.Weight = 9
	r.Keywords = []string{"y"}
	if err := s.UpsertRelation(ctx, "acme", r); err != nil {
		t.Fatal(err)
	}
	// reverse direction is a distinct edge
	if err := s.UpsertRelation(ctx, "acme", common.Relation{Source: "b", Target: "a", Weight: 1}); err != nil {
		t.Fatal(err)
	}

	rels, err := s.GetAllRelations(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected 2 ordered edges, got %d", len(rels))
	}
	if rels[0].Weight != 9 {
		t.Fatalf("weight must take the latest write, got %v", rels[0].Weight)
	}
	if len(rels[0].Keywords) != 2 {
		t.Fatalf("keywords must union, got %v", rels[0].Keywords)
	}
}

func TestDeleteBySourceDocument(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()
	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertEntities(ctx, "acme", []common.Entity{
		{Name: "A", SourceDocumentID: "doc1"},
		{Name: "B", SourceDocumentID: "doc2"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRelation(ctx, "acme", common.Relation{Source: "A", Target: "B", SourceDocumentID: "doc1"}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.DeleteBySourceDocument(ctx, "acme", "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed records, got %d", removed)
	}
	stats, err := s.GetStats(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if stats.EntityCount != 1 || stats.RelationCount != 0 {
		t.Fatalf("unexpected leftovers: %+v", stats)
	}
}

func TestTraverseAndShortestPath(t *testing.T) {
	s := NewGraphStore(0)
	ctx := context.Background()
	if err := s.CreateGraph(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	edges := []common.Relation{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "C"},
		{Source: "C", Target: "D"},
		{Source: "X", Target: "Y"},
	}
	if err := s.UpsertRelations(ctx, "acme", edges); err != nil {
		t.Fatal(err)
	}
	names := []common.Entity{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}, {Name: "X"}, {Name: "Y"}}
	if err := s.UpsertEntities(ctx, "acme", names); err != nil {
		t.Fatal(err)
	}

	sub, err := s.Traverse(ctx, "acme", "A", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Relations) != 2 {
		t.Fatalf("depth 2 from A must see A-B and B-C, got %d relations", len(sub.Relations))
	}

	path, err := s.ShortestPath(ctx, "acme", "A", "D")
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 4 || path[0] != "A" || path[3] != "D" {
		t.Fatalf("unexpected path %v", path)
	}

	none, err := s.ShortestPath(ctx, "acme", "A", "X")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("disconnected components must yield an empty path, got %v", none)
	}
}
