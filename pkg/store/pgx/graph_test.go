package pgx

import (
	"errors"
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMergeEntityBatch(t *testing.T) {
	in := []common.Entity{
		{Name: "acme corp", Type: "ORGANIZATION", Description: "A company.", SourceChunkIDs: []string{"c1"}},
		{Name: "ACME CORP", Description: "Based in Berlin.", SourceChunkIDs: []string{"c2"}},
		{Name: "  ", Description: "dropped"},
		{Name: "Other", Type: "PERSON"},
	}

	out := mergeEntityBatch(in, 0)
	if len(out) != 2 {
		t.Fatalf("expected 2 merged entities, got %d", len(out))
	}
	if out[0].Name != "ACME CORP" {
		t.Fatalf("expected normalized name ACME CORP, got %q", out[0].Name)
	}
	want := "A company." + common.DescriptionSeparator + "Based in Berlin."
	if out[0].Description != want {
		t.Fatalf("descriptions not merged: %q", out[0].Description)
	}
	if len(out[0].SourceChunkIDs) != 2 {
		t.Fatalf("chunk ids not unioned: %v", out[0].SourceChunkIDs)
	}
}

func TestMergeRelationBatchWeightLastWrite(t *testing.T) {
	in := []common.Relation{
		{Source: "a", Target: "b", Weight: 3, Description: "first"},
		{Source: "A", Target: "B", Weight: 7, Description: "second"},
		{Source: "b", Target: "a", Weight: 1},
	}

	out := mergeRelationBatch(in, 0)
	if len(out) != 2 {
		t.Fatalf("ordered pairs must stay distinct, got %d relations", len(out))
	}
	if out[0].Weight != 7 {
		t.Fatalf("weight must take the latest write, got %v", out[0].Weight)
	}
}

func TestSchemaNameQuoting(t *testing.T) {
	if got := schemaName("acme-1"); got != "mg_acme-1" {
		t.Fatalf("unexpected schema name %q", got)
	}
	if got := quotedSchema("acme-1"); got != `"mg_acme-1"` {
		t.Fatalf("unexpected quoted schema %q", got)
	}
}

func TestMapSchemaErr(t *testing.T) {
	for _, code := range []string{"3F000", "42P01"} {
		err := mapSchemaErr(&pgconn.PgError{Code: code}, "acme")
		if !errors.Is(err, store.ErrGraphNotFound) {
			t.Fatalf("code %s must map to ErrGraphNotFound, got %v", code, err)
		}
	}

	other := &pgconn.PgError{Code: "23505"}
	if err := mapSchemaErr(other, "acme"); !errors.Is(err, other) {
		t.Fatalf("unrelated errors must pass through, got %v", err)
	}
	if mapSchemaErr(nil, "acme") != nil {
		t.Fatal("nil must stay nil")
	}
}
