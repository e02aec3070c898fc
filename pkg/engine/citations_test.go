package engine

import (
	"testing"

	"github.com/mangrove-ai/mangrove/pkg/query"
)

func TestStripInvalidCitations(t *testing.T) {
	sources := []query.Source{
		{Kind: query.ItemEntity, ID: "ent:ACME CORP"},
		{Kind: query.ItemChunk, ID: "chunk:acme:doc-1:0"},
	}

	answer := "Acme [[ent:ACME CORP]] is real [[chunk:acme:doc-1:0]], this is not [[made-up]]."
	got := StripInvalidCitations(answer, sources)
	want := "Acme [[ent:ACME CORP]] is real [[chunk:acme:doc-1:0]], this is not ."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripInvalidCitationsNoSources(t *testing.T) {
	got := StripInvalidCitations("All invented [[a]] [[b]].", nil)
	if got != "All invented  ." {
		t.Fatalf("got %q", got)
	}
}

func TestStripInvalidCitationsUntouched(t *testing.T) {
	answer := "No citations here."
	if got := StripInvalidCitations(answer, nil); got != answer {
		t.Fatalf("got %q, want unchanged", got)
	}
}
