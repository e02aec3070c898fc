package query

import (
	"fmt"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// ItemKind classifies a context item by the store it came from.
type ItemKind string

const (
	ItemEntity   ItemKind = "entity"
	ItemRelation ItemKind = "relation"
	ItemChunk    ItemKind = "chunk"
)

// Item is one candidate piece of context. Text is the rendered form
// that would appear in the prompt, Tokens its cost under the engine
// codec, and Score the retrieval score used for ordering (higher is
// better; graph-expanded items carry the score of the hit that pulled
// them in).
type Item struct {
	Kind   ItemKind
	ID     string
	Text   string
	Tokens int
	Score  float64

	// DocumentID and ChunkIndex carry chunk provenance for citation.
	DocumentID string
	ChunkIndex int
}

func entityItem(codec *tokens.Codec, e common.Entity, score float64) Item {
	text := fmt.Sprintf("%s (%s): %s", e.Name, e.Type, e.Description)
	return Item{
		Kind:   ItemEntity,
		ID:     "ent:" + e.Name,
		Text:   text,
		Tokens: codec.Count(text),
		Score:  score,
	}
}

func relationItem(codec *tokens.Codec, r common.Relation, score float64) Item {
	var text string
	if len(r.Keywords) > 0 {
		text = fmt.Sprintf("%s -> %s (%s): %s", r.Source, r.Target, strings.Join(r.Keywords, ", "), r.Description)
	} else {
		text = fmt.Sprintf("%s -> %s: %s", r.Source, r.Target, r.Description)
	}
	return Item{
		Kind:   ItemRelation,
		ID:     "rel:" + r.Source + "->" + r.Target,
		Text:   text,
		Tokens: codec.Count(text),
		Score:  score,
	}
}

func chunkItem(codec *tokens.Codec, m store.VectorMatch) Item {
	return Item{
		Kind:       ItemChunk,
		ID:         m.ID,
		Text:       m.Content,
		Tokens:     codec.Count(m.Content),
		Score:      m.Score,
		DocumentID: m.DocumentID,
		ChunkIndex: m.ChunkIndex,
	}
}
