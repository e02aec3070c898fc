package query

import (
	"fmt"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

// Source identifies one context item that made it into the final prompt,
// in prompt order. IDs are the citation handles the synthesis prompt
// instructs the model to reference.
type Source struct {
	Kind       ItemKind `json:"kind"`
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Score      float64  `json:"score,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	ChunkIndex int      `json:"chunk_index,omitempty"`
}

// ContextOptions configures context rendering.
type ContextOptions struct {
	// SectionHeaders groups items under per-kind headers. When false the
	// merged order is rendered flat.
	SectionHeaders bool
}

var sectionTitles = map[ItemKind]string{
	ItemEntity:   "Entities",
	ItemRelation: "Relationships",
	ItemChunk:    "Document Excerpts",
}

// BuildContext renders merged items into the background-data block of
// the synthesis prompt and returns the ordered source list for citation
// validation. History is rendered role-tagged ahead of the data.
func BuildContext(merged []Item, history []ai.ChatMessage, opts ContextOptions) (string, []Source) {
	if len(merged) == 0 && len(history) == 0 {
		return "", nil
	}

	var b strings.Builder
	sources := make([]Source, 0, len(merged))

	if len(history) > 0 {
		b.WriteString("-----Conversation History-----\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Message)
		}
		b.WriteString("\n")
	}

	if opts.SectionHeaders {
		for _, kind := range []ItemKind{ItemEntity, ItemRelation, ItemChunk} {
			var section []Item
			for _, it := range merged {
				if it.Kind == kind {
					section = append(section, it)
				}
			}
			if len(section) == 0 {
				continue
			}
			fmt.Fprintf(&b, "-----%s-----\n", sectionTitles[kind])
			for _, it := range section {
				writeItem(&b, it)
				sources = append(sources, sourceFromItem(it))
			}
			b.WriteString("\n")
		}
	} else {
		for _, it := range merged {
			writeItem(&b, it)
			sources = append(sources, sourceFromItem(it))
		}
	}

	return strings.TrimRight(b.String(), "\n"), sources
}

func writeItem(b *strings.Builder, it Item) {
	fmt.Fprintf(b, "[%s] %s\n", it.ID, it.Text)
}

func sourceFromItem(it Item) Source {
	return Source{
		Kind:       it.Kind,
		ID:         it.ID,
		Text:       it.Text,
		Score:      it.Score,
		DocumentID: it.DocumentID,
		ChunkIndex: it.ChunkIndex,
	}
}
