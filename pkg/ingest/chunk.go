// Package ingest turns raw documents into graph and vector records:
// token-bounded chunking, cached LLM extraction, merge, and the
// processing pipeline tying them together.
package ingest

import (
	"strings"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// SplitText cuts text into chunks of at most maxTokens tokens with
// roughly overlap tokens repeated between neighbors. Boundaries are
// whitespace-aligned so no word is ever split. Token counts are
// computed per word, which slightly overestimates and keeps every
// chunk safely under the budget.
func SplitText(codec *tokens.Codec, text string, maxTokens, overlap int) []string {
	words := strings.Fields(util.SanitizeText(text))
	if len(words) == 0 {
		return nil
	}
	if maxTokens < 1 {
		maxTokens = 1
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 2
	}

	counts := make([]int, len(words))
	for i, w := range words {
		counts[i] = codec.Count(w) + 1
	}

	var chunks []string
	start := 0
	for start < len(words) {
		total := 0
		end := start
		for end < len(words) {
			if end > start && total+counts[end] > maxTokens {
				break
			}
			total += counts[end]
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		// walk back so the next chunk repeats up to overlap tokens
		next := end
		accumulated := 0
		for next > start+1 && accumulated+counts[next-1] <= overlap {
			accumulated += counts[next-1]
			next--
		}
		start = next
	}
	return chunks
}

// ChunkDocument splits a document's content and assigns deterministic
// chunk ids so re-ingestion overwrites instead of duplicating.
func ChunkDocument(codec *tokens.Codec, doc common.Document, maxTokens, overlap int) []common.Chunk {
	texts := SplitText(codec, doc.Content, maxTokens, overlap)
	chunks := make([]common.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = common.Chunk{
			ID:         common.ChunkVectorID(doc.Tenant, doc.ID, i),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       text,
			Tenant:     doc.Tenant,
		}
	}
	return chunks
}
