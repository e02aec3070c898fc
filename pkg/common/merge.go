package common

import "strings"

// DescriptionSeparator joins description fragments accumulated across
// merges of the same entity or relation.
const DescriptionSeparator = "\n\n"

// MergeDescriptions combines an existing description with a new fragment.
// Fragments already present are not repeated, so merging identical
// content is idempotent. The result is truncated to maxLen bytes on a
// rune boundary; maxLen <= 0 disables truncation.
func MergeDescriptions(existing, incoming string, maxLen int) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return truncateRunes(incoming, maxLen)
	}

	for _, frag := range strings.Split(existing, DescriptionSeparator) {
		if strings.TrimSpace(frag) == incoming {
			return existing
		}
	}

	return truncateRunes(existing+DescriptionSeparator+incoming, maxLen)
}

// UnionChunkIDs returns the union of two chunk-id sets, preserving the
// order of first appearance.
func UnionChunkIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range incoming {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MergeEntity applies the merge-on-upsert rule: descriptions concatenate
// (deduplicated, truncated to maxDescLen), chunk ids union, type and
// document id take the latest non-empty write.
func MergeEntity(existing, incoming Entity, maxDescLen int) Entity {
	merged := existing
	merged.Description = MergeDescriptions(existing.Description, incoming.Description, maxDescLen)
	merged.SourceChunkIDs = UnionChunkIDs(existing.SourceChunkIDs, incoming.SourceChunkIDs)
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	if incoming.SourceDocumentID != "" {
		merged.SourceDocumentID = incoming.SourceDocumentID
	}
	return merged
}

// MergeRelation applies the merge rule for a duplicate ordered
// (source, target) pair. Weight is the latest write.
func MergeRelation(existing, incoming Relation, maxDescLen int) Relation {
	merged := existing
	merged.Description = MergeDescriptions(existing.Description, incoming.Description, maxDescLen)
	merged.SourceChunkIDs = UnionChunkIDs(existing.SourceChunkIDs, incoming.SourceChunkIDs)
	merged.Keywords = UnionChunkIDs(existing.Keywords, incoming.Keywords)
	merged.Weight = incoming.Weight
	if incoming.SourceDocumentID != "" {
		merged.SourceDocumentID = incoming.SourceDocumentID
	}
	return merged
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
