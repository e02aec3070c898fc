package query

// MergeRoundRobin interleaves the truncated candidate lists in a fixed
// precedence order, taking one item from each non-exhausted list per
// round. No single candidate kind can dominate the context window even
// when its list is much longer than the others.
//
// precedence defaults to entity, relation, chunk when empty.
func MergeRoundRobin(c Candidates, precedence []ItemKind) []Item {
	if len(precedence) == 0 {
		precedence = []ItemKind{ItemEntity, ItemRelation, ItemChunk}
	}
	lists := map[ItemKind][]Item{
		ItemEntity:   c.Entities,
		ItemRelation: c.Relations,
		ItemChunk:    c.Chunks,
	}

	total := len(c.Entities) + len(c.Relations) + len(c.Chunks)
	merged := make([]Item, 0, total)
	cursors := make(map[ItemKind]int, len(precedence))
	for len(merged) < total {
		progressed := false
		for _, kind := range precedence {
			list := lists[kind]
			if cursors[kind] >= len(list) {
				continue
			}
			merged = append(merged, list[cursors[kind]])
			cursors[kind]++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return merged
}
