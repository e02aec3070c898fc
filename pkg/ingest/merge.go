package ingest

import "github.com/mangrove-ai/mangrove/pkg/common"

// MergeEntities folds duplicate names from one extraction batch using
// the same merge rule the stores apply on conflict, so the result of an
// ingestion run is independent of how entities were spread over chunks.
func MergeEntities(entities []common.Entity, maxDescLen int) []common.Entity {
	byName := make(map[string]int, len(entities))
	out := make([]common.Entity, 0, len(entities))
	for _, e := range entities {
		e.Name = common.NormalizeName(e.Name)
		if e.Name == "" {
			continue
		}
		if idx, ok := byName[e.Name]; ok {
			out[idx] = common.MergeEntity(out[idx], e, maxDescLen)
			continue
		}
		byName[e.Name] = len(out)
		out = append(out, e)
	}
	return out
}

// MergeRelations folds duplicate ordered (source, target) pairs.
func MergeRelations(relations []common.Relation, maxDescLen int) []common.Relation {
	byPair := make(map[[2]string]int, len(relations))
	out := make([]common.Relation, 0, len(relations))
	for _, r := range relations {
		r.Source = common.NormalizeName(r.Source)
		r.Target = common.NormalizeName(r.Target)
		if r.Source == "" || r.Target == "" {
			continue
		}
		key := [2]string{r.Source, r.Target}
		if idx, ok := byPair[key]; ok {
			out[idx] = common.MergeRelation(out[idx], r, maxDescLen)
			continue
		}
		byPair[key] = len(out)
		out = append(out, r)
	}
	return out
}
