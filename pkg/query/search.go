package query

import (
	"context"
	"sort"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// Searcher gathers candidate entities, relations and chunks for one
// query. Entity and chunk search run against the vector store; relations
// are derived from retrieved entities via the graph. Which lists run is
// decided by the query mode.
type Searcher struct {
	client  ai.Client
	graph   store.GraphStore
	vectors store.VectorStore
	codec   *tokens.Codec
	topK    int
}

// NewSearcher creates a Searcher. topK bounds every vector query.
func NewSearcher(client ai.Client, graph store.GraphStore, vectors store.VectorStore, codec *tokens.Codec, topK int) *Searcher {
	if topK < 1 {
		topK = 20
	}
	return &Searcher{client: client, graph: graph, vectors: vectors, codec: codec, topK: topK}
}

// Candidates holds the per-kind ranked lists produced by Search. Lists
// may be empty; an empty search is a valid, not failed, stage.
type Candidates struct {
	Entities  []Item
	Relations []Item
	Chunks    []Item
}

// Search runs the candidate stage for one query. Keyword lists come from
// the extraction stage and may be empty.
func (s *Searcher) Search(ctx context.Context, tenant, queryText string, mode Mode, kw Keywords) (Candidates, error) {
	var out Candidates

	if mode == ModeBypass {
		return out, nil
	}

	var entities []scoredEntity
	if mode.usesEntities() {
		found, err := s.searchEntities(ctx, tenant, queryText, kw)
		if err != nil {
			return Candidates{}, err
		}
		entities = found
	}

	if mode.usesRelations() && len(entities) > 0 {
		relations, err := s.relationsFor(ctx, tenant, entities)
		if err != nil {
			return Candidates{}, err
		}
		for _, r := range relations {
			out.Relations = append(out.Relations, relationItem(s.codec, r, r.Weight))
		}
		sort.SliceStable(out.Relations, func(i, j int) bool {
			return out.Relations[i].Score > out.Relations[j].Score
		})
	}

	for _, e := range entities {
		out.Entities = append(out.Entities, entityItem(s.codec, e.entity, e.score))
	}

	if mode.usesChunks() {
		chunks, err := s.searchChunks(ctx, tenant, queryText)
		if err != nil {
			return Candidates{}, err
		}
		out.Chunks = chunks
	}

	logger.Debug("[Query] Candidate search done",
		"tenant", tenant,
		"mode", mode,
		"entities", len(out.Entities),
		"relations", len(out.Relations),
		"chunks", len(out.Chunks))
	return out, nil
}

type scoredEntity struct {
	entity common.Entity
	score  float64
}

// searchEntities finds entities by vector similarity over the query plus
// low-level keywords, then resolves keyword names directly against the
// graph so exact mentions are never missed. Result order follows the
// similarity ranking, keyword-only hits last.
func (s *Searcher) searchEntities(ctx context.Context, tenant, queryText string, kw Keywords) ([]scoredEntity, error) {
	probe := queryText
	if len(kw.LowLevel) > 0 {
		probe = queryText + "\n" + strings.Join(kw.LowLevel, ", ")
	}

	vec, err := s.client.Embed(ctx, probe)
	if err != nil {
		return nil, err
	}
	matches, err := s.vectors.Query(ctx, vec, s.topK, store.VectorFilter{
		Tenant: tenant,
		Type:   common.VectorTypeEntity,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(matches)+len(kw.LowLevel)+len(kw.HighLevel))
	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		name := common.NormalizeName(entityNameFromVectorID(tenant, m.ID))
		names = append(names, name)
		scores[name] = m.Score
	}
	names = append(names, kw.LowLevel...)
	names = append(names, kw.HighLevel...)

	found, err := s.graph.GetEntities(ctx, tenant, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]common.Entity, len(found))
	for _, e := range found {
		byName[common.NormalizeName(e.Name)] = e
	}

	out := make([]scoredEntity, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, raw := range names {
		name := common.NormalizeName(raw)
		if seen[name] {
			continue
		}
		seen[name] = true
		if e, ok := byName[name]; ok {
			out = append(out, scoredEntity{entity: e, score: scores[name]})
		}
	}
	return out, nil
}

// relationsFor collects the relations touching any retrieved entity,
// deduplicated by ordered pair.
func (s *Searcher) relationsFor(ctx context.Context, tenant string, entities []scoredEntity) ([]common.Relation, error) {
	seen := make(map[[2]string]bool)
	var out []common.Relation
	for _, e := range entities {
		relations, err := s.graph.GetRelationsForEntity(ctx, tenant, e.entity.Name)
		if err != nil {
			return nil, err
		}
		for _, r := range relations {
			key := [2]string{common.NormalizeName(r.Source), common.NormalizeName(r.Target)}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Searcher) searchChunks(ctx context.Context, tenant, queryText string) ([]Item, error) {
	vec, err := s.client.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	matches, err := s.vectors.Query(ctx, vec, s.topK, store.VectorFilter{
		Tenant: tenant,
		Type:   common.VectorTypeChunk,
	})
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, chunkItem(s.codec, m))
	}
	return items, nil
}

// entityNameFromVectorID recovers the entity name from a deterministic
// vector id of the form "ent:<tenant>:<NAME>".
func entityNameFromVectorID(tenant, id string) string {
	prefix := "ent:" + tenant + ":"
	if strings.HasPrefix(id, prefix) {
		return strings.TrimPrefix(id, prefix)
	}
	return id
}
