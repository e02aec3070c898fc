package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

type tenantGraph struct {
	entities  map[string]common.Entity
	relations map[[2]string]common.Relation
}

func newTenantGraph() *tenantGraph {
	return &tenantGraph{
		entities:  make(map[string]common.Entity),
		relations: make(map[[2]string]common.Relation),
	}
}

// GraphStore keeps one isolated graph per tenant in process memory.
type GraphStore struct {
	locker
	maxDescLen int
	graphs     map[string]*tenantGraph
}

// NewGraphStore creates an in-memory GraphStore. maxDescLen bounds
// merged descriptions; values below 1 disable truncation.
func NewGraphStore(maxDescLen int) *GraphStore {
	return &GraphStore{
		maxDescLen: maxDescLen,
		graphs:     make(map[string]*tenantGraph),
	}
}

var _ store.GraphStore = (*GraphStore)(nil)

func (s *GraphStore) graph(tenant string) (*tenantGraph, error) {
	g, ok := s.graphs[tenant]
	if !ok {
		return nil, fmt.Errorf("tenant %q: %w", tenant, store.ErrGraphNotFound)
	}
	return g, nil
}

// CreateGraph creates the tenant's namespace. Idempotent.
func (s *GraphStore) CreateGraph(_ context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[t]; !ok {
		s.graphs[t] = newTenantGraph()
	}
	return nil
}

// DeleteGraph drops the tenant's graph. Idempotent.
func (s *GraphStore) DeleteGraph(_ context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphs, t)
	return nil
}

// GraphExists reports whether the tenant's graph exists.
func (s *GraphStore) GraphExists(_ context.Context, tenant string) (bool, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.graphs[t]
	return ok, nil
}

// UpsertEntity writes or merges one entity.
func (s *GraphStore) UpsertEntity(ctx context.Context, tenant string, entity common.Entity) error {
	return s.UpsertEntities(ctx, tenant, []common.Entity{entity})
}

// UpsertEntities writes or merges a batch of entities.
func (s *GraphStore) UpsertEntities(_ context.Context, tenant string, entities []common.Entity) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graph(t)
	if err != nil {
		return err
	}
	for _, e := range entities {
		e.Name = common.NormalizeName(e.Name)
		if e.Name == "" {
			continue
		}
		if existing, ok := g.entities[e.Name]; ok {
			e = common.MergeEntity(existing, e, s.maxDescLen)
		} else if s.maxDescLen > 0 {
			e.Description = common.MergeDescriptions("", e.Description, s.maxDescLen)
		}
		g.entities[e.Name] = e
	}
	return nil
}

// UpsertRelation writes or merges one relation.
func (s *GraphStore) UpsertRelation(ctx context.Context, tenant string, relation common.Relation) error {
	return s.UpsertRelations(ctx, tenant, []common.Relation{relation})
}

// UpsertRelations writes or merges a batch of relations.
func (s *GraphStore) UpsertRelations(_ context.Context, tenant string, relations []common.Relation) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graph(t)
	if err != nil {
		return err
	}
	for _, r := range relations {
		r.Source = common.NormalizeName(r.Source)
		r.Target = common.NormalizeName(r.Target)
		if r.Source == "" || r.Target == "" {
			continue
		}
		key := [2]string{r.Source, r.Target}
		if existing, ok := g.relations[key]; ok {
			r = common.MergeRelation(existing, r, s.maxDescLen)
		}
		g.relations[key] = r
	}
	return nil
}

// GetEntity looks up one entity by normalized name.
func (s *GraphStore) GetEntity(_ context.Context, tenant, name string) (common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.Entity{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.graph(t)
	if err != nil {
		return common.Entity{}, err
	}
	e, ok := g.entities[common.NormalizeName(name)]
	if !ok {
		return common.Entity{}, fmt.Errorf("entity %q: %w", name, store.ErrNotFound)
	}
	return e, nil
}

// GetEntities looks up several entities; missing names are omitted.
func (s *GraphStore) GetEntities(_ context.Context, tenant string, names []string) ([]common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.graph(t)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	out := make([]common.Entity, 0, len(names))
	for _, n := range names {
		key := common.NormalizeName(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		if e, ok := g.entities[key]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllEntities returns every entity, sorted by name.
func (s *GraphStore) GetAllEntities(_ context.Context, tenant string) ([]common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.graph(t)
	if err != nil {
		return nil, err
	}
	out := make([]common.Entity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetAllRelations returns every relation, sorted by (source, target).
func (s *GraphStore) GetAllRelations(_ context.Context, tenant string) ([]common.Relation, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.graph(t)
	if err != nil {
		return nil, err
	}
	out := make([]common.Relation, 0, len(g.relations))
	for _, r := range g.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

// GetRelationsForEntity returns relations touching the named entity.
func (s *GraphStore) GetRelationsForEntity(ctx context.Context, tenant, name string) ([]common.Relation, error) {
	all, err := s.GetAllRelations(ctx, tenant)
	if err != nil {
		return nil, err
	}
	n := common.NormalizeName(name)
	out := make([]common.Relation, 0)
	for _, r := range all {
		if r.Source == n || r.Target == n {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteBySourceDocument removes all records contributed by one
// document and returns the count.
func (s *GraphStore) DeleteBySourceDocument(_ context.Context, tenant, documentID string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.graph(t)
	if err != nil {
		return 0, err
	}
	removed := 0
	for name, e := range g.entities {
		if e.SourceDocumentID == documentID {
			delete(g.entities, name)
			removed++
		}
	}
	for key, r := range g.relations {
		if r.SourceDocumentID == documentID {
			delete(g.relations, key)
			removed++
		}
	}
	return removed, nil
}

// Traverse walks the undirected neighborhood of startEntity up to
// maxDepth hops.
func (s *GraphStore) Traverse(ctx context.Context, tenant, startEntity string, maxDepth int) (common.Subgraph, error) {
	relations, err := s.GetAllRelations(ctx, tenant)
	if err != nil {
		return common.Subgraph{}, err
	}

	start := common.NormalizeName(startEntity)
	visited := map[string]bool{start: true}
	var keptRelations []common.Relation
	seenRel := map[[2]string]bool{}
	frontier := []string{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		inFrontier := make(map[string]bool, len(frontier))
		for _, n := range frontier {
			inFrontier[n] = true
		}
		var next []string
		for _, r := range relations {
			if !inFrontier[r.Source] && !inFrontier[r.Target] {
				continue
			}
			key := [2]string{r.Source, r.Target}
			if !seenRel[key] {
				seenRel[key] = true
				keptRelations = append(keptRelations, r)
			}
			for _, n := range []string{r.Source, r.Target} {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	names := make([]string, 0, len(visited))
	for n := range visited {
		names = append(names, n)
	}
	sort.Strings(names)
	entities, err := s.GetEntities(ctx, tenant, names)
	if err != nil {
		return common.Subgraph{}, err
	}
	return common.Subgraph{Entities: entities, Relations: keptRelations}, nil
}

// ShortestPath finds a shortest undirected path between two entities,
// or an empty slice when none exists.
func (s *GraphStore) ShortestPath(ctx context.Context, tenant, from, to string) ([]string, error) {
	src := common.NormalizeName(from)
	dst := common.NormalizeName(to)
	if src == dst {
		return []string{src}, nil
	}

	relations, err := s.GetAllRelations(ctx, tenant)
	if err != nil {
		return nil, err
	}
	adjacency := map[string][]string{}
	for _, r := range relations {
		adjacency[r.Source] = append(adjacency[r.Source], r.Target)
		adjacency[r.Target] = append(adjacency[r.Target], r.Source)
	}

	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = node
			if next == dst {
				path := []string{dst}
				for p := node; p != ""; p = parent[p] {
					path = append([]string{p}, path...)
				}
				return path, nil
			}
			queue = append(queue, next)
		}
	}
	return []string{}, nil
}

// GetStats counts the tenant's entities and relations.
func (s *GraphStore) GetStats(_ context.Context, tenant string) (common.GraphStats, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.GraphStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.graph(t)
	if err != nil {
		return common.GraphStats{}, err
	}
	return common.GraphStats{
		EntityCount:   len(g.entities),
		RelationCount: len(g.relations),
	}, nil
}
