package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// GraphStore persists one knowledge graph per tenant, each in its own
// schema. Merge-on-conflict happens inside the upsert statements so
// concurrent writers never lose description fragments.
type GraphStore struct {
	conn       Conn
	maxDescLen int
}

// NewGraphStore creates a GraphStore. maxDescLen bounds merged
// descriptions; values below 1 disable truncation.
func NewGraphStore(conn Conn, maxDescLen int) *GraphStore {
	if maxDescLen < 1 {
		maxDescLen = 1 << 20
	}
	return &GraphStore{conn: conn, maxDescLen: maxDescLen}
}

var _ store.GraphStore = (*GraphStore)(nil)

// CreateGraph creates the tenant's schema and graph tables. Idempotent.
func (s *GraphStore) CreateGraph(ctx context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	schema := quotedSchema(t)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.entities (
			id bigserial PRIMARY KEY,
			name text NOT NULL UNIQUE,
			type text NOT NULL DEFAULT '',
			description text NOT NULL DEFAULT '',
			source_doc_id text NOT NULL DEFAULT '',
			chunk_ids text[] NOT NULL DEFAULT '{}',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS entities_source_doc_idx ON %s.entities (source_doc_id)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.relations (
			id bigserial PRIMARY KEY,
			source_entity text NOT NULL,
			target_entity text NOT NULL,
			description text NOT NULL DEFAULT '',
			keywords text[] NOT NULL DEFAULT '{}',
			weight double precision NOT NULL DEFAULT 1,
			source_doc_id text NOT NULL DEFAULT '',
			chunk_ids text[] NOT NULL DEFAULT '{}',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			UNIQUE (source_entity, target_entity)
		)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS relations_source_idx ON %s.relations (source_entity)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS relations_target_idx ON %s.relations (target_entity)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS relations_source_doc_idx ON %s.relations (source_doc_id)`, schema),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	logger.Debug("[Graph] Created graph schema", "tenant", t)
	return tx.Commit(ctx)
}

// DeleteGraph drops the tenant's schema and everything in it.
// Idempotent.
func (s *GraphStore) DeleteGraph(ctx context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, quotedSchema(t)))
	if err != nil {
		return err
	}
	logger.Debug("[Graph] Dropped graph schema", "tenant", t)
	return nil
}

// GraphExists reports whether the tenant's schema exists.
func (s *GraphStore) GraphExists(ctx context.Context, tenant string) (bool, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schemaName(t),
	).Scan(&exists)
	return exists, err
}

// entityUpsertSQL merges on the unique name: description fragments
// already contained in the stored description are not appended again,
// chunk ids are unioned, and weightless fields take the latest write.
const entityUpsertSQL = `
INSERT INTO %s.entities (name, type, description, source_doc_id, chunk_ids, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (name) DO UPDATE SET
	type = CASE WHEN excluded.type <> '' THEN excluded.type ELSE entities.type END,
	description = left(CASE
		WHEN excluded.description = '' THEN entities.description
		WHEN entities.description = '' THEN excluded.description
		WHEN position(excluded.description IN entities.description) > 0 THEN entities.description
		ELSE entities.description || E'\n\n' || excluded.description
	END, $6),
	source_doc_id = excluded.source_doc_id,
	chunk_ids = (SELECT coalesce(array_agg(DISTINCT c), '{}') FROM unnest(entities.chunk_ids || excluded.chunk_ids) AS c),
	updated_at = now()`

const relationUpsertSQL = `
INSERT INTO %s.relations (source_entity, target_entity, description, keywords, weight, source_doc_id, chunk_ids, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (source_entity, target_entity) DO UPDATE SET
	description = left(CASE
		WHEN excluded.description = '' THEN relations.description
		WHEN relations.description = '' THEN excluded.description
		WHEN position(excluded.description IN relations.description) > 0 THEN relations.description
		ELSE relations.description || E'\n\n' || excluded.description
	END, $8),
	keywords = (SELECT coalesce(array_agg(DISTINCT k), '{}') FROM unnest(relations.keywords || excluded.keywords) AS k),
	weight = excluded.weight,
	source_doc_id = excluded.source_doc_id,
	chunk_ids = (SELECT coalesce(array_agg(DISTINCT c), '{}') FROM unnest(relations.chunk_ids || excluded.chunk_ids) AS c),
	updated_at = now()`

// UpsertEntity writes or merges one entity.
func (s *GraphStore) UpsertEntity(ctx context.Context, tenant string, entity common.Entity) error {
	return s.UpsertEntities(ctx, tenant, []common.Entity{entity})
}

// UpsertEntities writes or merges a batch of entities. Duplicates
// within the batch are merged in memory first so one statement per
// distinct name reaches the database.
func (s *GraphStore) UpsertEntities(ctx context.Context, tenant string, entities []common.Entity) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	merged := mergeEntityBatch(entities, s.maxDescLen)
	if len(merged) == 0 {
		return nil
	}

	sql := fmt.Sprintf(entityUpsertSQL, quotedSchema(t))
	err = store.ChunkRange(len(merged), store.UpsertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range merged[start:end] {
			batch.Queue(sql, e.Name, e.Type, e.Description, e.SourceDocumentID, e.SourceChunkIDs, s.maxDescLen)
		}
		logger.Debug("[Graph] Upserting entities", "tenant", t, "count", end-start)
		return s.conn.SendBatch(ctx, batch).Close()
	})
	return mapSchemaErr(err, t)
}

// UpsertRelation writes or merges one relation.
func (s *GraphStore) UpsertRelation(ctx context.Context, tenant string, relation common.Relation) error {
	return s.UpsertRelations(ctx, tenant, []common.Relation{relation})
}

// UpsertRelations writes or merges a batch of relations.
func (s *GraphStore) UpsertRelations(ctx context.Context, tenant string, relations []common.Relation) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	merged := mergeRelationBatch(relations, s.maxDescLen)
	if len(merged) == 0 {
		return nil
	}

	sql := fmt.Sprintf(relationUpsertSQL, quotedSchema(t))
	err = store.ChunkRange(len(merged), store.UpsertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, r := range merged[start:end] {
			batch.Queue(sql, r.Source, r.Target, r.Description, r.Keywords, r.Weight, r.SourceDocumentID, r.SourceChunkIDs, s.maxDescLen)
		}
		logger.Debug("[Graph] Upserting relations", "tenant", t, "count", end-start)
		return s.conn.SendBatch(ctx, batch).Close()
	})
	return mapSchemaErr(err, t)
}

const entityColumns = `name, type, description, source_doc_id, chunk_ids`
const relationColumns = `source_entity, target_entity, description, keywords, weight, source_doc_id, chunk_ids`

// GetEntity looks up one entity by normalized name.
func (s *GraphStore) GetEntity(ctx context.Context, tenant, name string) (common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.Entity{}, err
	}
	row := s.conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s.entities WHERE name = $1`, entityColumns, quotedSchema(t)),
		common.NormalizeName(name),
	)
	e, err := scanEntity(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Entity{}, fmt.Errorf("entity %q: %w", name, store.ErrNotFound)
	}
	return e, mapSchemaErr(err, t)
}

// GetEntities looks up several entities by name; missing names are
// omitted.
func (s *GraphStore) GetEntities(ctx context.Context, tenant string, names []string) ([]common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = common.NormalizeName(n)
	}
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s.entities WHERE name = ANY($1)`, entityColumns, quotedSchema(t)),
		store.DedupeStrings(normalized),
	)
	if err != nil {
		return nil, mapSchemaErr(err, t)
	}
	return collectEntities(rows, t)
}

// GetAllEntities returns every entity in the tenant's graph.
func (s *GraphStore) GetAllEntities(ctx context.Context, tenant string) ([]common.Entity, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s.entities ORDER BY name`, entityColumns, quotedSchema(t)))
	if err != nil {
		return nil, mapSchemaErr(err, t)
	}
	return collectEntities(rows, t)
}

// GetAllRelations returns every relation in the tenant's graph.
func (s *GraphStore) GetAllRelations(ctx context.Context, tenant string) ([]common.Relation, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s.relations ORDER BY source_entity, target_entity`, relationColumns, quotedSchema(t)))
	if err != nil {
		return nil, mapSchemaErr(err, t)
	}
	return collectRelations(rows, t)
}

// GetRelationsForEntity returns relations touching the named entity on
// either end.
func (s *GraphStore) GetRelationsForEntity(ctx context.Context, tenant, name string) ([]common.Relation, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	n := common.NormalizeName(name)
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s.relations WHERE source_entity = $1 OR target_entity = $1`, relationColumns, quotedSchema(t)),
		n,
	)
	if err != nil {
		return nil, mapSchemaErr(err, t)
	}
	return collectRelations(rows, t)
}

// DeleteBySourceDocument removes all graph records contributed by one
// document and returns how many were removed.
func (s *GraphStore) DeleteBySourceDocument(ctx context.Context, tenant, documentID string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	schema := quotedSchema(t)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, table := range []string{"entities", "relations"} {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s.%s WHERE source_doc_id = $1`, schema, table),
			documentID,
		)
		if err != nil {
			return 0, mapSchemaErr(err, t)
		}
		total += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	logger.Debug("[Graph] Deleted by source document", "tenant", t, "document", documentID, "removed", total)
	return total, nil
}

// Traverse walks the undirected neighborhood of startEntity up to
// maxDepth hops, loading one frontier per round trip.
func (s *GraphStore) Traverse(ctx context.Context, tenant, startEntity string, maxDepth int) (common.Subgraph, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.Subgraph{}, err
	}
	start := common.NormalizeName(startEntity)

	visited := map[string]bool{start: true}
	seenRel := map[string]bool{}
	var relations []common.Relation
	frontier := []string{start}

	schema := quotedSchema(t)
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		rows, err := s.conn.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM %s.relations WHERE source_entity = ANY($1) OR target_entity = ANY($1)`, relationColumns, schema),
			frontier,
		)
		if err != nil {
			return common.Subgraph{}, mapSchemaErr(err, t)
		}
		batch, err := collectRelations(rows, t)
		if err != nil {
			return common.Subgraph{}, err
		}

		next := make([]string, 0)
		for _, r := range batch {
			key := r.Source + "\x00" + r.Target
			if !seenRel[key] {
				seenRel[key] = true
				relations = append(relations, r)
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
	entities, err := s.GetEntities(ctx, t, names)
	if err != nil {
		return common.Subgraph{}, err
	}
	return common.Subgraph{Entities: entities, Relations: relations}, nil
}

// ShortestPath finds a shortest undirected path between two entities
// with a breadth-first search over the edge list. Returns an empty
// slice when no path exists.
func (s *GraphStore) ShortestPath(ctx context.Context, tenant, from, to string) ([]string, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	src := common.NormalizeName(from)
	dst := common.NormalizeName(to)
	if src == dst {
		return []string{src}, nil
	}

	relations, err := s.GetAllRelations(ctx, t)
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
func (s *GraphStore) GetStats(ctx context.Context, tenant string) (common.GraphStats, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.GraphStats{}, err
	}
	schema := quotedSchema(t)
	var stats common.GraphStats
	err = s.conn.QueryRow(ctx, fmt.Sprintf(
		`SELECT (SELECT count(*) FROM %s.entities), (SELECT count(*) FROM %s.relations)`,
		schema, schema,
	)).Scan(&stats.EntityCount, &stats.RelationCount)
	return stats, mapSchemaErr(err, t)
}

func scanEntity(row pgxv5.Row) (common.Entity, error) {
	var e common.Entity
	err := row.Scan(&e.Name, &e.Type, &e.Description, &e.SourceDocumentID, &e.SourceChunkIDs)
	return e, err
}

func collectEntities(rows pgxv5.Rows, tenant string) ([]common.Entity, error) {
	defer rows.Close()
	var out []common.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapSchemaErr(rows.Err(), tenant)
}

func collectRelations(rows pgxv5.Rows, tenant string) ([]common.Relation, error) {
	defer rows.Close()
	var out []common.Relation
	for rows.Next() {
		var r common.Relation
		if err := rows.Scan(&r.Source, &r.Target, &r.Description, &r.Keywords, &r.Weight, &r.SourceDocumentID, &r.SourceChunkIDs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapSchemaErr(rows.Err(), tenant)
}

// mergeEntityBatch folds duplicate names within a single batch so each
// name reaches the database once. Names are normalized here; callers
// may pass raw extraction output.
func mergeEntityBatch(entities []common.Entity, maxDescLen int) []common.Entity {
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

func mergeRelationBatch(relations []common.Relation, maxDescLen int) []common.Relation {
	byPair := make(map[string]int, len(relations))
	out := make([]common.Relation, 0, len(relations))
	for _, r := range relations {
		r.Source = common.NormalizeName(r.Source)
		r.Target = common.NormalizeName(r.Target)
		if r.Source == "" || r.Target == "" {
			continue
		}
		key := r.Source + "\x00" + r.Target
		if idx, ok := byPair[key]; ok {
			out[idx] = common.MergeRelation(out[idx], r, maxDescLen)
			continue
		}
		byPair[key] = len(out)
		out = append(out, r)
	}
	return out
}
