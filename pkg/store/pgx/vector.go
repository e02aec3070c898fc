package pgx

import (
	"context"
	"strconv"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// VectorStore indexes chunk and entity embeddings in the shared
// public.vectors table using pgvector cosine distance. The table is
// created by migrations, not by this package.
type VectorStore struct {
	conn Conn
	dim  int
}

// NewVectorStore creates a VectorStore truncating or padding all
// embeddings to dim.
func NewVectorStore(conn Conn, dim int) *VectorStore {
	return &VectorStore{conn: conn, dim: dim}
}

var _ store.VectorStore = (*VectorStore)(nil)

const vectorUpsertSQL = `
INSERT INTO vectors (id, tenant, type, content, document_id, chunk_index, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
	type = excluded.type,
	content = excluded.content,
	document_id = excluded.document_id,
	chunk_index = excluded.chunk_index,
	embedding = excluded.embedding,
	updated_at = now()`

// Upsert writes one vector record, keyed by id.
func (s *VectorStore) Upsert(ctx context.Context, record common.VectorRecord) error {
	return s.UpsertBatch(ctx, []common.VectorRecord{record})
}

// UpsertBatch writes many vector records in pipelined batches.
func (s *VectorStore) UpsertBatch(ctx context.Context, records []common.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		t, err := store.ValidateTenant(records[i].Tenant)
		if err != nil {
			return err
		}
		records[i].Tenant = t
	}

	return store.ChunkRange(len(records), store.UpsertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, r := range records[start:end] {
			emb := pgvector.NewVector(store.TruncateEmbedding(r.Embedding, s.dim))
			batch.Queue(vectorUpsertSQL, r.ID, r.Tenant, string(r.Type), r.Content, r.DocumentID, r.ChunkIndex, emb)
		}
		logger.Debug("[Vector] Upserting vectors", "count", end-start)
		return s.conn.SendBatch(ctx, batch).Close()
	})
}

// Query returns the topK nearest records for the filter, scored by
// cosine similarity in descending order.
func (s *VectorStore) Query(ctx context.Context, vector []float32, topK int, filter store.VectorFilter) ([]store.VectorMatch, error) {
	t, err := store.ValidateTenant(filter.Tenant)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	emb := pgvector.NewVector(store.TruncateEmbedding(vector, s.dim))
	sql := `
		SELECT id, type, content, document_id, chunk_index, 1 - (embedding <=> $1) AS score
		FROM vectors
		WHERE tenant = $2`
	args := []any{emb, t}
	if filter.Type != "" {
		sql += ` AND type = $3`
		args = append(args, string(filter.Type))
	}
	sql += ` ORDER BY embedding <=> $1 LIMIT ` + strconv.Itoa(topK)

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.VectorMatch
	for rows.Next() {
		var m store.VectorMatch
		var typ string
		if err := rows.Scan(&m.ID, &typ, &m.Content, &m.DocumentID, &m.ChunkIndex, &m.Score); err != nil {
			return nil, err
		}
		m.Type = common.VectorType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes one record by id within a tenant.
func (s *VectorStore) Delete(ctx context.Context, tenant, id string) error {
	return s.DeleteBatch(ctx, tenant, []string{id})
}

// DeleteBatch removes records by id within a tenant.
func (s *VectorStore) DeleteBatch(ctx context.Context, tenant string, ids []string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err = s.conn.Exec(ctx, `DELETE FROM vectors WHERE tenant = $1 AND id = ANY($2)`, t, ids)
	return err
}

// DeleteEntityEmbeddings removes entity vectors by entity name. Entity
// vector ids are derived from normalized names by the ingestion layer.
func (s *VectorStore) DeleteEntityEmbeddings(ctx context.Context, tenant string, names []string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, common.EntityVectorID(t, n))
	}
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err = s.conn.Exec(ctx,
		`DELETE FROM vectors WHERE tenant = $1 AND type = $2 AND id = ANY($3)`,
		t, string(common.VectorTypeEntity), ids)
	return err
}

// DeleteChunkEmbeddings removes chunk vectors by chunk id.
func (s *VectorStore) DeleteChunkEmbeddings(ctx context.Context, tenant string, chunkIDs []string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	chunkIDs = store.DedupeStrings(chunkIDs)
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err = s.conn.Exec(ctx,
		`DELETE FROM vectors WHERE tenant = $1 AND type = $2 AND id = ANY($3)`,
		t, string(common.VectorTypeChunk), chunkIDs)
	return err
}

// DeleteByTenant removes every vector of one tenant and returns the
// count.
func (s *VectorStore) DeleteByTenant(ctx context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM vectors WHERE tenant = $1`, t)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// GetChunkIDsByDocument lists the chunk vector ids of one document in
// chunk order.
func (s *VectorStore) GetChunkIDsByDocument(ctx context.Context, tenant, documentID string) ([]string, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx,
		`SELECT id FROM vectors WHERE tenant = $1 AND type = $2 AND document_id = $3 ORDER BY chunk_index`,
		t, string(common.VectorTypeChunk), documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// HasVectors reports whether any vectors exist for a document.
func (s *VectorStore) HasVectors(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vectors WHERE document_id = $1)`, documentID,
	).Scan(&exists)
	return exists, err
}
