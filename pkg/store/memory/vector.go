package memory

import (
	"context"
	"math"
	"sort"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

// VectorStore keeps embeddings in memory and scans them linearly with
// cosine similarity. Good enough for tests and small local corpora.
type VectorStore struct {
	locker
	dim     int
	records map[string]map[string]common.VectorRecord
}

// NewVectorStore creates an in-memory VectorStore truncating or
// padding all embeddings to dim.
func NewVectorStore(dim int) *VectorStore {
	return &VectorStore{
		dim:     dim,
		records: make(map[string]map[string]common.VectorRecord),
	}
}

var _ store.VectorStore = (*VectorStore)(nil)

// Upsert writes one vector record, keyed by id.
func (s *VectorStore) Upsert(ctx context.Context, record common.VectorRecord) error {
	return s.UpsertBatch(ctx, []common.VectorRecord{record})
}

// UpsertBatch writes many vector records.
func (s *VectorStore) UpsertBatch(_ context.Context, records []common.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		t, err := store.ValidateTenant(r.Tenant)
		if err != nil {
			return err
		}
		r.Tenant = t
		r.Embedding = store.TruncateEmbedding(r.Embedding, s.dim)
		if s.records[t] == nil {
			s.records[t] = make(map[string]common.VectorRecord)
		}
		s.records[t][r.ID] = r
	}
	return nil
}

// Query returns the topK nearest records by cosine similarity.
func (s *VectorStore) Query(_ context.Context, vector []float32, topK int, filter store.VectorFilter) ([]store.VectorMatch, error) {
	t, err := store.ValidateTenant(filter.Tenant)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	query := store.TruncateEmbedding(vector, s.dim)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.VectorMatch
	for _, r := range s.records[t] {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, store.VectorMatch{
			ID:         r.ID,
			Score:      cosineSimilarity(query, r.Embedding),
			Type:       r.Type,
			Content:    r.Content,
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Delete removes one record by id within a tenant.
func (s *VectorStore) Delete(ctx context.Context, tenant, id string) error {
	return s.DeleteBatch(ctx, tenant, []string{id})
}

// DeleteBatch removes records by id within a tenant.
func (s *VectorStore) DeleteBatch(_ context.Context, tenant string, ids []string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records[t], id)
	}
	return nil
}

// DeleteEntityEmbeddings removes entity vectors by entity name.
func (s *VectorStore) DeleteEntityEmbeddings(ctx context.Context, tenant string, names []string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, common.EntityVectorID(t, n))
	}
	return s.DeleteBatch(ctx, t, ids)
}

// DeleteChunkEmbeddings removes chunk vectors by chunk id.
func (s *VectorStore) DeleteChunkEmbeddings(ctx context.Context, tenant string, chunkIDs []string) error {
	return s.DeleteBatch(ctx, tenant, chunkIDs)
}

// DeleteByTenant removes every vector of one tenant and returns the
// count.
func (s *VectorStore) DeleteByTenant(_ context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records[t])
	delete(s.records, t)
	return n, nil
}

// GetChunkIDsByDocument lists chunk vector ids of one document in
// chunk order.
func (s *VectorStore) GetChunkIDsByDocument(_ context.Context, tenant, documentID string) ([]string, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	type chunkRef struct {
		id    string
		index int
	}
	var refs []chunkRef
	for _, r := range s.records[t] {
		if r.Type == common.VectorTypeChunk && r.DocumentID == documentID {
			refs = append(refs, chunkRef{id: r.ID, index: r.ChunkIndex})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].index < refs[j].index })
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.id
	}
	return out, nil
}

// HasVectors reports whether any vectors exist for a document across
// all tenants.
func (s *VectorStore) HasVectors(_ context.Context, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tenantRecords := range s.records {
		for _, r := range tenantRecords {
			if r.DocumentID == documentID {
				return true, nil
			}
		}
	}
	return false, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
