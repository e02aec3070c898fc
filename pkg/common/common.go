package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Entity is a node in a tenant's knowledge graph. An entity can be an
// organization, person, location, or any other concept the extraction
// prompt was configured with.
//
// Name is unique within one tenant's graph after normalization. Writing
// an entity whose normalized name already exists merges the two records
// instead of creating a duplicate.
type Entity struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	SourceDocumentID string   `json:"source_document_id"`
	SourceChunkIDs   []string `json:"source_chunk_ids"`
}

// Relation is a directed edge between two entities. Source/target order
// is preserved; duplicate relations for the same ordered pair merge the
// same way entities do, with Weight taking the latest write.
type Relation struct {
	Source           string   `json:"source"`
	Target           string   `json:"target"`
	Description      string   `json:"description"`
	Keywords         []string `json:"keywords"`
	Weight           float64  `json:"weight"`
	SourceDocumentID string   `json:"source_document_id"`
	SourceChunkIDs   []string `json:"source_chunk_ids"`
}

// Chunk is a bounded slice of a document's text, the unit of embedding
// and extraction input. Immutable once written; (DocumentID, ChunkIndex)
// is unique per tenant.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Tenant     string `json:"tenant"`
}

// VectorType discriminates what a vector record embeds.
type VectorType string

const (
	VectorTypeChunk  VectorType = "chunk"
	VectorTypeEntity VectorType = "entity"
)

// VectorRecord is one row in the similarity index: the embedding of a
// chunk's text or of an entity's name plus description.
type VectorRecord struct {
	ID         string     `json:"id"`
	Embedding  []float32  `json:"embedding"`
	Type       VectorType `json:"type"`
	Content    string     `json:"content"`
	DocumentID string     `json:"document_id,omitempty"`
	ChunkIndex int        `json:"chunk_index,omitempty"`
	Tenant     string     `json:"tenant"`
}

// CacheKind identifies which extraction step produced a cache entry.
type CacheKind string

const (
	CacheKindEntityExtraction  CacheKind = "entity_extraction"
	CacheKindGleaning          CacheKind = "gleaning"
	CacheKindSummarization     CacheKind = "summarization"
	CacheKindKeywordExtraction CacheKind = "keyword_extraction"
)

// CacheEntry is a content-addressed record of a raw LLM output.
// (Tenant, Kind, ContentHash) is unique; a second write with the same
// key overwrites. ContentHash is the digest of the exact text submitted
// to the model, post-chunking and pre-prompt-templating, so identical
// content hits cache even when re-ingested under another document.
type CacheEntry struct {
	ID          string    `json:"id"`
	Tenant      string    `json:"tenant"`
	Kind        CacheKind `json:"kind"`
	ChunkID     string    `json:"chunk_id,omitempty"`
	ContentHash string    `json:"content_hash"`
	RawResult   string    `json:"raw_result"`
	TokensUsed  int       `json:"tokens_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentStatus is the ingestion state machine of a document.
type DocumentStatus string

const (
	DocStatusNotProcessed DocumentStatus = "not_processed"
	DocStatusProcessing   DocumentStatus = "processing"
	DocStatusProcessed    DocumentStatus = "processed"
	DocStatusFailed       DocumentStatus = "failed"
)

// Document tracks one ingested document and its processing state.
type Document struct {
	ID        string         `json:"id"`
	Tenant    string         `json:"tenant"`
	FileName  string         `json:"file_name"`
	Content   string         `json:"-"`
	Status    DocumentStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GraphStats summarizes one tenant's graph.
type GraphStats struct {
	EntityCount   int `json:"entity_count"`
	RelationCount int `json:"relation_count"`
}

// Subgraph is the result of a bounded traversal.
type Subgraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// NormalizeName case-folds and trims an entity name. All graph lookups
// and merge decisions operate on normalized names.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// EntityVectorID derives the deterministic vector-record id for an
// entity embedding. Using the normalized name keeps re-ingestion
// idempotent: the same entity always overwrites its own vector.
func EntityVectorID(tenant, name string) string {
	return "ent:" + tenant + ":" + NormalizeName(name)
}

// ChunkVectorID derives the deterministic vector-record id for a chunk
// embedding. (DocumentID, ChunkIndex) is unique per tenant, so the id
// doubles as the chunk id used in provenance and the extraction cache.
func ChunkVectorID(tenant, documentID string, chunkIndex int) string {
	return "chunk:" + tenant + ":" + documentID + ":" + strconv.Itoa(chunkIndex)
}

// ContentHash returns the hex SHA-256 digest of the exact text submitted
// to the model. Byte-for-byte hashing of the submitted body is a
// correctness contract of the extraction cache: changing prompt inputs
// invalidates the cache.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
