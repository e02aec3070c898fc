package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Cache stores raw model outputs in the shared extraction_cache table,
// addressed by (tenant, kind, content_hash).
type Cache struct {
	conn Conn
}

// NewCache creates an extraction cache backed by PostgreSQL.
func NewCache(conn Conn) *Cache {
	return &Cache{conn: conn}
}

var _ store.ExtractionCache = (*Cache)(nil)

const cacheColumns = `id, tenant, kind, chunk_id, content_hash, raw_result, tokens_used, created_at`

const cacheUpsertSQL = `
	INSERT INTO extraction_cache (id, tenant, kind, chunk_id, content_hash, raw_result, tokens_used)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (tenant, kind, content_hash) DO UPDATE SET
		chunk_id = excluded.chunk_id,
		raw_result = excluded.raw_result,
		tokens_used = excluded.tokens_used,
		updated_at = now()
	RETURNING id`

// Store upserts an entry on the (tenant, kind, contentHash) key. Last
// write wins; the id of the surviving row is returned.
func (c *Cache) Store(ctx context.Context, entry common.CacheEntry) (string, error) {
	t, err := store.ValidateTenant(entry.Tenant)
	if err != nil {
		return "", err
	}
	if entry.ContentHash == "" {
		return "", fmt.Errorf("cache entry content hash is empty")
	}
	id := entry.ID
	if id == "" {
		id, err = gonanoid.New()
		if err != nil {
			return "", err
		}
	}

	var out string
	err = c.conn.QueryRow(ctx, cacheUpsertSQL,
		id, t, string(entry.Kind), entry.ChunkID, entry.ContentHash, entry.RawResult, entry.TokensUsed,
	).Scan(&out)
	return out, err
}

// Get returns the entry for a key or store.ErrNotFound.
func (c *Cache) Get(ctx context.Context, tenant string, kind common.CacheKind, contentHash string) (common.CacheEntry, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.CacheEntry{}, err
	}
	row := c.conn.QueryRow(ctx,
		`SELECT `+cacheColumns+` FROM extraction_cache WHERE tenant = $1 AND kind = $2 AND content_hash = $3`,
		t, string(kind), contentHash)
	entry, err := scanCacheEntry(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.CacheEntry{}, store.ErrNotFound
	}
	return entry, err
}

// GetByChunk returns all entries recorded for one chunk.
func (c *Cache) GetByChunk(ctx context.Context, tenant, chunkID string) ([]common.CacheEntry, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.Query(ctx,
		`SELECT `+cacheColumns+` FROM extraction_cache WHERE tenant = $1 AND chunk_id = $2 ORDER BY created_at`,
		t, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteByTenant removes every entry of one tenant and returns the
// count.
func (c *Cache) DeleteByTenant(ctx context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	tag, err := c.conn.Exec(ctx, `DELETE FROM extraction_cache WHERE tenant = $1`, t)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteByChunks removes entries recorded for the given chunks.
func (c *Cache) DeleteByChunks(ctx context.Context, tenant string, chunkIDs []string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	chunkIDs = store.DedupeStrings(chunkIDs)
	if len(chunkIDs) == 0 {
		return 0, nil
	}
	tag, err := c.conn.Exec(ctx,
		`DELETE FROM extraction_cache WHERE tenant = $1 AND chunk_id = ANY($2)`, t, chunkIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanCacheEntry(row pgxv5.Row) (common.CacheEntry, error) {
	var e common.CacheEntry
	var kind string
	err := row.Scan(&e.ID, &e.Tenant, &kind, &e.ChunkID, &e.ContentHash, &e.RawResult, &e.TokensUsed, &e.CreatedAt)
	e.Kind = common.CacheKind(kind)
	return e, err
}
