package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// DocumentStore tracks document processing state in the shared
// documents table. Raw document text is stored alongside the state so
// workers need no separate object store.
type DocumentStore struct {
	conn Conn
}

// NewDocumentStore creates a DocumentStore backed by PostgreSQL.
func NewDocumentStore(conn Conn) *DocumentStore {
	return &DocumentStore{conn: conn}
}

var _ store.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, tenant, file_name, content, status, error, created_at, updated_at`

// Create inserts a new document in status not_processed.
func (s *DocumentStore) Create(ctx context.Context, doc common.Document) error {
	t, err := store.ValidateTenant(doc.Tenant)
	if err != nil {
		return err
	}
	status := doc.Status
	if status == "" {
		status = common.DocStatusNotProcessed
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO documents (id, tenant, file_name, content, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, t, doc.FileName, doc.Content, string(status), doc.Error)
	return err
}

// Get returns one document by id or store.ErrNotFound.
func (s *DocumentStore) Get(ctx context.Context, id string) (common.Document, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, fmt.Errorf("document %q: %w", id, store.ErrNotFound)
	}
	return doc, err
}

// ClaimProcessing atomically moves a document from not_processed to
// processing. The conditional UPDATE is the claim: whichever worker's
// statement matches the row wins, the other sees zero rows.
func (s *DocumentStore) ClaimProcessing(ctx context.Context, id string) (common.Document, error) {
	row := s.conn.QueryRow(ctx, `
		UPDATE documents SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING `+documentColumns,
		string(common.DocStatusProcessing), id, string(common.DocStatusNotProcessed))
	doc, err := scanDocument(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return common.Document{}, getErr
		}
		return common.Document{}, fmt.Errorf("document %q: %w", id, store.ErrAlreadyClaimed)
	}
	return doc, err
}

// MarkProcessed finishes the state machine for one document.
func (s *DocumentStore) MarkProcessed(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, common.DocStatusProcessed, "")
}

// MarkFailed records a terminal failure with its reason.
func (s *DocumentStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, common.DocStatusFailed, reason)
}

func (s *DocumentStore) setStatus(ctx context.Context, id string, status common.DocumentStatus, reason string) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE documents SET status = $1, error = $2, updated_at = now() WHERE id = $3`,
		string(status), reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %q: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListByTenant returns all documents of one tenant, newest first.
func (s *DocumentStore) ListByTenant(ctx context.Context, tenant string) ([]common.Document, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant = $1 ORDER BY created_at DESC`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteByTenant removes every document of one tenant and returns the
// count.
func (s *DocumentStore) DeleteByTenant(ctx context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE tenant = $1`, t)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one document by id. Missing ids are not errors.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func scanDocument(row pgxv5.Row) (common.Document, error) {
	var d common.Document
	var status string
	err := row.Scan(&d.ID, &d.Tenant, &d.FileName, &d.Content, &status, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	d.Status = common.DocumentStatus(status)
	return d, err
}
