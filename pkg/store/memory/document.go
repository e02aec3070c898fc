package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

// DocumentStore tracks document processing state in memory.
type DocumentStore struct {
	locker
	docs map[string]common.Document
}

// NewDocumentStore creates an in-memory DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]common.Document)}
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// Create inserts a new document in status not_processed.
func (s *DocumentStore) Create(_ context.Context, doc common.Document) error {
	t, err := store.ValidateTenant(doc.Tenant)
	if err != nil {
		return err
	}
	doc.Tenant = t
	if doc.Status == "" {
		doc.Status = common.DocStatusNotProcessed
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %q already exists", doc.ID)
	}
	s.docs[doc.ID] = doc
	return nil
}

// Get returns one document by id or store.ErrNotFound.
func (s *DocumentStore) Get(_ context.Context, id string) (common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return common.Document{}, fmt.Errorf("document %q: %w", id, store.ErrNotFound)
	}
	return doc, nil
}

// ClaimProcessing atomically moves a document from not_processed to
// processing.
func (s *DocumentStore) ClaimProcessing(_ context.Context, id string) (common.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return common.Document{}, fmt.Errorf("document %q: %w", id, store.ErrNotFound)
	}
	if doc.Status != common.DocStatusNotProcessed {
		return common.Document{}, fmt.Errorf("document %q: %w", id, store.ErrAlreadyClaimed)
	}
	doc.Status = common.DocStatusProcessing
	doc.UpdatedAt = time.Now()
	s.docs[id] = doc
	return doc, nil
}

// MarkProcessed finishes the state machine for one document.
func (s *DocumentStore) MarkProcessed(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, common.DocStatusProcessed, "")
}

// MarkFailed records a terminal failure with its reason.
func (s *DocumentStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, common.DocStatusFailed, reason)
}

func (s *DocumentStore) setStatus(_ context.Context, id string, status common.DocumentStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, store.ErrNotFound)
	}
	doc.Status = status
	doc.Error = reason
	doc.UpdatedAt = time.Now()
	s.docs[id] = doc
	return nil
}

// ListByTenant returns all documents of one tenant, newest first.
func (s *DocumentStore) ListByTenant(_ context.Context, tenant string) ([]common.Document, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []common.Document
	for _, doc := range s.docs {
		if doc.Tenant == t {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteByTenant removes every document of one tenant and returns the
// count.
func (s *DocumentStore) DeleteByTenant(_ context.Context, tenant string) (int, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, doc := range s.docs {
		if doc.Tenant == t {
			delete(s.docs, id)
			removed++
		}
	}
	return removed, nil
}

// Delete removes one document by id. Missing ids are not errors.
func (s *DocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}
