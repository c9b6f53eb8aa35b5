package docstore

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

type memKey struct {
	collectionID uint64
	docID        int64
}

// Memory is an in-process Store for tests and one-shot CLI runs.
type Memory struct {
	mu   sync.RWMutex
	next map[uint64]int64
	docs map[memKey]*Document
}

func NewMemory() *Memory {
	return &Memory{
		next: make(map[uint64]int64),
		docs: make(map[memKey]*Document),
	}
}

func (m *Memory) IncrementDocID(_ context.Context, collectionID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next[collectionID]
	m.next[collectionID] = id + 1
	return id, nil
}

func (m *Memory) PutDocument(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[memKey{doc.CollectionID, doc.ID}] = project(doc, nil)
	return nil
}

func (m *Memory) ReadDocument(_ context.Context, collectionID uint64, docID int64, selectFields []string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[memKey{collectionID, docID}]
	if !ok {
		return nil, fmt.Errorf("document %d in collection %d: %w", docID, collectionID, apperrors.ErrDocumentNotFound)
	}
	return project(doc, selectFields), nil
}

func (m *Memory) Close() error { return nil }
