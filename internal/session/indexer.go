package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
)

// FieldTokens are the vectors of one document field, ready for Put.
type FieldTokens struct {
	DocID   int64
	KeyID   int64
	Key     string
	Vectors []*vector.Vector
}

// Indexer ties the document store, the key maps and the model together so
// raw documents can be turned into column input.
type Indexer struct {
	provider *storage.Provider
	docs     docstore.Store
	model    model.Model
	strategy strategy.Strategy
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIndexer returns an Indexer that stores documents in docs and writes
// their columns under provider.
func NewIndexer(provider *storage.Provider, docs docstore.Store, m model.Model, strat strategy.Strategy, met *metrics.Metrics) *Indexer {
	return &Indexer{
		provider: provider,
		docs:     docs,
		model:    m,
		strategy: strat,
		metrics:  met,
		logger:   slog.Default().With("component", "indexer"),
	}
}

func (ix *Indexer) Strategy() strategy.Strategy { return ix.strategy }

// OpenSession starts an index session for a collection.
func (ix *Indexer) OpenSession(collectionID uint64) *IndexSession {
	return NewIndexSession(ix.provider, collectionID, ix.strategy, ix.model, ix.metrics)
}

// Store assigns the next document id of the collection and persists the
// fields.
func (ix *Indexer) Store(ctx context.Context, collectionID uint64, fields map[string]any) (*docstore.Document, error) {
	id, err := ix.docs.IncrementDocID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("assigning document id: %w", err)
	}
	doc := &docstore.Document{ID: id, CollectionID: collectionID, Fields: fields}
	if err := ix.docs.PutDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Analyze embeds every text-valued field of doc, registering unseen field
// names in the collection's key map. Fields are returned in name order.
// Supervised sessions get labelled vectors so merges can be checked.
func (ix *Indexer) Analyze(doc *docstore.Document) ([]FieldTokens, error) {
	keys, err := ix.provider.KeyMap(doc.CollectionID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Fields))
	for name := range doc.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	label := ix.strategy == strategy.Supervised
	out := make([]FieldTokens, 0, len(names))
	for _, name := range names {
		text, ok := docstore.Text(doc.Fields[name])
		if !ok {
			continue
		}
		vectors := ix.model.CreateEmbedding(text, label)
		if len(vectors) == 0 {
			continue
		}
		keyID, err := keys.EnsureKeyExists(name)
		if err != nil {
			return nil, fmt.Errorf("registering field %q: %w", name, err)
		}
		out = append(out, FieldTokens{DocID: doc.ID, KeyID: keyID, Key: name, Vectors: vectors})
	}
	return out, nil
}

// IndexDocuments stores, analyzes and indexes docs into collection and
// commits them as one batch. It returns the assigned document ids in input
// order.
func (ix *Indexer) IndexDocuments(ctx context.Context, collection string, docs []map[string]any) ([]int64, error) {
	s := ix.OpenSession(storage.CollectionID(collection))
	defer s.Close()

	ids := make([]int64, 0, len(docs))
	for _, fields := range docs {
		doc, err := ix.Store(ctx, s.CollectionID(), fields)
		if err != nil {
			return ids, err
		}
		tokens, err := ix.Analyze(doc)
		if err != nil {
			return ids, err
		}
		for _, ft := range tokens {
			if err := s.Put(ft.DocID, ft.KeyID, ft.Vectors); err != nil {
				return ids, err
			}
		}
		ids = append(ids, doc.ID)
	}
	if _, err := s.Commit(ctx); err != nil {
		return ids, err
	}
	ix.metrics.DocsIndexed(len(ids))
	ix.logger.Info("documents indexed", "collection", collection, "count", len(ids))
	return ids, nil
}
