// Package docstore keeps the original field values of indexed documents and
// hands out per-collection document ids.
package docstore

import (
	"context"
	"fmt"
)

// Document is a stored document. Fields hold the raw values as ingested.
type Document struct {
	ID           int64          `json:"id" msgpack:"id"`
	CollectionID uint64         `json:"collection_id" msgpack:"cid"`
	Fields       map[string]any `json:"fields" msgpack:"f"`
}

// Store persists documents. Document ids are dense per collection and start
// at zero.
type Store interface {
	IncrementDocID(ctx context.Context, collectionID uint64) (int64, error)
	PutDocument(ctx context.Context, doc *Document) error
	// ReadDocument returns the document projected onto selectFields; an
	// empty selection returns every field. A missing document is
	// ErrDocumentNotFound.
	ReadDocument(ctx context.Context, collectionID uint64, docID int64, selectFields []string) (*Document, error)
	Close() error
}

func project(doc *Document, selectFields []string) *Document {
	out := &Document{ID: doc.ID, CollectionID: doc.CollectionID}
	if len(selectFields) == 0 {
		out.Fields = make(map[string]any, len(doc.Fields))
		for k, v := range doc.Fields {
			out.Fields[k] = v
		}
		return out
	}
	out.Fields = make(map[string]any, len(selectFields))
	for _, f := range selectFields {
		if v, ok := doc.Fields[f]; ok {
			out.Fields[f] = v
		}
	}
	return out
}

// Text returns the indexable text of a field value. Nested values are not
// indexed.
func Text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case nil, map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}
