package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/postgres"
)

// Schema is created by EnsureSchema. Collection ids are stored as the
// bit-identical signed value.
const Schema = `
CREATE TABLE IF NOT EXISTS vs_documents (
    collection_id BIGINT      NOT NULL,
    doc_id        BIGINT      NOT NULL,
    fields        JSONB       NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection_id, doc_id)
);
CREATE TABLE IF NOT EXISTS vs_doc_counters (
    collection_id BIGINT PRIMARY KEY,
    next_id       BIGINT NOT NULL
);`

// Postgres is a Store on PostgreSQL, for deployments where several searcher
// replicas read the same documents.
type Postgres struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgres(db *postgres.Client) *Postgres {
	return &Postgres{
		db:     db,
		logger: slog.Default().With("component", "docstore"),
	}
}

// EnsureSchema creates the document tables if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating docstore schema: %w", err)
	}
	p.logger.Info("docstore schema ready")
	return nil
}

func (p *Postgres) IncrementDocID(ctx context.Context, collectionID uint64) (int64, error) {
	var id int64
	err := p.db.DB.QueryRowContext(ctx,
		`INSERT INTO vs_doc_counters (collection_id, next_id) VALUES ($1, 1)
		ON CONFLICT (collection_id) DO UPDATE SET next_id = vs_doc_counters.next_id + 1
		RETURNING next_id - 1`, int64(collectionID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("incrementing document id: %w", err)
	}
	return id, nil
}

func (p *Postgres) PutDocument(ctx context.Context, doc *Document) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encoding document %d: %w", doc.ID, err)
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO vs_documents (collection_id, doc_id, fields) VALUES ($1, $2, $3)
		ON CONFLICT (collection_id, doc_id) DO UPDATE SET fields = EXCLUDED.fields`,
		int64(doc.CollectionID), doc.ID, fields)
	if err != nil {
		return fmt.Errorf("storing document %d: %w", doc.ID, err)
	}
	return nil
}

func (p *Postgres) ReadDocument(ctx context.Context, collectionID uint64, docID int64, selectFields []string) (*Document, error) {
	var raw []byte
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT fields FROM vs_documents WHERE collection_id = $1 AND doc_id = $2`,
		int64(collectionID), docID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d in collection %d: %w", docID, collectionID, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %d: %w", docID, err)
	}
	doc := &Document{ID: docID, CollectionID: collectionID}
	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decoding document %d: %w", docID, err)
	}
	return project(doc, selectFields), nil
}

// Close is a no-op; the postgres client is owned by the caller.
func (p *Postgres) Close() error { return nil }
