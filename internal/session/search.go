package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/postings"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/tracing"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"
)

// ScoredDocument is one materialized search result.
type ScoredDocument struct {
	Document *docstore.Document `json:"document"`
	Score    float64            `json:"score"`
}

// Result is one page of a search. Total counts every matching document,
// not just the page.
type Result struct {
	Total     int              `json:"total"`
	Documents []ScoredDocument `json:"documents"`
}

// SearchSession runs queries against the committed columns. It holds no
// per-query state and is safe for concurrent use.
type SearchSession struct {
	provider *storage.Provider
	docs     docstore.Store
	model    model.Model
	strategy strategy.Strategy
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSearchSession returns a session answering queries from the columns
// under provider and the documents in docs.
func NewSearchSession(provider *storage.Provider, docs docstore.Store, m model.Model, strat strategy.Strategy, met *metrics.Metrics) *SearchSession {
	return &SearchSession{
		provider: provider,
		docs:     docs,
		model:    m,
		strategy: strat,
		metrics:  met,
		logger:   slog.Default().With("component", "search-session"),
	}
}

// Search runs q and returns documents skip through skip+take of the ranked
// result. A take of zero or less returns everything after skip.
//
// The pipeline is scan, resolve, score, sort, materialize. Fields without a
// committed column match nothing.
func (s *SearchSession) Search(ctx context.Context, q *query.Query, skip, take int) (*Result, error) {
	start := time.Now()
	ctx, span, root := startSpan(ctx)
	defer func() {
		span.End()
		if root {
			s.metrics.ObserveStages(span.Stages())
			span.Log(s.logger)
		}
	}()

	res, err := s.search(ctx, q, skip, take)
	total := 0
	if res != nil {
		total = res.Total
	}
	s.metrics.ObserveSearch("miss", total, time.Since(start), err)
	span.SetAttr("total", total)
	return res, err
}

func startSpan(ctx context.Context) (context.Context, *tracing.Span, bool) {
	if tracing.SpanFromContext(ctx) != nil {
		ctx, span := tracing.StartChildSpan(ctx, "search")
		return ctx, span, false
	}
	ctx, span := tracing.StartSpan(ctx, "search", uuid.NewString())
	return ctx, span, true
}

func (s *SearchSession) search(ctx context.Context, q *query.Query, skip, take int) (*Result, error) {
	result := &Result{Documents: []ScoredDocument{}}
	numTerms := q.NumTerms()
	if numTerms == 0 {
		return result, nil
	}

	p := &pass{
		s:         s,
		readers:   make(map[columnKey]*storage.ColumnReader),
		resolvers: make(map[columnKey]*postingsHandle),
	}
	defer p.close()

	if err := stage(ctx, "scan", func() error { return p.scan(q) }); err != nil {
		return nil, err
	}
	if err := stage(ctx, "resolve", func() error { return p.resolve(q) }); err != nil {
		return nil, err
	}

	var scores map[query.DocKey]float64
	stage(ctx, "score", func() error {
		scores = query.Score(q)
		return nil
	})

	var ranked []rankedDoc
	stage(ctx, "sort", func() error {
		ranked = rank(scores)
		return nil
	})
	result.Total = len(ranked)
	ranked = page(ranked, skip, take)

	err := stage(ctx, "materialize", func() error {
		norm := 1 / float64(numTerms)
		for _, r := range ranked {
			doc, err := s.docs.ReadDocument(ctx, r.key.CollectionID, r.key.DocID, q.Select)
			if errors.Is(err, apperrors.ErrDocumentNotFound) {
				s.logger.Warn("indexed document missing from store",
					"collection_id", r.key.CollectionID,
					"doc_id", r.key.DocID,
				)
				continue
			}
			if err != nil {
				return err
			}
			result.Documents = append(result.Documents, ScoredDocument{Document: doc, Score: r.score * norm})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func stage(ctx context.Context, name string, fn func() error) error {
	_, span := tracing.StartChildSpan(ctx, name)
	defer span.End()
	if err := fn(); err != nil {
		span.SetAttr("error", err.Error())
		return fmt.Errorf("search %s: %w", name, err)
	}
	return nil
}

type rankedDoc struct {
	key   query.DocKey
	score float64
}

// rank orders by descending score. Equal scores keep document order so
// paging is deterministic.
func rank(scores map[query.DocKey]float64) []rankedDoc {
	out := make([]rankedDoc, 0, len(scores))
	for k, v := range scores {
		out = append(out, rankedDoc{key: k, score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.CollectionID != b.CollectionID {
			return a.CollectionID < b.CollectionID
		}
		return a.DocID < b.DocID
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func page(ranked []rankedDoc, skip, take int) []rankedDoc {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(ranked) {
		return nil
	}
	ranked = ranked[skip:]
	if take > 0 && take < len(ranked) {
		ranked = ranked[:take]
	}
	return ranked
}

type columnKey struct {
	collectionID uint64
	keyID        int64
}

type postingsHandle struct {
	file     *os.File
	resolver *postings.Resolver
}

// pass holds the file handles of one query. A nil reader marks a column
// that does not exist.
type pass struct {
	s         *SearchSession
	readers   map[columnKey]*storage.ColumnReader
	resolvers map[columnKey]*postingsHandle
}

// scan finds the best on-disk match of every term and records its score and
// posting offsets.
func (p *pass) scan(q *query.Query) error {
	for _, t := range q.AllTerms() {
		if t.KeyID < 0 {
			keys, err := p.s.provider.KeyMap(t.CollectionID)
			if err != nil {
				return err
			}
			id, ok := keys.KeyID(t.Key)
			if !ok {
				continue
			}
			t.KeyID = id
		}
		if t.Vector == nil {
			continue
		}
		r, err := p.reader(columnKey{t.CollectionID, t.KeyID})
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}
		hit, err := p.s.strategy.FindBestMatch(r, t.Vector, p.s.model)
		if err != nil {
			return fmt.Errorf("term %s: %w", t, err)
		}
		t.Score = hit.Score
		t.PostingsOffsets = hit.PostingsOffsets
	}
	return nil
}

func (p *pass) reader(k columnKey) (*storage.ColumnReader, error) {
	if r, ok := p.readers[k]; ok {
		return r, nil
	}
	r, err := p.s.provider.OpenColumnReader(k.collectionID, k.keyID)
	if errors.Is(err, apperrors.ErrColumnNotFound) {
		p.readers[k] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.readers[k] = r
	return r, nil
}

// resolve reads the document ids behind every scanned term.
func (p *pass) resolve(q *query.Query) error {
	for _, t := range q.AllTerms() {
		if len(t.PostingsOffsets) == 0 {
			t.DocumentIDs = roaring64.New()
			continue
		}
		h, err := p.postings(columnKey{t.CollectionID, t.KeyID})
		if err != nil {
			return err
		}
		ids, err := h.resolver.Resolve(t.PostingsOffsets)
		if err != nil {
			return fmt.Errorf("term %s: %w", t, err)
		}
		t.DocumentIDs = ids
	}
	return nil
}

func (p *pass) postings(k columnKey) (*postingsHandle, error) {
	if h, ok := p.resolvers[k]; ok {
		return h, nil
	}
	f, err := p.s.provider.OpenPostings(k.collectionID, k.keyID)
	if err != nil {
		return nil, err
	}
	h := &postingsHandle{file: f, resolver: postings.NewResolver(f)}
	p.resolvers[k] = h
	return h, nil
}

func (p *pass) close() {
	for _, r := range p.readers {
		if r != nil {
			r.Close()
		}
	}
	for _, h := range p.resolvers {
		h.file.Close()
	}
}
