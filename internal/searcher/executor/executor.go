// Package executor turns search requests into parsed queries and runs them
// through the search session.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// Request is one search against a collection.
type Request struct {
	Collection string   `json:"collection"`
	Query      string   `json:"query"`
	Skip       int      `json:"skip"`
	Take       int      `json:"take"`
	Select     []string `json:"select,omitempty"`
}

// CollectionID is the hashed id of the request's collection.
func (r Request) CollectionID() uint64 { return storage.CollectionID(r.Collection) }

// Normalized returns the request with the query whitespace-collapsed and
// the select list lower-cased, so equivalent requests share a cache entry.
func (r Request) Normalized() Request {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	sel := make([]string, len(r.Select))
	for i, f := range r.Select {
		sel[i] = strings.ToLower(strings.TrimSpace(f))
	}
	r.Select = sel
	return r
}

type SearchResult struct {
	Collection string                   `json:"collection"`
	Query      string                   `json:"query"`
	Total      int                      `json:"total"`
	Results    []session.ScoredDocument `json:"results"`
	// TermStats is the best angle each term reached on disk.
	TermStats map[string]float64 `json:"term_stats,omitempty"`
}

// Searcher runs parsed queries.
type Searcher interface {
	Search(ctx context.Context, q *query.Query, skip, take int) (*session.Result, error)
}

type Executor struct {
	parser *query.Parser
	search Searcher
	logger *slog.Logger
}

func New(parser *query.Parser, search Searcher) *Executor {
	return &Executor{
		parser: parser,
		search: search,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	if req.Collection == "" {
		return nil, fmt.Errorf("collection is required: %w", apperrors.ErrInvalidInput)
	}
	q, err := e.parser.Parse(req.CollectionID(), req.Query, req.Select)
	if err != nil {
		return nil, err
	}

	res, err := e.search.Search(ctx, q, req.Skip, req.Take)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", req.Collection, err)
	}

	stats := make(map[string]float64)
	for _, t := range q.AllTerms() {
		if len(t.PostingsOffsets) > 0 {
			stats[t.String()] = t.Score
		}
	}
	e.logger.Info("query executed",
		"collection", req.Collection,
		"query", req.Query,
		"terms", q.NumTerms(),
		"total", res.Total,
		"returned", len(res.Documents),
	)
	return &SearchResult{
		Collection: req.Collection,
		Query:      req.Query,
		Total:      res.Total,
		Results:    res.Documents,
		TermStats:  stats,
	}, nil
}
