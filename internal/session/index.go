// Package session orchestrates building and querying the columns of one
// collection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of an IndexSession.
type State int

const (
	StateOpen State = iota
	StateCommitted
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IndexSession buffers the columns of one collection in memory until
// Commit appends them as new pages. Put may be called from many goroutines;
// calls for the same key are serialized, different keys proceed in
// parallel. A committed session accepts new Puts for the next batch.
type IndexSession struct {
	provider     *storage.Provider
	collectionID uint64
	strategy     strategy.Strategy
	model        model.Model
	metrics      *metrics.Metrics
	logger       *slog.Logger

	// mu is held shared by Put and exclusively by Commit and Close.
	mu    sync.RWMutex
	state State

	colMu   sync.Mutex
	columns map[int64]*columnBuffer
}

// columnBuffer is the in-memory tree of one key plus, for the optimized
// strategy, a reader over what is already on disk.
type columnBuffer struct {
	mu     sync.Mutex
	keyID  int64
	tree   *tree.Tree
	reader *storage.ColumnReader
	probed bool
}

// NewIndexSession returns an open session over one collection's columns.
func NewIndexSession(provider *storage.Provider, collectionID uint64, strat strategy.Strategy, m model.Model, met *metrics.Metrics) *IndexSession {
	return &IndexSession{
		provider:     provider,
		collectionID: collectionID,
		strategy:     strat,
		model:        m,
		metrics:      met,
		logger: slog.Default().With(
			"component", "index-session",
			"collection_id", collectionID,
			"strategy", strat.String(),
		),
		columns: make(map[int64]*columnBuffer),
	}
}

func (s *IndexSession) CollectionID() uint64 { return s.collectionID }

// State returns the session's current lifecycle stage.
func (s *IndexSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Put adds the tokens of one document field. Duplicate tokens within the
// document collapse first so they count once; the survivors are then merged
// into the column by the session's strategy.
func (s *IndexSession) Put(docID, keyID int64, tokens []*vector.Vector) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateDisposed {
		return apperrors.ErrSessionClosed
	}
	if len(tokens) == 0 {
		return nil
	}

	sub := tree.New()
	for _, v := range tokens {
		sub.AddIfUnique(tree.NewNode(v, keyID, docID), s.model)
	}

	col := s.column(keyID)
	col.mu.Lock()
	defer col.mu.Unlock()

	disk, err := s.matcher(col)
	if err != nil {
		return err
	}
	return sub.Walk(func(n *tree.Node) error {
		if err := s.strategy.Put(col.tree, n, disk, s.model); err != nil {
			return fmt.Errorf("putting document %d into column %d: %w", docID, keyID, err)
		}
		return nil
	})
}

func (s *IndexSession) column(keyID int64) *columnBuffer {
	s.colMu.Lock()
	defer s.colMu.Unlock()
	col, ok := s.columns[keyID]
	if !ok {
		col = &columnBuffer{keyID: keyID, tree: tree.New()}
		s.columns[keyID] = col
	}
	return col
}

// matcher returns the on-disk reader the strategy consults, or nil when the
// strategy never reads or nothing has been committed. Callers hold col.mu.
func (s *IndexSession) matcher(col *columnBuffer) (strategy.Matcher, error) {
	if s.strategy != strategy.Optimized {
		return nil, nil
	}
	if !col.probed {
		r, err := s.provider.OpenColumnReader(s.collectionID, col.keyID)
		switch {
		case errors.Is(err, apperrors.ErrColumnNotFound):
		case err != nil:
			return nil, fmt.Errorf("opening column %d for lookup: %w", col.keyID, err)
		default:
			col.reader = r
		}
		col.probed = true
	}
	if col.reader == nil {
		return nil, nil
	}
	return col.reader, nil
}

// Commit appends every buffered column as a new page, several columns at a
// time. Columns with nothing buffered write nothing. A column is cleared as
// soon as its page is on disk, so after a failure Commit can be retried
// without duplicating what already landed. It returns the number of pages
// written.
func (s *IndexSession) Commit(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return 0, apperrors.ErrSessionClosed
	}

	start := time.Now()
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, col := range s.columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			depth, err := s.commitColumn(col)
			s.metrics.ObservePage(depth, err)
			if err != nil {
				return err
			}
			if depth > 0 {
				written.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	// Readers hold the page list of their open time; the next batch must see
	// the pages just written.
	for _, col := range s.columns {
		col.closeReader()
	}

	pages := int(written.Load())
	if err != nil {
		s.logger.Error("commit failed", "pages_written", pages, "error", err)
		return pages, fmt.Errorf("committing collection %d: %w", s.collectionID, err)
	}
	s.columns = make(map[int64]*columnBuffer)
	s.state = StateCommitted
	s.metrics.ObserveCommit(time.Since(start))
	s.logger.Info("commit complete",
		"pages_written", pages,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func (s *IndexSession) commitColumn(col *columnBuffer) (int, error) {
	col.mu.Lock()
	defer col.mu.Unlock()
	nodes := col.tree.Count()
	if nodes == 0 {
		return 0, nil
	}

	w, err := s.provider.OpenColumnWriter(s.collectionID, col.keyID)
	if err != nil {
		return 0, fmt.Errorf("opening column %d: %w", col.keyID, err)
	}
	// The tree must keep pointing at bytes that are on disk, whatever part
	// of this page failed to land.
	saved := col.tree.Snapshot()
	depth, width, err := s.strategy.Commit(col.tree, strategy.Files{
		Vectors:  w.Vectors,
		Postings: w.Postings,
		Index:    w.Index,
		Pages:    w.Pages,
	})
	if err != nil {
		w.Abort()
		saved.Apply()
		return 0, fmt.Errorf("writing column %d: %w", col.keyID, err)
	}
	if err := w.Close(); err != nil {
		saved.Apply()
		return 0, fmt.Errorf("flushing column %d: %w", col.keyID, err)
	}
	col.tree = tree.New()

	s.logger.Debug("column committed",
		"key_id", col.keyID,
		"nodes", nodes,
		"depth", depth,
		"width", width,
	)
	return depth, nil
}

func (col *columnBuffer) closeReader() {
	col.mu.Lock()
	defer col.mu.Unlock()
	if col.reader != nil {
		col.reader.Close()
		col.reader = nil
	}
	col.probed = false
}

// Close disposes the session. Anything not committed is dropped.
func (s *IndexSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return nil
	}
	pending := 0
	for _, col := range s.columns {
		pending += col.tree.Count()
		col.closeReader()
	}
	if pending > 0 {
		s.logger.Warn("disposing session with uncommitted nodes", "nodes", pending)
	}
	s.columns = nil
	s.state = StateDisposed
	return nil
}
