// Package ingest runs bulk indexing as a bounded three-stage pipeline:
// tokenize (assign ids and store documents), analyze (embed fields) and
// insert (merge tokens into the per-key columns). Stages are connected by
// bounded channels so a slow commit pushes back on producers instead of
// buffering without limit.
package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Submit once Close has been called.
var ErrClosed = errors.New("ingest pipeline closed")

type Options struct {
	// Workers is the size of the tokenize and the analyze pools and the
	// number of insert partitions.
	Workers   int
	QueueSize int
	// BatchSize documents trigger a commit. CommitInterval commits whatever
	// is buffered even if the batch is not full; zero disables the timer.
	BatchSize      int
	CommitInterval time.Duration
	// OnCommit is told which collections gained pages. Its error is logged
	// and does not stop the pipeline.
	OnCommit func(ctx context.Context, collectionIDs []uint64) error
}

// OptionsFromConfig maps the indexer section of the configuration.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		BatchSize:      cfg.BatchSize,
		CommitInterval: cfg.CommitInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	return o
}

type job struct {
	collection string
	fields     map[string]any
}

type insert struct {
	session *session.IndexSession
	tokens  session.FieldTokens
}

// Pipeline feeds documents into one index session per collection.
type Pipeline struct {
	indexer *session.Indexer
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	jobs  chan job
	docs  chan *docstore.Document
	parts []chan insert
	kick  chan struct{}

	g   *errgroup.Group
	ctx context.Context

	closeMu sync.RWMutex
	closed  bool

	mu       sync.Mutex
	sessions map[uint64]*session.IndexSession

	pending   atomic.Int64
	committed atomic.Int64
}

// Start launches the pipeline. Cancelling ctx aborts it without a final
// commit; Close is the graceful way to stop.
func Start(ctx context.Context, indexer *session.Indexer, opts Options, met *metrics.Metrics) *Pipeline {
	opts = opts.withDefaults()
	g, gctx := errgroup.WithContext(ctx)
	p := &Pipeline{
		indexer:  indexer,
		opts:     opts,
		metrics:  met,
		logger:   slog.Default().With("component", "ingest-pipeline"),
		jobs:     make(chan job, opts.QueueSize),
		docs:     make(chan *docstore.Document, opts.QueueSize),
		parts:    make([]chan insert, opts.Workers),
		kick:     make(chan struct{}, 1),
		g:        g,
		ctx:      gctx,
		sessions: make(map[uint64]*session.IndexSession),
	}
	for i := range p.parts {
		p.parts[i] = make(chan insert, opts.QueueSize)
	}

	var tokenizers, analyzers, inserters sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		tokenizers.Add(1)
		g.Go(func() error {
			defer tokenizers.Done()
			return p.tokenize(gctx)
		})
		analyzers.Add(1)
		g.Go(func() error {
			defer analyzers.Done()
			return p.analyze(gctx)
		})
	}
	for _, part := range p.parts {
		inserters.Add(1)
		g.Go(func() error {
			defer inserters.Done()
			return p.insert(gctx, part)
		})
	}

	// Each stage closes its output once every worker feeding it has left.
	g.Go(func() error {
		tokenizers.Wait()
		close(p.docs)
		return nil
	})
	g.Go(func() error {
		analyzers.Wait()
		for _, part := range p.parts {
			close(part)
		}
		return nil
	})
	drained := make(chan struct{})
	g.Go(func() error {
		inserters.Wait()
		close(drained)
		return nil
	})
	g.Go(func() error { return p.commitLoop(gctx, drained) })

	p.logger.Info("ingest pipeline started",
		"workers", opts.Workers,
		"queue_size", opts.QueueSize,
		"batch_size", opts.BatchSize,
		"strategy", indexer.Strategy().String(),
	)
	return p
}

// Submit queues one document. It blocks while the first stage is full.
func (p *Pipeline) Submit(ctx context.Context, collection string, fields map[string]any) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job{collection: collection, fields: fields}:
		p.metrics.SetQueueDepth("tokenize", len(p.jobs))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("ingest pipeline stopped: %w", context.Cause(p.ctx))
	}
}

// Close stops accepting documents, drains every stage, commits what is left
// and disposes the sessions.
func (p *Pipeline) Close() error {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.closeMu.Unlock()

	err := p.g.Wait()

	p.mu.Lock()
	for id, s := range p.sessions {
		s.Close()
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	p.logger.Info("ingest pipeline stopped", "documents_committed", p.committed.Load())
	return err
}

// Committed returns how many documents have been committed so far.
func (p *Pipeline) Committed() int64 { return p.committed.Load() }

func (p *Pipeline) tokenize(ctx context.Context) error {
	for {
		var j job
		var ok bool
		select {
		case j, ok = <-p.jobs:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		doc, err := p.indexer.Store(ctx, storage.CollectionID(j.collection), j.fields)
		if err != nil {
			return fmt.Errorf("storing document for %s: %w", j.collection, err)
		}
		select {
		case p.docs <- doc:
			p.metrics.SetQueueDepth("analyze", len(p.docs))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) analyze(ctx context.Context) error {
	for {
		var doc *docstore.Document
		var ok bool
		select {
		case doc, ok = <-p.docs:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		fields, err := p.indexer.Analyze(doc)
		if err != nil {
			return fmt.Errorf("analyzing document %d: %w", doc.ID, err)
		}
		s := p.session(doc.CollectionID)
		for _, ft := range fields {
			part := p.parts[partition(doc.CollectionID, ft.KeyID, len(p.parts))]
			select {
			case part <- insert{session: s, tokens: ft}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if p.pending.Add(1) >= int64(p.opts.BatchSize) {
			select {
			case p.kick <- struct{}{}:
			default:
			}
		}
	}
}

// insert owns one partition of the keys, so puts into a column are never
// concurrent with each other.
func (p *Pipeline) insert(ctx context.Context, in <-chan insert) error {
	for {
		var ins insert
		var ok bool
		select {
		case ins, ok = <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		t := ins.tokens
		if err := ins.session.Put(t.DocID, t.KeyID, t.Vectors); err != nil {
			return err
		}
	}
}

func (p *Pipeline) commitLoop(ctx context.Context, drained <-chan struct{}) error {
	var tick <-chan time.Time
	if p.opts.CommitInterval > 0 {
		ticker := time.NewTicker(p.opts.CommitInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-p.kick:
			if err := p.commitAll(ctx); err != nil {
				return err
			}
		case <-tick:
			if err := p.commitAll(ctx); err != nil {
				return err
			}
		case <-drained:
			return p.commitAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) commitAll(ctx context.Context) error {
	n := p.pending.Swap(0)
	p.mu.Lock()
	sessions := make([]*session.IndexSession, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	start := time.Now()
	pages := 0
	var changed []uint64
	for _, s := range sessions {
		written, err := s.Commit(ctx)
		pages += written
		if err != nil {
			return err
		}
		if written > 0 {
			changed = append(changed, s.CollectionID())
		}
	}
	if n == 0 && pages == 0 {
		return nil
	}
	if p.opts.OnCommit != nil && len(changed) > 0 {
		if err := p.opts.OnCommit(ctx, changed); err != nil {
			p.logger.Warn("commit hook failed", "collections", len(changed), "error", err)
		}
	}
	p.committed.Add(n)
	p.metrics.DocsIndexed(int(n))
	p.logger.Info("batch committed",
		"documents", n,
		"pages", pages,
		"collections", len(sessions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Pipeline) session(collectionID uint64) *session.IndexSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[collectionID]
	if !ok {
		s = p.indexer.OpenSession(collectionID)
		p.sessions[collectionID] = s
	}
	return s
}

// partition maps a column to an insert worker by the xxhash of its
// (collection, key) pair.
func partition(collectionID uint64, keyID int64, n int) int {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], collectionID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(keyID))
	return int(xxhash.Sum64(buf[:]) % uint64(n))
}
