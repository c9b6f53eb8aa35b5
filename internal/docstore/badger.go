package docstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	docPrefix     = 'd'
	seqPrefix     = 's'
	sequenceLease = 256
)

// BadgerOptions configures the embedded store.
type BadgerOptions struct {
	// Dir holds the badger files. Required unless InMemory.
	Dir      string
	InMemory bool
}

// Badger is a Store on an embedded BadgerDB. Documents are msgpack encoded
// under a (collection, doc id) key; ids come from one badger sequence per
// collection.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger

	mu        sync.Mutex
	sequences map[uint64]*badger.Sequence
}

func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("docstore: badger dir is required for on-disk mode")
	}
	logger := slog.Default().With("component", "docstore")
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Badger{db: db, logger: logger, sequences: make(map[uint64]*badger.Sequence)}, nil
}

func docKey(collectionID uint64, docID int64) []byte {
	k := make([]byte, 17)
	k[0] = docPrefix
	binary.BigEndian.PutUint64(k[1:9], collectionID)
	binary.BigEndian.PutUint64(k[9:17], uint64(docID))
	return k
}

func seqKey(collectionID uint64) []byte {
	k := make([]byte, 9)
	k[0] = seqPrefix
	binary.BigEndian.PutUint64(k[1:9], collectionID)
	return k
}

func (b *Badger) IncrementDocID(_ context.Context, collectionID uint64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seq, ok := b.sequences[collectionID]
	if !ok {
		var err error
		seq, err = b.db.GetSequence(seqKey(collectionID), sequenceLease)
		if err != nil {
			return 0, fmt.Errorf("opening id sequence: %w", err)
		}
		b.sequences[collectionID] = seq
	}
	id, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next document id: %w", err)
	}
	return int64(id), nil
}

func (b *Badger) PutDocument(_ context.Context, doc *Document) error {
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %d: %w", doc.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(doc.CollectionID, doc.ID), data)
	})
}

func (b *Badger) ReadDocument(_ context.Context, collectionID uint64, docID int64, selectFields []string) (*Document, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collectionID, docID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("document %d in collection %d: %w", docID, collectionID, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %d: %w", docID, err)
	}
	var doc Document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %d: %w", docID, err)
	}
	return project(&doc, selectFields), nil
}

// Close releases the leased id ranges and closes the database. Unused ids of
// a lease are skipped after a restart.
func (b *Badger) Close() error {
	b.mu.Lock()
	var errs []error
	for id, seq := range b.sequences {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("releasing sequence %d: %w", id, err))
		}
		delete(b.sequences, id)
	}
	b.mu.Unlock()
	if err := b.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// badgerLogger routes badger's warnings and errors to slog and drops the
// rest.
type badgerLogger struct{ l *slog.Logger }

func (bl badgerLogger) Errorf(f string, v ...any)   { bl.l.Error(fmt.Sprintf(f, v...)) }
func (bl badgerLogger) Warningf(f string, v ...any) { bl.l.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...any)           {}
func (badgerLogger) Debugf(string, ...any)          {}
