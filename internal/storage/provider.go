// Package storage addresses the append-only files a collection is kept in
// and owns the per-collection field key maps.
//
// Column files are named {collectionId}.{keyId}{ext} and collection files
// {collectionId}{ext}, all inside one data directory.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// File extensions of the column and collection file families.
const (
	ExtIndex     = ".ix"
	ExtPageIndex = ".ixtp"
	ExtVectors   = ".vec"
	ExtPostings  = ".pos"
	ExtKeyMap    = ".kmap"
)

// CollectionID derives the numeric id of a named collection.
func CollectionID(name string) uint64 {
	return xxhash.Sum64String(name)
}

// KeyHash derives the hash a field name is registered under in a key map.
func KeyHash(field string) uint64 {
	return xxhash.Sum64String(field)
}

// Provider opens streams inside one data directory. It is safe for
// concurrent use.
type Provider struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	keyMaps map[uint64]*KeyMap
}

// NewProvider creates dir if needed and returns a Provider for it.
func NewProvider(dir string) (*Provider, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Provider{
		dir:     dir,
		logger:  slog.Default().With("component", "storage"),
		keyMaps: make(map[uint64]*KeyMap),
	}, nil
}

// Dir returns the data directory.
func (p *Provider) Dir() string { return p.dir }

// ColumnPath returns the path of one file of a column.
func (p *Provider) ColumnPath(collectionID uint64, keyID int64, ext string) string {
	name := strconv.FormatUint(collectionID, 10) + "." + strconv.FormatInt(keyID, 10) + ext
	return filepath.Join(p.dir, name)
}

// CollectionPath returns the path of a collection-level file.
func (p *Provider) CollectionPath(collectionID uint64, ext string) string {
	return filepath.Join(p.dir, strconv.FormatUint(collectionID, 10)+ext)
}

// ColumnExists reports whether a column has ever been committed.
func (p *Provider) ColumnExists(collectionID uint64, keyID int64) bool {
	info, err := os.Stat(p.ColumnPath(collectionID, keyID, ExtPageIndex))
	return err == nil && info.Size() > 0
}

// OpenAppend opens path for appending, creating it if needed.
func (p *Provider) OpenAppend(path string) (*AppendStream, error) {
	return openAppend(path)
}

// OpenRead opens path for random access reads and returns its size at the
// moment of opening.
func (p *Provider) OpenRead(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return f, info.Size(), nil
}

// KeyMap returns the key map of a collection, loading it from its .kmap log
// on first access.
func (p *Provider) KeyMap(collectionID uint64) (*KeyMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if km, ok := p.keyMaps[collectionID]; ok {
		return km, nil
	}
	km, err := loadKeyMap(p.CollectionPath(collectionID, ExtKeyMap))
	if err != nil {
		return nil, fmt.Errorf("loading key map of collection %d: %w", collectionID, err)
	}
	p.keyMaps[collectionID] = km
	p.logger.Debug("key map loaded", "collection_id", collectionID, "keys", km.Len())
	return km, nil
}

// Close releases every open key map.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for id, km := range p.keyMaps {
		if err := km.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.keyMaps, id)
	}
	return errors.Join(errs...)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
