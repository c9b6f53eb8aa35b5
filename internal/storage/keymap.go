package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

const keyMapRecordSize = 16

// KeyMap assigns dense key ids to the field names of one collection. Every
// assignment is appended to the collection's .kmap log as (keyHash, keyId)
// and the map is rebuilt from that log when the collection is opened.
type KeyMap struct {
	path string

	mu     sync.RWMutex
	ids    map[uint64]int64
	next   int64
	log    *os.File
	loaded int64
}

func loadKeyMap(path string) (*KeyMap, error) {
	km := &KeyMap{path: path, ids: make(map[uint64]int64)}
	if err := km.replay(); err != nil {
		return nil, err
	}
	return km, nil
}

// replay applies the records appended to the log since the last replay.
// Callers hold mu for writing or own km exclusively.
func (km *KeyMap) replay() error {
	data, err := os.ReadFile(km.path)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading key map: %w", err)
	}
	// A trailing partial record is an interrupted append and is ignored.
	off := int(km.loaded)
	for ; off+keyMapRecordSize <= len(data); off += keyMapRecordSize {
		hash := binary.LittleEndian.Uint64(data[off : off+8])
		id := int64(binary.LittleEndian.Uint64(data[off+8 : off+16]))
		km.ids[hash] = id
		if id >= km.next {
			km.next = id + 1
		}
	}
	km.loaded = int64(off)
	return nil
}

// KeyID returns the id of field if it has been registered. A map that has
// never written re-reads the log on a miss, so a searcher sees fields an
// indexer in another process registered after it started.
func (km *KeyMap) KeyID(field string) (int64, bool) {
	hash := KeyHash(field)
	km.mu.RLock()
	id, ok := km.ids[hash]
	writer := km.log != nil
	km.mu.RUnlock()
	if ok || writer {
		return id, ok
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	if err := km.replay(); err != nil {
		return 0, false
	}
	id, ok = km.ids[hash]
	return id, ok
}

// EnsureKeyExists returns the id of field, registering it first if needed.
func (km *KeyMap) EnsureKeyExists(field string) (int64, error) {
	hash := KeyHash(field)
	km.mu.RLock()
	id, ok := km.ids[hash]
	km.mu.RUnlock()
	if ok {
		return id, nil
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	if id, ok := km.ids[hash]; ok {
		return id, nil
	}
	if km.log == nil {
		f, err := os.OpenFile(km.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("opening key map log: %w", err)
		}
		km.log = f
	}
	id = km.next
	var rec [keyMapRecordSize]byte
	binary.LittleEndian.PutUint64(rec[0:8], hash)
	binary.LittleEndian.PutUint64(rec[8:16], uint64(id))
	if _, err := km.log.Write(rec[:]); err != nil {
		return 0, fmt.Errorf("appending key %q: %w", field, err)
	}
	km.ids[hash] = id
	km.next++
	km.loaded += keyMapRecordSize
	return id, nil
}

// Len returns the number of registered keys.
func (km *KeyMap) Len() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.ids)
}

// Close syncs and closes the log.
func (km *KeyMap) Close() error {
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.log == nil {
		return nil
	}
	err := km.log.Sync()
	if cerr := km.log.Close(); err == nil {
		err = cerr
	}
	km.log = nil
	if err != nil {
		return fmt.Errorf("closing key map log: %w", err)
	}
	return nil
}
