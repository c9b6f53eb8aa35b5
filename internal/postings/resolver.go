package postings

import (
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Resolver turns chain-head offsets of one postings file into document sets,
// remembering every chain it has already read. Lists are never rewritten, so
// a resolved chain stays valid for the life of the file.
type Resolver struct {
	r io.ReaderAt

	mu    sync.RWMutex
	cache map[int64]*roaring64.Bitmap
}

// NewResolver returns a Resolver over r.
func NewResolver(r io.ReaderAt) *Resolver {
	return &Resolver{r: r, cache: make(map[int64]*roaring64.Bitmap)}
}

// Resolve returns the union of the chains at offsets. The returned bitmap is
// owned by the caller.
func (res *Resolver) Resolve(offsets []int64) (*roaring64.Bitmap, error) {
	out := roaring64.New()
	for _, off := range offsets {
		ids, err := res.chain(off)
		if err != nil {
			return nil, err
		}
		out.Or(ids)
	}
	return out, nil
}

func (res *Resolver) chain(off int64) (*roaring64.Bitmap, error) {
	res.mu.RLock()
	ids, ok := res.cache[off]
	res.mu.RUnlock()
	if ok {
		return ids, nil
	}

	ids = roaring64.New()
	if err := Read(res.r, off, ids); err != nil {
		return nil, err
	}
	res.mu.Lock()
	res.cache[off] = ids
	res.mu.Unlock()
	return ids, nil
}

// Cached returns how many chains are held in memory.
func (res *Resolver) Cached() int {
	res.mu.RLock()
	defer res.mu.RUnlock()
	return len(res.cache)
}
