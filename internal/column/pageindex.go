// Package column writes tree generations as pages and answers nearest-vector
// lookups by replaying those pages straight from disk.
package column

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
)

// PageEntrySize is the width of one (offset, length) entry in a .ixtp file.
const PageEntrySize = 16

// Page locates one serialized tree generation inside a column's .ix file.
type Page struct {
	Offset int64
	Length int64
}

// Records returns how many node records the page holds.
func (p Page) Records() int64 { return p.Length / tree.RecordSize }

// PageIndexWriter appends page entries to a .ixtp stream.
type PageIndexWriter struct {
	w io.Writer
}

// NewPageIndexWriter returns a writer appending entries to w.
func NewPageIndexWriter(w io.Writer) *PageIndexWriter {
	return &PageIndexWriter{w: w}
}

// Put appends one page entry.
func (pw *PageIndexWriter) Put(offset, length int64) error {
	var buf [PageEntrySize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(length))
	if _, err := pw.w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing page entry: %w", err)
	}
	return nil
}

// PageIndexReader reads the pages of a column as of a known file length.
// Entries appended after the reader was opened are not seen.
type PageIndexReader struct {
	r    io.ReaderAt
	size int64
}

// NewPageIndexReader returns a reader over the first size bytes of r.
func NewPageIndexReader(r io.ReaderAt, size int64) *PageIndexReader {
	return &PageIndexReader{r: r, size: size}
}

// ReadAll returns every complete page entry in write order. A trailing
// partial entry is ignored.
func (pr *PageIndexReader) ReadAll() ([]Page, error) {
	n := pr.size / PageEntrySize
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n*PageEntrySize)
	if _, err := pr.r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("reading page index: %w", err)
	}
	pages := make([]Page, n)
	for i := range pages {
		off := i * PageEntrySize
		pages[i] = Page{
			Offset: int64(binary.LittleEndian.Uint64(buf[off : off+8])),
			Length: int64(binary.LittleEndian.Uint64(buf[off+8 : off+16])),
		}
	}
	return pages, nil
}
