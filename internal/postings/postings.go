// Package postings stores the document ids behind each tree node as chained
// lists in a per-column .pos file.
//
// The file starts with an 8-byte magic so that no list ever sits at offset 0;
// a NextPageOffset of 0 therefore always means the chain ends.
package postings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

const (
	MagicBytes uint64 = 0x534F5056_54535450 // "PTSTVPOS"
	MagicSize         = 8
	HeaderSize        = 16
	IDSize            = 8
)

// Header precedes every list: the number of ids that follow and where the
// rest of the chain continues.
type Header struct {
	ItemCount      int64
	NextPageOffset int64
}

// Stream is an append-only destination that knows its current end offset.
type Stream interface {
	io.Writer
	Position() int64
}

// Writer appends posting lists to a stream.
type Writer struct {
	stream Stream
}

// NewWriter returns a Writer on s, writing the file magic if s is empty.
func NewWriter(s Stream) (*Writer, error) {
	if s.Position() == 0 {
		var magic [MagicSize]byte
		binary.LittleEndian.PutUint64(magic[:], MagicBytes)
		if _, err := s.Write(magic[:]); err != nil {
			return nil, fmt.Errorf("writing postings magic: %w", err)
		}
	}
	return &Writer{stream: s}, nil
}

// Write appends ids as a list whose chain continues at next (0 for none) and
// returns the list's offset.
func (w *Writer) Write(ids []int64, next int64) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("writing posting list: %w", apperrors.ErrEmptyPostings)
	}
	off := w.stream.Position()
	buf := make([]byte, HeaderSize+IDSize*len(ids))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(ids)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(next))
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[HeaderSize+i*IDSize:], uint64(id))
	}
	if _, err := w.stream.Write(buf); err != nil {
		return 0, fmt.Errorf("writing posting list at %d: %w", off, err)
	}
	return off, nil
}

// VerifyMagic checks that r is a postings file.
func VerifyMagic(r io.ReaderAt) error {
	var magic [MagicSize]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return fmt.Errorf("reading postings magic: %w", err)
	}
	if got := binary.LittleEndian.Uint64(magic[:]); got != MagicBytes {
		return fmt.Errorf("invalid postings file: bad magic bytes %x: %w", got, apperrors.ErrCorruptPostings)
	}
	return nil
}

// ReadHeader decodes the list header at off.
func ReadHeader(r io.ReaderAt, off int64) (Header, error) {
	var buf [HeaderSize]byte
	if err := readFull(r, buf[:], off); err != nil {
		return Header{}, err
	}
	return Header{
		ItemCount:      int64(binary.LittleEndian.Uint64(buf[0:8])),
		NextPageOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
	}, nil
}

// Read follows the chain starting at off and adds every id to into.
func Read(r io.ReaderAt, off int64, into *roaring64.Bitmap) error {
	seen := make(map[int64]struct{})
	for off != 0 {
		if off < MagicSize {
			return fmt.Errorf("posting list offset %d inside file magic: %w", off, apperrors.ErrCorruptPostings)
		}
		if _, ok := seen[off]; ok {
			return fmt.Errorf("posting chain loops at %d: %w", off, apperrors.ErrCorruptPostings)
		}
		seen[off] = struct{}{}

		h, err := ReadHeader(r, off)
		if err != nil {
			return err
		}
		if h.ItemCount < 0 {
			return fmt.Errorf("negative item count at %d: %w", off, apperrors.ErrCorruptPostings)
		}
		buf := make([]byte, h.ItemCount*IDSize)
		if err := readFull(r, buf, off+HeaderSize); err != nil {
			return err
		}
		for i := int64(0); i < h.ItemCount; i++ {
			into.Add(binary.LittleEndian.Uint64(buf[i*IDSize:]))
		}
		off = h.NextPageOffset
	}
	return nil
}

// ReadMany returns the union of the chains at every offset.
func ReadMany(r io.ReaderAt, offsets []int64) (*roaring64.Bitmap, error) {
	out := roaring64.New()
	for _, off := range offsets {
		if err := Read(r, off, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("short read of %d/%d bytes at %d: %w", n, len(buf), off, apperrors.ErrCorruptPostings)
	}
	return fmt.Errorf("reading postings at %d: %w", off, err)
}
