package column

import (
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// Policy decides how many pages a lookup visits.
type Policy int

const (
	// ScanAllPages visits every page. Log-structured columns need it because
	// the same vector may live on several generations.
	ScanAllPages Policy = iota
	// StopAtFirstIdenticalPage visits pages newest first and stops at the
	// first page holding an angle-identical vector.
	StopAtFirstIdenticalPage
)

func (p Policy) String() string {
	switch p {
	case ScanAllPages:
		return "scan_all_pages"
	case StopAtFirstIdenticalPage:
		return "stop_at_first_identical_page"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Hit is the best match of a lookup. PostingsOffsets holds the chain head of
// every node that tied for the best score.
type Hit struct {
	Score           float64
	Record          tree.Record
	PostingsOffsets []int64
}

// Found reports whether anything scored above zero.
func (h Hit) Found() bool { return len(h.PostingsOffsets) > 0 }

// IsIdentical reports whether the hit reached the identical angle.
func (h Hit) IsIdentical(m model.Comparer) bool {
	return h.Found() && h.Score >= m.IdenticalAngle()
}

// consider folds a candidate into h. Scores within vector.Tolerance of the
// best are ties and contribute their postings.
func (h *Hit) consider(score float64, rec tree.Record, offsets ...int64) {
	if score <= 0 || len(offsets) == 0 {
		return
	}
	switch {
	case !h.Found():
		h.Score = score
		h.Record = rec
		h.PostingsOffsets = append(h.PostingsOffsets[:0], offsets...)
	case vector.Approximates(score, h.Score):
		h.PostingsOffsets = appendUnique(h.PostingsOffsets, offsets...)
		if score > h.Score {
			h.Score = score
			h.Record = rec
		}
	case score > h.Score:
		h.Score = score
		h.Record = rec
		h.PostingsOffsets = append(h.PostingsOffsets[:0], offsets...)
	}
}

func appendUnique(dst []int64, offsets ...int64) []int64 {
next:
	for _, off := range offsets {
		for _, have := range dst {
			if have == off {
				continue next
			}
		}
		dst = append(dst, off)
	}
	return dst
}

// Reader looks vectors up in one column. It holds a reusable record buffer
// and distance calculator and is not safe for concurrent use.
type Reader struct {
	pages   []Page
	index   io.ReaderAt
	vectors io.ReaderAt

	calc vector.StreamCalculator
	buf  [tree.RecordSize]byte
}

// NewReader returns a Reader over the given pages of a column's .ix and .vec
// files.
func NewReader(pages []Page, index, vectors io.ReaderAt) *Reader {
	return &Reader{pages: pages, index: index, vectors: vectors}
}

// Pages returns the pages the reader was opened with.
func (r *Reader) Pages() []Page { return r.pages }

// FindBestMatch returns the closest on-disk vector to q under policy.
func (r *Reader) FindBestMatch(q *vector.Vector, m model.Comparer, policy Policy) (Hit, error) {
	var best Hit
	switch policy {
	case StopAtFirstIdenticalPage:
		for i := len(r.pages) - 1; i >= 0; i-- {
			hit, err := r.scanPage(r.pages[i], q, m)
			if err != nil {
				return Hit{}, err
			}
			best.consider(hit.Score, hit.Record, hit.PostingsOffsets...)
			if hit.IsIdentical(m) {
				break
			}
		}
	default:
		for _, page := range r.pages {
			hit, err := r.scanPage(page, q, m)
			if err != nil {
				return Hit{}, err
			}
			best.consider(hit.Score, hit.Record, hit.PostingsOffsets...)
		}
	}
	return best, nil
}

// scanPage replays the insertion walk over one page. Records are laid out
// depth first with the left subtree before the right one, so a left turn is
// the next record and a right turn skips the left subtree by its weight.
func (r *Reader) scanPage(page Page, q *vector.Vector, m model.Comparer) (Hit, error) {
	var best Hit
	pos, end := page.Offset, page.Offset+page.Length
	for {
		rec, err := r.readRecord(pos, end)
		if err != nil {
			return Hit{}, err
		}
		angle, err := r.calc.CosAngleAt(q, r.vectors, rec.VectorOffset, rec.ComponentCount)
		if err != nil {
			return Hit{}, fmt.Errorf("scoring record at %d: %w", pos, err)
		}
		if angle >= m.IdenticalAngle() {
			// An identical node answers for the page on its own; near misses
			// met on the way down do not join it.
			var exact Hit
			exact.consider(angle, rec, rec.PostingsOffset)
			return exact, nil
		}
		best.consider(angle, rec, rec.PostingsOffset)
		if angle > m.FoldAngle() {
			if !rec.HasLeft() {
				return best, nil
			}
			pos += tree.RecordSize
			continue
		}
		switch rec.Terminator {
		case tree.TerminatorBoth:
			pos, err = r.skipTree(pos+tree.RecordSize, end)
			if err != nil {
				return Hit{}, err
			}
		case tree.TerminatorRightOnly:
			pos += tree.RecordSize
		default:
			return best, nil
		}
	}
}

// skipTree returns the position just past the subtree rooted at pos.
func (r *Reader) skipTree(pos, end int64) (int64, error) {
	left, err := r.readRecord(pos, end)
	if err != nil {
		return 0, err
	}
	if left.Weight < 1 {
		return 0, fmt.Errorf("record at %d has weight %d: %w", pos, left.Weight, apperrors.ErrCorruptIndex)
	}
	return pos + tree.RecordSize*left.Weight, nil
}

func (r *Reader) readRecord(pos, end int64) (tree.Record, error) {
	if pos+tree.RecordSize > end {
		return tree.Record{}, fmt.Errorf("record at %d runs past page end %d: %w", pos, end, apperrors.ErrCorruptIndex)
	}
	n, err := r.index.ReadAt(r.buf[:], pos)
	if n < tree.RecordSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = apperrors.ErrCorruptIndex
		}
		return tree.Record{}, fmt.Errorf("reading record at %d: %w", pos, err)
	}
	return tree.DecodeRecord(r.buf[:]), nil
}
