package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/column"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/postings"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// ColumnWriter holds the append streams of one column for a commit.
type ColumnWriter struct {
	Vectors  *AppendStream
	Index    *AppendStream
	Postings *postings.Writer
	Pages    *column.PageIndexWriter

	postingsStream *AppendStream
	pagesStream    *AppendStream
}

// OpenColumnWriter opens every file of a column for appending.
func (p *Provider) OpenColumnWriter(collectionID uint64, keyID int64) (*ColumnWriter, error) {
	cw := &ColumnWriter{}
	var err error
	defer func() {
		if err != nil {
			cw.Abort()
		}
	}()

	if cw.Vectors, err = openAppend(p.ColumnPath(collectionID, keyID, ExtVectors)); err != nil {
		return nil, err
	}
	if cw.postingsStream, err = openAppend(p.ColumnPath(collectionID, keyID, ExtPostings)); err != nil {
		return nil, err
	}
	if cw.Index, err = openAppend(p.ColumnPath(collectionID, keyID, ExtIndex)); err != nil {
		return nil, err
	}
	if cw.pagesStream, err = openAppend(p.ColumnPath(collectionID, keyID, ExtPageIndex)); err != nil {
		return nil, err
	}
	if cw.Postings, err = postings.NewWriter(cw.postingsStream); err != nil {
		return nil, err
	}
	cw.Pages = column.NewPageIndexWriter(cw.pagesStream)
	return cw, nil
}

// Close flushes the data files before the page index so a page entry never
// points at bytes that are not on disk.
func (cw *ColumnWriter) Close() error {
	var errs []error
	for _, s := range []*AppendStream{cw.Vectors, cw.postingsStream, cw.Index} {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		cw.pagesStream.f.Close()
		return errors.Join(errs...)
	}
	return cw.pagesStream.Close()
}

// Abort closes whatever was opened without flushing anything, leaving the
// page index as it was before the commit.
func (cw *ColumnWriter) Abort() {
	for _, s := range []*AppendStream{cw.Vectors, cw.postingsStream, cw.Index, cw.pagesStream} {
		if s != nil {
			s.f.Close()
		}
	}
}

// ColumnReader is a column.Reader over freshly opened file handles. The page
// list is fixed at open time.
type ColumnReader struct {
	*column.Reader
	files []*os.File
}

// OpenColumnReader opens a column for lookups. A column without committed
// pages returns ErrColumnNotFound.
func (p *Provider) OpenColumnReader(collectionID uint64, keyID int64) (*ColumnReader, error) {
	pagesFile, size, err := p.OpenRead(p.ColumnPath(collectionID, keyID, ExtPageIndex))
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("column %d.%d: %w", collectionID, keyID, apperrors.ErrColumnNotFound)
		}
		return nil, err
	}
	defer pagesFile.Close()

	pages, err := column.NewPageIndexReader(pagesFile, size).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("column %d.%d has no pages: %w", collectionID, keyID, apperrors.ErrColumnNotFound)
	}

	index, _, err := p.OpenRead(p.ColumnPath(collectionID, keyID, ExtIndex))
	if err != nil {
		return nil, err
	}
	vectors, vectorsSize, err := p.OpenRead(p.ColumnPath(collectionID, keyID, ExtVectors))
	if err != nil {
		index.Close()
		return nil, err
	}
	return &ColumnReader{
		Reader: column.NewReader(pages, index, io.NewSectionReader(vectors, 0, vectorsSize)),
		files:  []*os.File{index, vectors},
	}, nil
}

func (cr *ColumnReader) Close() error {
	var errs []error
	for _, f := range cr.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenPostings opens a column's posting file for reading.
func (p *Provider) OpenPostings(collectionID uint64, keyID int64) (*os.File, error) {
	f, _, err := p.OpenRead(p.ColumnPath(collectionID, keyID, ExtPostings))
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("postings of column %d.%d: %w", collectionID, keyID, apperrors.ErrColumnNotFound)
		}
		return nil, err
	}
	if err := postings.VerifyMagic(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
