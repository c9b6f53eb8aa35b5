package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// AppendStream is a buffered append-only file that tracks its end offset,
// including bytes not yet flushed.
type AppendStream struct {
	f   *os.File
	w   *bufio.Writer
	pos int64
}

func openAppend(path string) (*AppendStream, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s for append: %w", filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return &AppendStream{
		f:   f,
		w:   bufio.NewWriterSize(f, 64*1024),
		pos: info.Size(),
	}, nil
}

func (s *AppendStream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.pos += int64(n)
	return n, err
}

// Position returns the offset the next Write lands at.
func (s *AppendStream) Position() int64 { return s.pos }

// Flush pushes buffered bytes to the file and syncs it.
func (s *AppendStream) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", filepath.Base(s.f.Name()), err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(s.f.Name()), err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *AppendStream) Close() error {
	if err := s.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
