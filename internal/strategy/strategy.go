// Package strategy holds the fixed set of indexing disciplines a column can
// be grown with.
package strategy

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/column"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// Strategy selects how nodes merge into a column and how lookups visit its
// pages.
type Strategy int

const (
	// LogStructured merges in memory and writes every commit as a fresh page
	// without looking at disk. Duplicates across pages are merged at read
	// time.
	LogStructured Strategy = iota
	// Optimized looks each vector up on disk first and, on an identical hit,
	// extends the existing posting chain instead of starting a new one.
	Optimized
	// Supervised is LogStructured with label-checked merges.
	Supervised
)

// Parse maps a configuration name onto a Strategy.
func Parse(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "log", "logstructured", "log_structured":
		return LogStructured, nil
	case "optimized", "optimised", "paged":
		return Optimized, nil
	case "supervised":
		return Supervised, nil
	default:
		return 0, fmt.Errorf("unknown indexing strategy %q: %w", name, apperrors.ErrInvalidInput)
	}
}

func (s Strategy) String() string {
	switch s {
	case LogStructured:
		return "log"
	case Optimized:
		return "optimized"
	case Supervised:
		return "supervised"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Policy is the disk lookup policy searches against this strategy's columns
// use.
func (s Strategy) Policy() column.Policy {
	if s == Optimized {
		return column.StopAtFirstIdenticalPage
	}
	return column.ScanAllPages
}

// Matcher finds the closest on-disk vector of a column.
type Matcher interface {
	FindBestMatch(q *vector.Vector, m model.Comparer, policy column.Policy) (column.Hit, error)
}

// Put merges n into the in-memory column. disk is the column's on-disk
// reader and may be nil when nothing has been committed yet.
func (s Strategy) Put(col *tree.Tree, n *tree.Node, disk Matcher, m model.Comparer) error {
	switch s {
	case Supervised:
		return col.AddOrAppendSupervised(n, m)
	case Optimized:
		if disk != nil && n.PostingsOffset < 0 {
			hit, err := disk.FindBestMatch(n.Vector, m, column.StopAtFirstIdenticalPage)
			if err != nil {
				return fmt.Errorf("looking up existing vector: %w", err)
			}
			if hit.IsIdentical(m) {
				n.PostingsOffset = hit.Record.PostingsOffset
			}
		}
		col.AddOrAppend(n, m)
		return nil
	default:
		col.AddOrAppend(n, m)
		return nil
	}
}

// FindBestMatch runs q against disk with this strategy's lookup policy.
func (s Strategy) FindBestMatch(disk Matcher, q *vector.Vector, m model.Comparer) (column.Hit, error) {
	return disk.FindBestMatch(q, m, s.Policy())
}

// Files are the append streams of one column.
type Files struct {
	Vectors  tree.Stream
	Postings tree.PostingsWriter
	Index    tree.Stream
	Pages    *column.PageIndexWriter
}

// Commit writes col as a new page. Every strategy persists the same way;
// they differ only in what Put left in the tree.
func (s Strategy) Commit(col *tree.Tree, f Files) (depth, width int, err error) {
	return column.CreatePage(col, f.Vectors, f.Postings, f.Index, f.Pages)
}
