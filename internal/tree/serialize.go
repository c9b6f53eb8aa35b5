package tree

import (
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// Stream is an append-only destination that knows its current end offset.
type Stream interface {
	io.Writer
	Position() int64
}

// PostingsWriter appends a posting list whose chain continues at next and
// returns the offset the list was written at.
type PostingsWriter interface {
	Write(ids []int64, next int64) (int64, error)
}

// Layout is a serialized tree whose offsets are not yet recorded on its
// nodes. Apply records them once the page that holds the layout is durable;
// a layout that is dropped leaves the tree as it was, so the same tree can be
// written again after a failed commit.
type Layout struct {
	Records int64
	placed  []placement
}

type placement struct {
	node             *Node
	vector, postings int64
}

// Apply records the written offsets on the nodes.
func (l *Layout) Apply() {
	for _, p := range l.placed {
		p.node.VectorOffset = p.vector
		p.node.PostingsOffset = p.postings
	}
}

// Snapshot captures the offsets every node holds now. Applying it undoes
// any later Apply.
func (t *Tree) Snapshot() *Layout {
	l := &Layout{placed: make([]placement, 0, t.Count())}
	_ = t.Walk(func(n *Node) error {
		l.placed = append(l.placed, placement{node: n, vector: n.VectorOffset, postings: n.PostingsOffset})
		return nil
	})
	l.Records = int64(len(l.placed))
	return l
}

// Serialize writes the tree with Write and applies the layout.
func (t *Tree) Serialize(vectors Stream, postings PostingsWriter, index io.Writer) (int64, error) {
	l, err := t.Write(vectors, postings, index)
	if err != nil {
		return 0, err
	}
	l.Apply()
	return l.Records, nil
}

// Write serializes every vector-carrying node as one page: vectors not yet on
// disk go to vectors, document ids go to postings and the fixed-width records
// go to index in Walk order. The nodes are left untouched.
//
// A node whose documents are written prepends a new posting list to the chain
// it already points at, so older pages keep resolving to their own subset
// while newer pages see the union. postings may be nil only when every node
// already has a posting offset.
func (t *Tree) Write(vectors Stream, postings PostingsWriter, index io.Writer) (*Layout, error) {
	if err := t.Walk(func(n *Node) error {
		hasDocs := !n.DocIDs.IsEmpty()
		if !hasDocs && n.PostingsOffset < 0 {
			return fmt.Errorf("serializing vector %q: %w", n.Vector.Label, apperrors.ErrEmptyPostings)
		}
		if postings == nil && n.PostingsOffset < 0 {
			return fmt.Errorf("serializing vector %q without postings writer: %w", n.Vector.Label, apperrors.ErrEmptyPostings)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	count := t.Count()
	buf := make([]byte, 0, count*RecordSize)
	l := &Layout{placed: make([]placement, 0, count)}
	err := t.Walk(func(n *Node) error {
		p := placement{node: n, vector: n.VectorOffset, postings: n.PostingsOffset}
		if postings != nil && !n.DocIDs.IsEmpty() {
			next := n.PostingsOffset
			if next < 0 {
				next = 0
			}
			off, err := postings.Write(n.Documents(), next)
			if err != nil {
				return fmt.Errorf("writing postings: %w", err)
			}
			p.postings = off
		}

		if p.vector < 0 {
			p.vector = vectors.Position()
			if _, err := n.Vector.WriteTo(vectors); err != nil {
				return fmt.Errorf("writing vector: %w", err)
			}
		}

		rec := Record{
			VectorOffset:   p.vector,
			PostingsOffset: p.postings,
			ComponentCount: int64(n.Vector.Len()),
			Weight:         n.Weight,
			Terminator:     terminator(n.left != none, n.right != none),
		}
		var enc [RecordSize]byte
		rec.Encode(enc[:])
		buf = append(buf, enc[:]...)
		l.placed = append(l.placed, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := index.Write(buf); err != nil {
		return nil, fmt.Errorf("writing records: %w", err)
	}
	l.Records = int64(len(l.placed))
	return l, nil
}
