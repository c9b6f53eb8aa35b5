// Package tree builds the in-memory binary vector tree a column is indexed
// with and serializes it into the fixed-width page format.
//
// Nodes live in an arena owned by the Tree and refer to each other by arena
// index. The ancestor link is a plain index used only to walk upwards when a
// subtree grows.
package tree

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

const none int32 = -1

// Node is one distinct vector value of a column and the documents that carry
// it.
type Node struct {
	Vector         *vector.Vector
	DocIDs         *roaring64.Bitmap
	KeyID          int64
	Weight         int64
	VectorOffset   int64
	PostingsOffset int64

	id       int32
	left     int32
	right    int32
	ancestor int32
}

// NewNode returns a detached node holding v for the given documents.
func NewNode(v *vector.Vector, keyID int64, docIDs ...int64) *Node {
	n := &Node{
		Vector:         v,
		DocIDs:         roaring64.New(),
		KeyID:          keyID,
		VectorOffset:   -1,
		PostingsOffset: -1,
		id:             none,
		left:           none,
		right:          none,
		ancestor:       none,
	}
	for _, id := range docIDs {
		n.DocIDs.Add(uint64(id))
	}
	return n
}

// IsRoot reports whether n is a tree's root sentinel.
func (n *Node) IsRoot() bool {
	return n.ancestor == none && n.Vector == nil
}

// Documents returns the node's document ids in ascending order.
func (n *Node) Documents() []int64 {
	ids := make([]int64, 0, n.DocIDs.GetCardinality())
	it := n.DocIDs.Iterator()
	for it.HasNext() {
		ids = append(ids, int64(it.Next()))
	}
	return ids
}

// Tree is an arena of nodes with a vector-less root sentinel at index 0.
type Tree struct {
	nodes []*Node
}

// New returns an empty tree.
func New() *Tree {
	root := NewNode(nil, 0)
	root.id = 0
	return &Tree{nodes: []*Node{root}}
}

// Root returns the root sentinel.
func (t *Tree) Root() *Node { return t.nodes[0] }

// Count returns the number of vector-carrying nodes.
func (t *Tree) Count() int { return len(t.nodes) - 1 }

// Left returns n's left child or nil.
func (t *Tree) Left(n *Node) *Node { return t.at(n.left) }

// Right returns n's right child or nil.
func (t *Tree) Right(n *Node) *Node { return t.at(n.right) }

// Ancestor returns n's parent or nil for the root.
func (t *Tree) Ancestor(n *Node) *Node { return t.at(n.ancestor) }

func (t *Tree) at(idx int32) *Node {
	if idx == none {
		return nil
	}
	return t.nodes[idx]
}

type insertMode int

const (
	modeMerge insertMode = iota
	modeSupervised
	modeUnique
)

// AddOrAppend inserts n, merging its documents into an angle-identical node
// when one exists.
func (t *Tree) AddOrAppend(n *Node, m model.Comparer) {
	// modeMerge never fails.
	_, _, _ = t.insert(n, m, modeMerge)
}

// AddOrAppendSupervised behaves like AddOrAppend but refuses to merge two
// angle-identical vectors whose labels differ.
func (t *Tree) AddOrAppendSupervised(n *Node, m model.Comparer) error {
	_, _, err := t.insert(n, m, modeSupervised)
	return err
}

// AddIfUnique inserts n only if no angle-identical node exists. It reports
// whether n was added.
func (t *Tree) AddIfUnique(n *Node, m model.Comparer) bool {
	_, added, _ := t.insert(n, m, modeUnique)
	return added
}

// TryAdd is the first-writer-wins discipline: it inserts n unless an
// angle-identical node exists, and returns whichever node now holds the
// vector.
func (t *Tree) TryAdd(n *Node, m model.Comparer) (*Node, bool) {
	holder, added, _ := t.insert(n, m, modeUnique)
	return holder, added
}

func (t *Tree) insert(n *Node, m model.Comparer, mode insertMode) (*Node, bool, error) {
	if n.Vector == nil {
		return nil, false, fmt.Errorf("inserting node without vector: %w", apperrors.ErrInvalidInput)
	}
	cursor := t.nodes[0]
	for {
		if cursor.Vector == nil {
			// The root sentinel scores 0 against everything and only ever
			// grows to the right.
			if cursor.right == none {
				return t.attach(cursor, n, false), true, nil
			}
			cursor = t.nodes[cursor.right]
			continue
		}

		angle := m.CosAngle(n.Vector, cursor.Vector)
		if angle >= m.IdenticalAngle() {
			switch mode {
			case modeSupervised:
				if cursor.Vector.Label != n.Vector.Label {
					return nil, false, fmt.Errorf("%w: %q vs %q at angle %.4f",
						apperrors.ErrLabelMismatch, cursor.Vector.Label, n.Vector.Label, angle)
				}
				merge(cursor, n)
			case modeMerge:
				merge(cursor, n)
			}
			return cursor, false, nil
		}

		if angle > m.FoldAngle() {
			if cursor.left == none {
				return t.attach(cursor, n, true), true, nil
			}
			cursor = t.nodes[cursor.left]
		} else {
			if cursor.right == none {
				return t.attach(cursor, n, false), true, nil
			}
			cursor = t.nodes[cursor.right]
		}
	}
}

func merge(into, from *Node) {
	into.DocIDs.Or(from.DocIDs)
	if into.PostingsOffset < 0 {
		into.PostingsOffset = from.PostingsOffset
	}
}

// attach copies n into the arena as a child of parent and adds one to the
// weight of every node on the path back to the root.
func (t *Tree) attach(parent *Node, n *Node, left bool) *Node {
	child := &Node{
		Vector:         n.Vector,
		DocIDs:         n.DocIDs.Clone(),
		KeyID:          n.KeyID,
		Weight:         1,
		VectorOffset:   n.VectorOffset,
		PostingsOffset: n.PostingsOffset,
		id:             int32(len(t.nodes)),
		left:           none,
		right:          none,
		ancestor:       parent.id,
	}
	t.nodes = append(t.nodes, child)
	if left {
		parent.left = child.id
	} else {
		parent.right = child.id
	}
	for a := parent.id; a != none; a = t.nodes[a].ancestor {
		t.nodes[a].Weight++
	}
	return child
}

// Walk visits every vector-carrying node depth first, left before right,
// using an explicit stack. This is the order records are written in and the
// order the column reader replays.
func (t *Tree) Walk(fn func(*Node) error) error {
	node := t.Right(t.Root())
	var stack []*Node
	for node != nil {
		if err := fn(node); err != nil {
			return err
		}
		if right := t.Right(node); right != nil {
			stack = append(stack, right)
		}
		node = t.Left(node)
		if node == nil && len(stack) > 0 {
			node = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// Size returns the depth of the deepest node and the largest number of nodes
// found on a single level.
func (t *Tree) Size() (depth, width int) {
	level := []*Node{}
	if first := t.Right(t.Root()); first != nil {
		level = append(level, first)
	}
	for len(level) > 0 {
		depth++
		if len(level) > width {
			width = len(level)
		}
		next := make([]*Node, 0, len(level)*2)
		for _, n := range level {
			if l := t.Left(n); l != nil {
				next = append(next, l)
			}
			if r := t.Right(n); r != nil {
				next = append(next, r)
			}
		}
		level = next
	}
	return depth, width
}
