// Package query models boolean queries over vector columns and reduces them
// to scored document sets.
package query

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Combinator is the set operation a term or query applies to what came
// before it.
type Combinator int

const (
	Intersection Combinator = iota
	Union
	Subtraction
)

func (c Combinator) String() string {
	switch c {
	case Intersection:
		return "AND"
	case Union:
		return "OR"
	case Subtraction:
		return "NOT"
	default:
		return fmt.Sprintf("combinator(%d)", int(c))
	}
}

// DocKey identifies a document across collections.
type DocKey struct {
	CollectionID uint64
	DocID        int64
}

// Term is one field-scoped leaf of a query. Score, PostingsOffsets and
// DocumentIDs are filled in by the search pipeline.
type Term struct {
	CollectionID uint64
	KeyID        int64
	Key          string
	Vector       *vector.Vector
	Combinator   Combinator

	Score           float64
	PostingsOffsets []int64
	DocumentIDs     *roaring64.Bitmap
}

func (t *Term) String() string {
	label := ""
	if t.Vector != nil {
		label = t.Vector.Label
	}
	return fmt.Sprintf("%s %s:%s", t.Combinator, t.Key, label)
}

// Query is one level of a boolean expression. Its terms are reduced first,
// the result is folded into the running result with Combinator, then the
// And, Or and Not children follow in that order.
type Query struct {
	Terms      []*Term
	And        *Query
	Or         *Query
	Not        *Query
	Combinator Combinator
	Select     []string
}

// AllTerms returns every term of q and its children in evaluation order.
func (q *Query) AllTerms() []*Term {
	var out []*Term
	q.walk(func(sub *Query) {
		out = append(out, sub.Terms...)
	})
	return out
}

// NumTerms counts the terms of q and its children.
func (q *Query) NumTerms() int {
	n := 0
	q.walk(func(sub *Query) { n += len(sub.Terms) })
	return n
}

func (q *Query) walk(fn func(*Query)) {
	if q == nil {
		return
	}
	fn(q)
	q.And.walk(fn)
	q.Or.walk(fn)
	q.Not.walk(fn)
}

// attach hangs child off the first free slot for c, following already
// occupied slots of the same kind.
func (q *Query) attach(child *Query, c Combinator) {
	cursor := q
	for {
		slot := cursor.slot(c)
		if *slot == nil {
			*slot = child
			return
		}
		cursor = *slot
	}
}

func (q *Query) slot(c Combinator) **Query {
	switch c {
	case Union:
		return &q.Or
	case Subtraction:
		return &q.Not
	default:
		return &q.And
	}
}
