package query

// Score reduces q to one scored document set. Every document a term matches
// earns that term's score.
func Score(q *Query) map[DocKey]float64 {
	acc := &accumulator{docs: make(map[DocKey]float64)}
	if q != nil {
		acc.score(q)
	}
	return acc.docs
}

// accumulator is the running result of a reduction. Until something has been
// folded in it is the identity for intersection and union.
type accumulator struct {
	docs   map[DocKey]float64
	seeded bool
}

func (a *accumulator) score(q *Query) {
	a.fold(scoreTerms(q.Terms), q.Combinator)
	for _, child := range []*Query{q.And, q.Or, q.Not} {
		if child != nil {
			a.score(child)
		}
	}
}

// fold combines local into the result. Subtracting from nothing stays
// nothing and does not count as a first fold.
func (a *accumulator) fold(local map[DocKey]float64, c Combinator) {
	switch {
	case c == Subtraction:
		subtract(a.docs, local)
		return
	case !a.seeded || c == Union:
		union(a.docs, local)
	default:
		intersect(a.docs, local)
	}
	a.seeded = true
}

// scoreTerms folds one level's terms in order. The first non-subtracting
// term seeds the set; a subtraction met before that removes nothing.
func scoreTerms(terms []*Term) map[DocKey]float64 {
	local := make(map[DocKey]float64)
	seeded := false
	for _, t := range terms {
		docs := termDocs(t)
		switch {
		case t.Combinator == Subtraction:
			subtract(local, docs)
		case !seeded:
			union(local, docs)
			seeded = true
		case t.Combinator == Intersection:
			intersect(local, docs)
		default:
			union(local, docs)
		}
	}
	return local
}

func termDocs(t *Term) map[DocKey]float64 {
	if t.DocumentIDs == nil || t.DocumentIDs.IsEmpty() {
		return nil
	}
	docs := make(map[DocKey]float64, t.DocumentIDs.GetCardinality())
	it := t.DocumentIDs.Iterator()
	for it.HasNext() {
		docs[DocKey{CollectionID: t.CollectionID, DocID: int64(it.Next())}] = t.Score
	}
	return docs
}

func intersect(into, other map[DocKey]float64) {
	for k, s := range into {
		o, ok := other[k]
		if !ok {
			delete(into, k)
			continue
		}
		into[k] = s + o
	}
}

func union(into, other map[DocKey]float64) {
	for k, s := range other {
		into[k] += s
	}
}

func subtract(into, other map[DocKey]float64) {
	for k := range other {
		delete(into, k)
	}
}
