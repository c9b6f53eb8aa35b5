package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collection = "fruit"

type fixture struct {
	provider *storage.Provider
	docs     *docstore.Memory
	model    *model.BagOfChars
	indexer  *Indexer
	search   *SearchSession
	parser   *query.Parser
}

func newFixture(t *testing.T, strat strategy.Strategy) *fixture {
	t.Helper()
	provider, err := storage.NewProvider(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	docs := docstore.NewMemory()
	m := model.NewBagOfChars(model.Options{IdenticalAngle: 0.9})
	return &fixture{
		provider: provider,
		docs:     docs,
		model:    m,
		indexer:  NewIndexer(provider, docs, m, strat, nil),
		search:   NewSearchSession(provider, docs, m, strat, nil),
		parser:   query.NewParser(m, []string{"title", "description"}),
	}
}

func (f *fixture) index(t *testing.T, docs ...map[string]any) []int64 {
	t.Helper()
	ids, err := f.indexer.IndexDocuments(context.Background(), collection, docs)
	require.NoError(t, err)
	return ids
}

func (f *fixture) query(t *testing.T, raw string, skip, take int) *Result {
	t.Helper()
	q, err := f.parser.Parse(storage.CollectionID(collection), raw, nil)
	require.NoError(t, err)
	res, err := f.search.Search(context.Background(), q, skip, take)
	require.NoError(t, err)
	return res
}

func titles(res *Result) []any {
	out := make([]any, 0, len(res.Documents))
	for _, d := range res.Documents {
		out = append(out, d.Document.Fields["title"])
	}
	return out
}

func fruit(t *testing.T, f *fixture) []int64 {
	return f.index(t,
		map[string]any{"title": "first", "description": "apple"},
		map[string]any{"title": "second", "description": "apples"},
		map[string]any{"title": "third", "description": "banana"},
	)
}

func TestSearchFindsExactWord(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	ids := fruit(t, f)
	assert.Equal(t, []int64{0, 1, 2}, ids)

	res := f.query(t, "description:apple", 0, 10)
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, int64(0), res.Documents[0].Document.ID)
	assert.GreaterOrEqual(t, res.Documents[0].Score, f.model.IdenticalAngle())

	res = f.query(t, "description:apples", 0, 10)
	assert.Equal(t, []any{"second"}, titles(res))
}

func TestSearchSkipBeyondTotal(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	fruit(t, f)

	res := f.query(t, "description:banana", 5, 10)
	assert.Equal(t, 1, res.Total)
	assert.Empty(t, res.Documents)
}

func TestSearchBooleanQueries(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	f.index(t,
		map[string]any{"title": "apple", "description": "red"},
		map[string]any{"title": "banana", "description": "yellow"},
	)

	res := f.query(t, "title:apple OR title:banana", 0, 10)
	assert.Equal(t, 2, res.Total)
	for _, d := range res.Documents {
		assert.InDelta(t, 0.5, d.Score, 0.01, "scores are scaled by the number of terms")
	}

	res = f.query(t, "title:apple AND description:red", 0, 10)
	assert.Equal(t, []any{"apple"}, titles(res))

	res = f.query(t, "title:apple AND description:yellow", 0, 10)
	assert.Zero(t, res.Total)

	res = f.query(t, "title:apple NOT description:red", 0, 10)
	assert.Zero(t, res.Total)

	res = f.query(t, "NOT title:apple", 0, 10)
	assert.Zero(t, res.Total, "NOT never generates results")
}

func TestSearchUnknownFieldMatchesNothing(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	fruit(t, f)

	res := f.query(t, "colour:apple", 0, 10)
	assert.Zero(t, res.Total)
	assert.NotNil(t, res.Documents)

	res = f.query(t, "", 0, 10)
	assert.Zero(t, res.Total)
}

func TestSearchSelectsFields(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	fruit(t, f)

	q, err := f.parser.Parse(storage.CollectionID(collection), "description:banana", []string{"title"})
	require.NoError(t, err)
	res, err := f.search.Search(context.Background(), q, 0, 10)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, map[string]any{"title": "third"}, res.Documents[0].Document.Fields)
}

func TestStrategiesAgreeAcrossBatches(t *testing.T) {
	for _, strat := range []strategy.Strategy{strategy.LogStructured, strategy.Optimized} {
		t.Run(strat.String(), func(t *testing.T) {
			f := newFixture(t, strat)
			f.index(t, map[string]any{"title": "one", "description": "apple"})
			f.index(t, map[string]any{"title": "two", "description": "apple"})
			f.index(t, map[string]any{"title": "three", "description": "cherry"})

			res := f.query(t, "description:apple", 0, 10)
			assert.ElementsMatch(t, []any{"one", "two"}, titles(res))
		})
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	ctx := context.Background()
	s := f.indexer.OpenSession(storage.CollectionID(collection))
	defer s.Close()

	doc, err := f.indexer.Store(ctx, s.CollectionID(), map[string]any{"description": "apple pie"})
	require.NoError(t, err)
	tokens, err := f.indexer.Analyze(doc)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.NoError(t, s.Put(tokens[0].DocID, tokens[0].KeyID, tokens[0].Vectors))

	pages, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Equal(t, StateCommitted, s.State())

	pages, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Zero(t, pages)

	r, err := f.provider.OpenColumnReader(s.CollectionID(), tokens[0].KeyID)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.Pages(), 1)
}

func TestPutCollapsesRepeatedTokens(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	f.index(t, map[string]any{"description": "apple apple apple"})

	keys, err := f.provider.KeyMap(storage.CollectionID(collection))
	require.NoError(t, err)
	keyID, ok := keys.KeyID("description")
	require.True(t, ok)

	r, err := f.provider.OpenColumnReader(storage.CollectionID(collection), keyID)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.Pages(), 1)
	assert.Equal(t, int64(1), r.Pages()[0].Records())
}

func TestClosedSessionRejectsWork(t *testing.T) {
	f := newFixture(t, strategy.LogStructured)
	s := f.indexer.OpenSession(storage.CollectionID(collection))
	require.NoError(t, s.Close())
	assert.Equal(t, StateDisposed, s.State())

	v := f.model.CreateEmbedding("apple", false)
	assert.ErrorIs(t, s.Put(0, 0, v), apperrors.ErrSessionClosed)
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
	assert.NoError(t, s.Close())
}

func TestSupervisedRejectsRelabelledMerge(t *testing.T) {
	f := newFixture(t, strategy.Supervised)
	s := f.indexer.OpenSession(storage.CollectionID(collection))
	defer s.Close()

	apple := f.model.CreateEmbedding("apple", true)
	require.NoError(t, s.Put(0, 0, apple))

	pear := f.model.CreateEmbedding("apple", true)
	pear[0].Label = "pear"
	assert.ErrorIs(t, s.Put(1, 0, pear), apperrors.ErrLabelMismatch)
}

func TestPageHelper(t *testing.T) {
	ranked := rank(map[query.DocKey]float64{
		{DocID: 3}: 0.5,
		{DocID: 1}: 0.9,
		{DocID: 2}: 0.5,
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(1), ranked[0].key.DocID)
	assert.Equal(t, int64(2), ranked[1].key.DocID, "ties keep document order")

	assert.Len(t, page(ranked, 1, 1), 1)
	assert.Len(t, page(ranked, 0, 0), 3)
	assert.Nil(t, page(ranked, 3, 1))
	assert.Len(t, page(ranked, -1, 2), 2)
}
