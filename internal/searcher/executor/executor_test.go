package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	provider, err := storage.NewProvider(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	docs := docstore.NewMemory()
	m := model.NewBagOfChars(model.Options{})

	_, err = session.NewIndexer(provider, docs, m, strategy.LogStructured, nil).
		IndexDocuments(context.Background(), "fruit", []map[string]any{
			{"title": "apple", "colour": "red"},
			{"title": "banana", "colour": "yellow"},
		})
	require.NoError(t, err)

	return New(query.NewParser(m, []string{"title"}), session.NewSearchSession(provider, docs, m, strategy.LogStructured, nil))
}

func TestExecute(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Execute(context.Background(), Request{Collection: "fruit", Query: "apple", Select: []string{"colour"}})
	require.NoError(t, err)

	assert.Equal(t, "fruit", res.Collection)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "red", res.Results[0].Document.Fields["colour"])
	assert.NotContains(t, res.Results[0].Document.Fields, "title")
	require.Len(t, res.TermStats, 1)
	for _, score := range res.TermStats {
		assert.InDelta(t, 1.0, score, 0.01)
	}
}

func TestExecuteRejectsBadRequests(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Execute(context.Background(), Request{Query: "apple"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Execute(context.Background(), Request{Collection: "fruit", Query: `"apple`})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExecuteUnknownCollectionIsEmpty(t *testing.T) {
	res, err := newExecutor(t).Execute(context.Background(), Request{Collection: "trees", Query: "apple"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.TermStats)
}

func TestNormalized(t *testing.T) {
	r := Request{Query: "  a   b ", Select: []string{" Title "}}.Normalized()
	assert.Equal(t, "a b", r.Query)
	assert.Equal(t, []string{"title"}, r.Select)
}
