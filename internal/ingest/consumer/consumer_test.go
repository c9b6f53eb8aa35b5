package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	collections []string
	docs        []map[string]any
	err         error
}

func (r *recorder) Submit(_ context.Context, collection string, fields map[string]any) error {
	if r.err != nil {
		return r.err
	}
	r.collections = append(r.collections, collection)
	r.docs = append(r.docs, fields)
	return nil
}

func TestHandleMessage(t *testing.T) {
	rec := &recorder{}
	h := HandleMessage(rec)

	err := h(context.Background(), []byte("k"), []byte(`{"collection":"fruit","document":{"title":"apple"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"fruit"}, rec.collections)
	assert.Equal(t, "apple", rec.docs[0]["title"])
}

func TestHandleMessageSkipsBadEvents(t *testing.T) {
	rec := &recorder{}
	h := HandleMessage(rec)

	assert.NoError(t, h(context.Background(), nil, []byte(`not json`)))
	assert.NoError(t, h(context.Background(), nil, []byte(`{"collection":"","document":{"a":"b"}}`)))
	assert.NoError(t, h(context.Background(), nil, []byte(`{"collection":"fruit"}`)))
	assert.Empty(t, rec.collections)
}

func TestHandleMessagePropagatesSubmitErrors(t *testing.T) {
	boom := errors.New("pipeline stopped")
	h := HandleMessage(&recorder{err: boom})
	err := h(context.Background(), nil, []byte(`{"collection":"fruit","document":{"title":"apple"}}`))
	assert.ErrorIs(t, err, boom)
}
