package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocumentsLines(t *testing.T) {
	docs, err := DecodeDocuments(strings.NewReader("{\"title\":\"apple\"}\n\n{\"title\":\"banana\"}\n"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "banana", docs[1]["title"])
}

func TestDecodeDocumentsArray(t *testing.T) {
	docs, err := DecodeDocuments(strings.NewReader("  \n[{\"title\":\"apple\"},{\"title\":\"banana\"}]"))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDecodeDocumentsErrors(t *testing.T) {
	_, err := DecodeDocuments(strings.NewReader("{\"title\":\"apple\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")

	docs, err := DecodeDocuments(strings.NewReader("   "))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDecodeRequest(t *testing.T) {
	docs, err := DecodeRequest(strings.NewReader(`{"documents":[{"title":"apple"}]}`), "application/json")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = DecodeRequest(strings.NewReader(`[{"title":"apple"},{"title":"pear"}]`), "")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = DecodeRequest(strings.NewReader("{\"title\":\"apple\"}\n{\"title\":\"pear\"}\n"), NDJSONContentType+"; charset=utf-8")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = DecodeRequest(strings.NewReader(""), "application/json")
	assert.Error(t, err)
	_, err = DecodeRequest(strings.NewReader("{"), "application/json")
	assert.Error(t, err)
}
