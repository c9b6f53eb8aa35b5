package postings

import (
	"bytes"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferStream struct{ bytes.Buffer }

func (b *bufferStream) Position() int64 { return int64(b.Len()) }

func newWriter(t *testing.T) (*Writer, *bufferStream) {
	t.Helper()
	s := &bufferStream{}
	w, err := NewWriter(s)
	require.NoError(t, err)
	return w, s
}

func TestWriterStartsWithMagic(t *testing.T) {
	w, s := newWriter(t)
	assert.Equal(t, MagicSize, s.Len())
	require.NoError(t, VerifyMagic(bytes.NewReader(s.Bytes())))

	off, err := w.Write([]int64{1}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(MagicSize), off)

	again, err := NewWriter(s)
	require.NoError(t, err)
	_, err = again.Write([]int64{2}, 0)
	require.NoError(t, err)
	assert.Equal(t, MagicSize+2*(HeaderSize+IDSize), s.Len(), "magic is written once")
}

func TestReadFollowsChain(t *testing.T) {
	w, s := newWriter(t)
	first, err := w.Write([]int64{1, 2, 3}, 0)
	require.NoError(t, err)
	head, err := w.Write([]int64{4, 5}, first)
	require.NoError(t, err)

	r := bytes.NewReader(s.Bytes())
	h, err := ReadHeader(r, head)
	require.NoError(t, err)
	assert.Equal(t, Header{ItemCount: 2, NextPageOffset: first}, h)

	ids := roaring64.New()
	require.NoError(t, Read(r, head, ids))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids.ToArray())

	older := roaring64.New()
	require.NoError(t, Read(r, first, older))
	assert.Equal(t, []uint64{1, 2, 3}, older.ToArray())
}

func TestReadMany(t *testing.T) {
	w, s := newWriter(t)
	a, err := w.Write([]int64{1, 9}, 0)
	require.NoError(t, err)
	b, err := w.Write([]int64{9, 12}, 0)
	require.NoError(t, err)

	ids, err := ReadMany(bytes.NewReader(s.Bytes()), []int64{a, b})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 9, 12}, ids.ToArray())
}

func TestReadShortListIsCorrupt(t *testing.T) {
	w, s := newWriter(t)
	off, err := w.Write([]int64{1, 2, 3}, 0)
	require.NoError(t, err)

	truncated := s.Bytes()[:s.Len()-4]
	err = Read(bytes.NewReader(truncated), off, roaring64.New())
	assert.ErrorIs(t, err, apperrors.ErrCorruptPostings)
}

func TestReadRejectsLoops(t *testing.T) {
	w, s := newWriter(t)
	off, err := w.Write([]int64{1}, int64(MagicSize))
	require.NoError(t, err)
	require.Equal(t, int64(MagicSize), off)

	err = Read(bytes.NewReader(s.Bytes()), off, roaring64.New())
	assert.ErrorIs(t, err, apperrors.ErrCorruptPostings)
}

func TestWriteRejectsEmptyList(t *testing.T) {
	w, _ := newWriter(t)
	_, err := w.Write(nil, 0)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPostings)
}

func TestVerifyMagicRejectsForeignFile(t *testing.T) {
	err := VerifyMagic(bytes.NewReader(make([]byte, 16)))
	assert.ErrorIs(t, err, apperrors.ErrCorruptPostings)
}

func TestResolverCachesChains(t *testing.T) {
	w, s := newWriter(t)
	first, err := w.Write([]int64{1, 2}, 0)
	require.NoError(t, err)
	head, err := w.Write([]int64{3}, first)
	require.NoError(t, err)

	res := NewResolver(bytes.NewReader(s.Bytes()))
	ids, err := res.Resolve([]int64{head})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids.ToArray())

	ids.Add(100)
	again, err := res.Resolve([]int64{head, first})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, again.ToArray())
	assert.Equal(t, 2, res.Cached())
}
