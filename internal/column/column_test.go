package column

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/postings"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type comparer struct{ identical, fold float64 }

func (c comparer) CosAngle(a, b *vector.Vector) float64 { return vector.CosAngle(a, b) }
func (c comparer) IdenticalAngle() float64              { return c.identical }
func (c comparer) FoldAngle() float64                   { return c.fold }

var testModel = comparer{identical: 0.998, fold: 0.5}

type bufferStream struct{ bytes.Buffer }

func (b *bufferStream) Position() int64 { return int64(b.Len()) }

// files is an in-memory column: .ix, .ixtp, .vec and .pos.
type files struct {
	index, pageIndex, vectors, postings bufferStream
	pw                                  *postings.Writer
}

func newFiles(t *testing.T) *files {
	t.Helper()
	f := &files{}
	pw, err := postings.NewWriter(&f.postings)
	require.NoError(t, err)
	f.pw = pw
	return f
}

func (f *files) commit(t *testing.T, tr *tree.Tree) {
	t.Helper()
	_, _, err := CreatePage(tr, &f.vectors, f.pw, &f.index, NewPageIndexWriter(&f.pageIndex))
	require.NoError(t, err)
}

func (f *files) reader(t *testing.T) *Reader {
	t.Helper()
	pages, err := NewPageIndexReader(bytes.NewReader(f.pageIndex.Bytes()), int64(f.pageIndex.Len())).ReadAll()
	require.NoError(t, err)
	return NewReader(pages, bytes.NewReader(f.index.Bytes()), bytes.NewReader(f.vectors.Bytes()))
}

func (f *files) resolve(t *testing.T, offsets []int64) []uint64 {
	t.Helper()
	ids, err := postings.ReadMany(bytes.NewReader(f.postings.Bytes()), offsets)
	require.NoError(t, err)
	return ids.ToArray()
}

func dense(values ...float32) *vector.Vector { return vector.Dense(values, "") }

func TestPageIndexRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewPageIndexWriter(&buf)
	require.NoError(t, w.Put(0, 80))
	require.NoError(t, w.Put(80, 40))
	buf.Write([]byte{1, 2, 3})

	pages, err := NewPageIndexReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []Page{{Offset: 0, Length: 80}, {Offset: 80, Length: 40}}, pages)
	assert.Equal(t, int64(2), pages[0].Records())

	pages, err = NewPageIndexReader(bytes.NewReader(nil), 0).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestCreatePageSkipsEmptyTree(t *testing.T) {
	f := newFiles(t)
	depth, width, err := CreatePage(tree.New(), &f.vectors, f.pw, &f.index, NewPageIndexWriter(&f.pageIndex))
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Zero(t, width)
	assert.Zero(t, f.pageIndex.Len())
	assert.Zero(t, f.index.Len())
}

func TestFindBestMatchFollowsRightTurns(t *testing.T) {
	f := newFiles(t)
	tr := tree.New()
	tr.AddOrAppend(tree.NewNode(dense(1, 0), 1, 1), testModel)
	tr.AddOrAppend(tree.NewNode(dense(0.8, 0.6), 1, 2), testModel)
	tr.AddOrAppend(tree.NewNode(dense(0, 1), 1, 3), testModel)
	tr.AddOrAppend(tree.NewNode(dense(-0.6, 0.8), 1, 4), testModel)
	f.commit(t, tr)

	r := f.reader(t)
	hit, err := r.FindBestMatch(dense(0, 1), testModel, ScanAllPages)
	require.NoError(t, err)
	require.True(t, hit.IsIdentical(testModel))
	assert.Equal(t, []uint64{3}, f.resolve(t, hit.PostingsOffsets))

	hit, err = r.FindBestMatch(dense(-0.6, 0.8), testModel, ScanAllPages)
	require.NoError(t, err)
	require.True(t, hit.IsIdentical(testModel))
	assert.Equal(t, []uint64{4}, f.resolve(t, hit.PostingsOffsets))

	hit, err = r.FindBestMatch(dense(0.9, 0.43), testModel, ScanAllPages)
	require.NoError(t, err)
	require.True(t, hit.Found())
	assert.False(t, hit.IsIdentical(testModel))
	assert.Equal(t, []uint64{2}, f.resolve(t, hit.PostingsOffsets))
}

func TestIdenticalHitStandsAlone(t *testing.T) {
	f := newFiles(t)
	tr := tree.New()
	tr.AddOrAppend(tree.NewNode(dense(1, 0.1), 1, 100), testModel)
	tr.AddOrAppend(tree.NewNode(dense(1, 0), 1, 200), testModel)
	require.Equal(t, 2, tr.Count(), "0.995 is below the identical angle")
	f.commit(t, tr)

	hit, err := f.reader(t).FindBestMatch(dense(1, 0), testModel, ScanAllPages)
	require.NoError(t, err)
	require.True(t, hit.IsIdentical(testModel))
	assert.InDelta(t, 1.0, hit.Score, 1e-6)
	require.Len(t, hit.PostingsOffsets, 1)
	assert.Equal(t, []uint64{200}, f.resolve(t, hit.PostingsOffsets))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFailedPageKeepsTreeRetryable(t *testing.T) {
	tr := tree.New()
	tr.AddOrAppend(tree.NewNode(dense(1, 0), 1, 1), testModel)
	tr.AddOrAppend(tree.NewNode(dense(0.8, 0.6), 1, 2), testModel)
	tr.AddOrAppend(tree.NewNode(dense(0, 1), 1, 3), testModel)

	aborted := newFiles(t)
	_, _, err := CreatePage(tr, &aborted.vectors, aborted.pw, &aborted.index, NewPageIndexWriter(failingWriter{}))
	require.Error(t, err)
	require.NoError(t, tr.Walk(func(n *tree.Node) error {
		assert.Equal(t, int64(-1), n.VectorOffset)
		assert.Equal(t, int64(-1), n.PostingsOffset)
		return nil
	}))

	f := newFiles(t)
	f.commit(t, tr)
	r := f.reader(t)
	for i, v := range []*vector.Vector{dense(1, 0), dense(0.8, 0.6), dense(0, 1)} {
		hit, err := r.FindBestMatch(v, testModel, ScanAllPages)
		require.NoError(t, err)
		require.True(t, hit.IsIdentical(testModel), "vector %d", i)
		assert.Equal(t, []uint64{uint64(i + 1)}, f.resolve(t, hit.PostingsOffsets))
	}
}

func TestFindBestMatchNothingAboveZero(t *testing.T) {
	f := newFiles(t)
	tr := tree.New()
	tr.AddOrAppend(tree.NewNode(dense(1, 0), 1, 1), testModel)
	f.commit(t, tr)

	hit, err := f.reader(t).FindBestMatch(dense(-1, 0), testModel, ScanAllPages)
	require.NoError(t, err)
	assert.False(t, hit.Found())
}

func TestSerializeThenLookupEveryVector(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := newFiles(t)
	tr := tree.New()

	const dims = 12
	vs := make([]*vector.Vector, 300)
	for i := range vs {
		values := make([]float32, dims)
		for j := range values {
			if rng.IntN(3) == 0 {
				values[j] = rng.Float32()*2 - 1
			}
		}
		values[rng.IntN(dims)] = 1
		vs[i] = dense(values...)
		tr.AddOrAppend(tree.NewNode(vs[i], 1, int64(i)), testModel)
	}
	f.commit(t, tr)

	r := f.reader(t)
	for i, v := range vs {
		hit, err := r.FindBestMatch(v, testModel, ScanAllPages)
		require.NoError(t, err)
		require.GreaterOrEqual(t, hit.Score, testModel.IdenticalAngle(), "vector %d", i)
		assert.Contains(t, f.resolve(t, hit.PostingsOffsets), uint64(i))
	}
}

func TestPoliciesAcrossPages(t *testing.T) {
	f := newFiles(t)
	v := dense(1, 2, 3)

	first := tree.New()
	first.AddOrAppend(tree.NewNode(v, 1, 1), testModel)
	f.commit(t, first)

	second := tree.New()
	second.AddOrAppend(tree.NewNode(v, 1, 2), testModel)
	second.AddOrAppend(tree.NewNode(dense(-3, 0, 1), 1, 3), testModel)
	f.commit(t, second)

	r := f.reader(t)
	require.Len(t, r.Pages(), 2)

	all, err := r.FindBestMatch(v, testModel, ScanAllPages)
	require.NoError(t, err)
	assert.Len(t, all.PostingsOffsets, 2, "identical nodes on different pages tie")
	assert.Equal(t, []uint64{1, 2}, f.resolve(t, all.PostingsOffsets))

	newest, err := r.FindBestMatch(v, testModel, StopAtFirstIdenticalPage)
	require.NoError(t, err)
	assert.Len(t, newest.PostingsOffsets, 1)
	assert.Equal(t, []uint64{2}, f.resolve(t, newest.PostingsOffsets))
}

func TestInheritedChainSeesEveryGeneration(t *testing.T) {
	f := newFiles(t)
	v := dense(1, 2, 3)

	first := tree.New()
	first.AddOrAppend(tree.NewNode(v, 1, 1, 2, 3), testModel)
	f.commit(t, first)

	hit, err := f.reader(t).FindBestMatch(v, testModel, StopAtFirstIdenticalPage)
	require.NoError(t, err)
	require.True(t, hit.IsIdentical(testModel))

	second := tree.New()
	n := tree.NewNode(v, 1, 4, 5)
	n.PostingsOffset = hit.PostingsOffsets[0]
	second.AddOrAppend(n, testModel)
	f.commit(t, second)

	hit, err = f.reader(t).FindBestMatch(v, testModel, StopAtFirstIdenticalPage)
	require.NoError(t, err)
	require.Len(t, hit.PostingsOffsets, 1)

	ids := roaring64.New()
	require.NoError(t, postings.Read(bytes.NewReader(f.postings.Bytes()), hit.PostingsOffsets[0], ids))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids.ToArray())
}

func TestTruncatedPageIsCorrupt(t *testing.T) {
	f := newFiles(t)
	tr := tree.New()
	tr.AddOrAppend(tree.NewNode(dense(1, 0), 1, 1), testModel)
	tr.AddOrAppend(tree.NewNode(dense(0.8, 0.6), 1, 2), testModel)
	f.commit(t, tr)

	index := f.index.Bytes()[:tree.RecordSize+8]
	r := NewReader([]Page{{Offset: 0, Length: 2 * tree.RecordSize}}, bytes.NewReader(index), bytes.NewReader(f.vectors.Bytes()))
	_, err := r.FindBestMatch(dense(0.8, 0.6), testModel, ScanAllPages)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

func TestHitTies(t *testing.T) {
	var h Hit
	h.consider(0.5, tree.Record{}, 8)
	h.consider(0.505, tree.Record{Weight: 2}, 16)
	assert.Equal(t, []int64{8, 16}, h.PostingsOffsets)
	assert.InDelta(t, 0.505, h.Score, 1e-9)
	assert.Equal(t, int64(2), h.Record.Weight)

	h.consider(0.505, tree.Record{}, 16)
	assert.Len(t, h.PostingsOffsets, 2)

	h.consider(0.9, tree.Record{}, 24)
	assert.Equal(t, []int64{24}, h.PostingsOffsets)

	h.consider(0.2, tree.Record{}, 32)
	h.consider(0, tree.Record{}, 40)
	assert.Equal(t, []int64{24}, h.PostingsOffsets)
}
