package tree

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testComparer struct{}

func (testComparer) CosAngle(a, b *vector.Vector) float64 { return vector.CosAngle(a, b) }
func (testComparer) IdenticalAngle() float64              { return 0.9 }
func (testComparer) FoldAngle() float64                   { return 0.5 }

type bufferStream struct{ bytes.Buffer }

func (b *bufferStream) Position() int64 { return int64(b.Len()) }

type postingCall struct {
	ids  []int64
	next int64
}

type fakePostings struct {
	calls  []postingCall
	pos    int64
	failOn int
}

var errDiskFull = errors.New("disk full")

func (f *fakePostings) Write(ids []int64, next int64) (int64, error) {
	if f.failOn > 0 && len(f.calls)+1 == f.failOn {
		return 0, errDiskFull
	}
	f.calls = append(f.calls, postingCall{ids: ids, next: next})
	off := f.pos + 8
	f.pos = off + int64(16+8*len(ids))
	return off, nil
}

func dense(label string, values ...float32) *vector.Vector {
	return vector.Dense(values, label)
}

// buildSample creates a tree shaped
//
//	root
//	   \
//	    a
//	   / \
//	  c   d
//
// with b merged into a.
func buildSample(t *testing.T) *Tree {
	t.Helper()
	tr := New()
	m := testComparer{}
	tr.AddOrAppend(NewNode(dense("a", 1, 0), 1, 1), m)
	tr.AddOrAppend(NewNode(dense("c", 0.8, 0.6), 1, 2), m)
	tr.AddOrAppend(NewNode(dense("d", 0, 1), 1, 3), m)
	tr.AddOrAppend(NewNode(dense("b", 1, 0), 1, 4), m)
	return tr
}

func TestAddOrAppendShapeAndWeights(t *testing.T) {
	tr := buildSample(t)
	require.Equal(t, 3, tr.Count())

	a := tr.Right(tr.Root())
	require.NotNil(t, a)
	assert.Equal(t, "a", a.Vector.Label)
	assert.Equal(t, []int64{1, 4}, a.Documents())
	assert.Equal(t, int64(3), a.Weight)
	assert.Equal(t, int64(3), tr.Root().Weight)

	c, d := tr.Left(a), tr.Right(a)
	require.NotNil(t, c)
	require.NotNil(t, d)
	assert.Equal(t, "c", c.Vector.Label)
	assert.Equal(t, "d", d.Vector.Label)
	assert.Equal(t, int64(1), c.Weight)
	assert.Same(t, a, tr.Ancestor(c))
	assert.True(t, tr.Root().IsRoot())
	assert.False(t, a.IsRoot())
}

func TestInsertCopiesPayload(t *testing.T) {
	tr := New()
	n := NewNode(dense("a", 1, 0), 1, 1)
	tr.AddOrAppend(n, testComparer{})
	n.DocIDs.Add(99)

	held := tr.Right(tr.Root())
	assert.NotSame(t, n, held)
	assert.Equal(t, []int64{1}, held.Documents())
}

func TestMergeAdoptsPostingsOffset(t *testing.T) {
	tr := New()
	m := testComparer{}
	tr.AddOrAppend(NewNode(dense("a", 1, 0), 1, 1), m)
	onDisk := NewNode(dense("a", 1, 0), 1)
	onDisk.PostingsOffset = 128
	tr.AddOrAppend(onDisk, m)

	assert.Equal(t, int64(128), tr.Right(tr.Root()).PostingsOffset)
	assert.Equal(t, 1, tr.Count())
}

func TestAddOrAppendSupervised(t *testing.T) {
	tr := New()
	m := testComparer{}
	require.NoError(t, tr.AddOrAppendSupervised(NewNode(dense("a", 1, 0), 1, 1), m))
	require.NoError(t, tr.AddOrAppendSupervised(NewNode(dense("a", 1, 0.01), 1, 2), m))
	assert.Equal(t, []int64{1, 2}, tr.Right(tr.Root()).Documents())

	err := tr.AddOrAppendSupervised(NewNode(dense("other", 1, 0), 1, 3), m)
	assert.ErrorIs(t, err, apperrors.ErrLabelMismatch)
	assert.Equal(t, []int64{1, 2}, tr.Right(tr.Root()).Documents())
}

func TestAddIfUniqueAndTryAdd(t *testing.T) {
	tr := New()
	m := testComparer{}
	assert.True(t, tr.AddIfUnique(NewNode(dense("a", 1, 0), 1, 1), m))
	assert.False(t, tr.AddIfUnique(NewNode(dense("a", 1, 0), 1, 2), m))
	assert.Equal(t, []int64{1}, tr.Right(tr.Root()).Documents())

	holder, added := tr.TryAdd(NewNode(dense("a2", 2, 0), 1, 3), m)
	assert.False(t, added)
	assert.Equal(t, "a", holder.Vector.Label)

	holder, added = tr.TryAdd(NewNode(dense("d", 0, 1), 1, 4), m)
	assert.True(t, added)
	assert.Equal(t, "d", holder.Vector.Label)
	assert.Equal(t, 2, tr.Count())
}

func TestWalkOrderAndSize(t *testing.T) {
	tr := buildSample(t)
	tr.AddOrAppend(NewNode(dense("e", -1, 0), 1, 5), testComparer{})

	var labels []string
	require.NoError(t, tr.Walk(func(n *Node) error {
		labels = append(labels, n.Vector.Label)
		return nil
	}))
	assert.Equal(t, []string{"a", "c", "d", "e"}, labels)

	depth, width := tr.Size()
	assert.Equal(t, 3, depth)
	assert.Equal(t, 2, width)

	depth, width = New().Size()
	assert.Zero(t, depth)
	assert.Zero(t, width)
}

func TestSerialize(t *testing.T) {
	tr := buildSample(t)
	var vectors bufferStream
	var index bytes.Buffer
	postings := &fakePostings{}

	count, err := tr.Serialize(&vectors, postings, &index)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.Equal(t, 3*RecordSize, index.Len())

	raw := index.Bytes()
	a := DecodeRecord(raw[0:])
	c := DecodeRecord(raw[RecordSize:])
	d := DecodeRecord(raw[2*RecordSize:])

	assert.Equal(t, TerminatorBoth, a.Terminator)
	assert.Equal(t, TerminatorLeaf, c.Terminator)
	assert.Equal(t, TerminatorLeaf, d.Terminator)
	assert.Equal(t, int64(3), a.Weight)
	assert.Equal(t, int64(1), c.Weight)

	assert.Equal(t, int64(0), a.VectorOffset)
	assert.Equal(t, a.VectorOffset+a.ComponentCount*vector.ComponentSize, c.VectorOffset)
	assert.Equal(t, int64(vectors.Len()), d.VectorOffset+d.ComponentCount*vector.ComponentSize)

	require.Len(t, postings.calls, 3)
	assert.Equal(t, []int64{1, 4}, postings.calls[0].ids)
	assert.Zero(t, postings.calls[0].next)
	assert.Greater(t, a.PostingsOffset, int64(0))

	restored, err := vector.Read(bytes.NewReader(vectors.Bytes()), c.VectorOffset, c.ComponentCount, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vector.CosAngle(restored, dense("", 0.8, 0.6)), 1e-6)
}

func TestSerializeChainsExistingPostings(t *testing.T) {
	tr := New()
	n := NewNode(dense("a", 1, 0), 1, 7)
	n.PostingsOffset = 64
	n.VectorOffset = 0
	tr.AddOrAppend(n, testComparer{})

	var vectors bufferStream
	var index bytes.Buffer
	postings := &fakePostings{}
	_, err := tr.Serialize(&vectors, postings, &index)
	require.NoError(t, err)

	require.Len(t, postings.calls, 1)
	assert.Equal(t, int64(64), postings.calls[0].next)
	assert.Zero(t, vectors.Len(), "vectors already on disk are not rewritten")
}

func TestSerializeRejectsEmptyPostings(t *testing.T) {
	tr := New()
	tr.AddOrAppend(NewNode(dense("a", 1, 0), 1), testComparer{})

	var vectors bufferStream
	var index bytes.Buffer
	_, err := tr.Serialize(&vectors, &fakePostings{}, &index)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPostings)
	assert.Zero(t, index.Len())
	assert.Zero(t, vectors.Len())
}

func TestSerializeWithoutPostingsWriter(t *testing.T) {
	tr := New()
	n := NewNode(dense("a", 1, 0), 1, 1)
	tr.AddOrAppend(n, testComparer{})

	var vectors bufferStream
	var index bytes.Buffer
	_, err := tr.Serialize(&vectors, nil, &index)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPostings)

	tr.Right(tr.Root()).PostingsOffset = 8
	count, err := tr.Serialize(&vectors, nil, &index)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(8), DecodeRecord(index.Bytes()).PostingsOffset)
}

func TestFailedSerializeLeavesNodesUntouched(t *testing.T) {
	tr := buildSample(t)

	var vectors bufferStream
	var index bytes.Buffer
	_, err := tr.Serialize(&vectors, &fakePostings{failOn: 2}, &index)
	require.ErrorIs(t, err, errDiskFull)
	require.NoError(t, tr.Walk(func(n *Node) error {
		assert.Equal(t, int64(-1), n.VectorOffset, "vector %q", n.Vector.Label)
		assert.Equal(t, int64(-1), n.PostingsOffset, "vector %q", n.Vector.Label)
		return nil
	}))

	var retryVectors bufferStream
	var retryIndex bytes.Buffer
	postings := &fakePostings{}
	count, err := tr.Serialize(&retryVectors, postings, &retryIndex)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	raw := retryIndex.Bytes()
	offsets := make([]int64, 0, count)
	for i := int64(0); i < count; i++ {
		offsets = append(offsets, DecodeRecord(raw[i*RecordSize:]).VectorOffset)
	}
	assert.Equal(t, []int64{0, 8, 24}, offsets, "every vector is rewritten at its own offset")
	assert.Equal(t, 32, retryVectors.Len())
	for _, c := range postings.calls {
		assert.Zero(t, c.next, "no chain into the aborted attempt")
	}
}

func TestSnapshotRestoresOffsets(t *testing.T) {
	tr := New()
	n := NewNode(dense("a", 1, 0), 1, 1)
	n.PostingsOffset = 64
	n.VectorOffset = 8
	tr.AddOrAppend(n, testComparer{})

	saved := tr.Snapshot()
	var vectors bufferStream
	var index bytes.Buffer
	_, err := tr.Serialize(&vectors, &fakePostings{}, &index)
	require.NoError(t, err)
	assert.NotEqual(t, int64(64), tr.Right(tr.Root()).PostingsOffset)

	saved.Apply()
	assert.Equal(t, int64(64), tr.Right(tr.Root()).PostingsOffset)
	assert.Equal(t, int64(8), tr.Right(tr.Root()).VectorOffset)
}
