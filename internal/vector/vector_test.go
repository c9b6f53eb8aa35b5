package vector

import (
	"bytes"
	"io"
	"math"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsAndMergesComponents(t *testing.T) {
	v, err := New(10, []int32{7, 2, 7}, []float32{1, 3, 2}, "x")
	require.NoError(t, err)

	indices, values := v.Components()
	assert.Equal(t, []int32{2, 7}, indices)
	assert.Equal(t, []float32{3, 3}, values)
	assert.Equal(t, 10, v.Dims())
	assert.Equal(t, "x", v.Label)
}

func TestNewRejectsOutOfRangeComponent(t *testing.T) {
	_, err := New(4, []int32{4}, []float32{1}, "")
	require.Error(t, err)

	_, err = New(4, []int32{1, 2}, []float32{1}, "")
	require.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	a := Dense([]float32{1, 0, 2}, "a")
	b := Dense([]float32{0, 1, 2}, "b")

	sum := a.Add(b)
	assert.Equal(t, float32(1), sum.At(0))
	assert.Equal(t, float32(1), sum.At(1))
	assert.Equal(t, float32(4), sum.At(2))

	diff := a.Subtract(b)
	assert.Equal(t, float32(1), diff.At(0))
	assert.Equal(t, float32(-1), diff.At(1))
	assert.Equal(t, 2, diff.Len(), "equal components cancel out")

	avg := Average(a, b)
	assert.Equal(t, float32(0.5), avg.At(0))
	assert.Equal(t, float32(2), avg.At(2))

	a.AddInPlace(b)
	assert.Equal(t, float32(4), a.At(2))
	assert.Nil(t, Average())
}

func TestShiftAndAppend(t *testing.T) {
	a := Dense([]float32{1, 2}, "")
	b := Dense([]float32{3}, "")

	shifted := a.Shift(3)
	assert.Equal(t, 5, shifted.Dims())
	assert.Equal(t, float32(1), shifted.At(3))
	assert.Equal(t, float32(2), shifted.At(4))

	joined := a.Append(b)
	assert.Equal(t, 3, joined.Dims())
	assert.Equal(t, float32(1), joined.At(0))
	assert.Equal(t, float32(2), joined.At(1))
	assert.Equal(t, float32(3), joined.At(2))
}

func TestCosAngle(t *testing.T) {
	a := Dense([]float32{1, 2, 3}, "")
	b := Dense([]float32{-1, -2, -3}, "")
	c := Dense([]float32{0, 0, 0}, "")

	assert.InDelta(t, 1.0, CosAngle(a, a), Tolerance)
	assert.InDelta(t, -1.0, CosAngle(a, b), Tolerance)
	assert.Equal(t, 0.0, CosAngle(a, c))
}

func TestApproximates(t *testing.T) {
	assert.True(t, Approximates(0.995, 1.0))
	assert.False(t, Approximates(0.98, 1.0))
}

func TestWriteReadRoundTrip(t *testing.T) {
	v := FromMap(100, map[int32]float32{3: 1.5, 42: -2, 99: 0.25}, "")

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff})
	n, err := v.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, v.SerializedSize(), n)

	got, err := Read(bytes.NewReader(buf.Bytes()), 2, int64(v.Len()), 100)
	require.NoError(t, err)
	gi, gv := got.Components()
	wi, wv := v.Components()
	assert.Equal(t, wi, gi)
	assert.Equal(t, wv, gv)
}

func TestStreamCalculatorMatchesInMemory(t *testing.T) {
	stored := FromMap(64, map[int32]float32{1: 1, 5: 2, 9: 3, 40: 1}, "")
	query := FromMap(64, map[int32]float32{5: 1, 9: 1, 63: 4}, "")

	var buf bytes.Buffer
	_, err := stored.WriteTo(&buf)
	require.NoError(t, err)

	var calc StreamCalculator
	got, err := calc.CosAngleAt(query, bytes.NewReader(buf.Bytes()), 0, int64(stored.Len()))
	require.NoError(t, err)
	assert.InDelta(t, CosAngle(query, stored), got, 1e-6)

	self, err := calc.CosAngleAt(stored, bytes.NewReader(buf.Bytes()), 0, int64(stored.Len()))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, Tolerance)
}

func TestStreamCalculatorShortRead(t *testing.T) {
	var calc StreamCalculator
	_, err := calc.CosAngleAt(Dense([]float32{1}, ""), bytes.NewReader([]byte{1, 2}), 0, 1)
	require.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

type sizelessReader struct{ r *bytes.Reader }

func (s sizelessReader) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }

func TestStreamCalculatorRejectsBadCounts(t *testing.T) {
	stored := Dense([]float32{1, 2}, "")
	var buf bytes.Buffer
	_, err := stored.WriteTo(&buf)
	require.NoError(t, err)
	data := bytes.NewReader(buf.Bytes())

	var calc StreamCalculator
	_, err = calc.CosAngleAt(stored, data, 0, -3)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)

	_, err = calc.CosAngleAt(stored, data, 0, math.MaxInt32)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
	assert.Less(t, cap(calc.buf), 1024, "no buffer sized from a corrupt count")

	_, err = calc.CosAngleAt(stored, io.NewSectionReader(data, 0, 8), 0, 2)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)

	_, err = calc.CosAngleAt(stored, sizelessReader{data}, 0, 3)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}
