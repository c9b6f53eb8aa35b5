package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
)

// Tolerance is the slack Approximates allows when comparing two scores.
const Tolerance = 0.01

// CosAngle returns the cosine similarity of a and b. A zero vector has no
// angle to anything and scores 0.
func CosAngle(a, b *Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return a.Dot(b) / (na * nb)
}

// Approximates reports whether two scores are equal within Tolerance.
func Approximates(a, b float64) bool {
	return math.Abs(a-b) < Tolerance
}

// StreamCalculator compares in-memory vectors with vectors that live in a
// vector file, decoding components straight out of a reusable buffer. A
// StreamCalculator is not safe for concurrent use.
type StreamCalculator struct {
	buf []byte
}

// CosAngleAt returns the cosine similarity between q and the count
// components stored at off in r. A count that cannot fit in r, when r knows
// its size, or a short read is ErrCorruptIndex.
func (c *StreamCalculator) CosAngleAt(q *Vector, r io.ReaderAt, off int64, count int64) (float64, error) {
	if count < 0 || off < 0 {
		return 0, fmt.Errorf("vector at %d with %d components: %w", off, count, apperrors.ErrCorruptIndex)
	}
	if sr, ok := r.(interface{ Size() int64 }); ok && count > (sr.Size()-off)/ComponentSize {
		return 0, fmt.Errorf("vector at %d with %d components runs past %d: %w", off, count, sr.Size(), apperrors.ErrCorruptIndex)
	}
	size := int(count * ComponentSize)
	if cap(c.buf) < size {
		c.buf = make([]byte, size)
	}
	buf := c.buf[:size]
	if _, err := r.ReadAt(buf, off); err != nil {
		if errors.Is(err, io.EOF) {
			err = apperrors.ErrCorruptIndex
		}
		return 0, fmt.Errorf("reading vector components at %d: %w", off, err)
	}
	n := int(count)
	values := buf[n*4:]

	var dot, norm float64
	j := 0
	for i := 0; i < n; i++ {
		idx := int32(binary.LittleEndian.Uint32(buf[i*4:]))
		val := float64(math.Float32frombits(binary.LittleEndian.Uint32(values[i*4:])))
		norm += val * val
		for j < len(q.indices) && q.indices[j] < idx {
			j++
		}
		if j < len(q.indices) && q.indices[j] == idx {
			dot += float64(q.values[j]) * val
		}
	}
	qn := q.Norm()
	if qn == 0 || norm == 0 {
		return 0, nil
	}
	return dot / (qn * math.Sqrt(norm)), nil
}
