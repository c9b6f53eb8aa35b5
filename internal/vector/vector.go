// Package vector implements the fixed-dimension sparse vectors the index is
// built from, their arithmetic, and their on-disk component encoding.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// ComponentSize is the number of bytes one (index, value) pair occupies on
// disk: an int32 index plus a float32 value.
const ComponentSize = 8

// Vector is a sparse vector in a space of fixed dimensionality. Components are
// kept sorted by index and never contain duplicate indices.
type Vector struct {
	Label   string
	dims    int
	indices []int32
	values  []float32
}

// New builds a vector from parallel index and value slices. Duplicate indices
// are summed and zero values dropped.
func New(dims int, indices []int32, values []float32, label string) (*Vector, error) {
	if len(indices) != len(values) {
		return nil, fmt.Errorf("vector: %d indices but %d values", len(indices), len(values))
	}
	components := make(map[int32]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || int(idx) >= dims {
			return nil, fmt.Errorf("vector: component %d outside dimensionality %d", idx, dims)
		}
		components[idx] += values[i]
	}
	return FromMap(dims, components, label), nil
}

// FromMap builds a vector from an index→value map. Components outside
// [0,dims) are ignored.
func FromMap(dims int, components map[int32]float32, label string) *Vector {
	v := &Vector{
		Label:   label,
		dims:    dims,
		indices: make([]int32, 0, len(components)),
		values:  make([]float32, 0, len(components)),
	}
	for idx, val := range components {
		if idx < 0 || int(idx) >= dims || val == 0 {
			continue
		}
		v.indices = append(v.indices, idx)
	}
	sort.Slice(v.indices, func(i, j int) bool { return v.indices[i] < v.indices[j] })
	for _, idx := range v.indices {
		v.values = append(v.values, components[idx])
	}
	return v
}

// Dense builds a vector from a dense slice.
func Dense(values []float32, label string) *Vector {
	components := make(map[int32]float32, len(values))
	for i, val := range values {
		components[int32(i)] = val
	}
	return FromMap(len(values), components, label)
}

// Dims returns the dimensionality of the space the vector lives in.
func (v *Vector) Dims() int { return v.dims }

// Len returns the number of non-zero components.
func (v *Vector) Len() int { return len(v.indices) }

// Components returns the sorted component indices and their values. The
// returned slices must not be modified.
func (v *Vector) Components() ([]int32, []float32) { return v.indices, v.values }

// At returns the value of component idx.
func (v *Vector) At(idx int32) float32 {
	i := sort.Search(len(v.indices), func(i int) bool { return v.indices[i] >= idx })
	if i < len(v.indices) && v.indices[i] == idx {
		return v.values[i]
	}
	return 0
}

// Dot returns the dot product of v and other.
func (v *Vector) Dot(other *Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.indices) && j < len(other.indices) {
		switch {
		case v.indices[i] == other.indices[j]:
			sum += float64(v.values[i]) * float64(other.values[j])
			i++
			j++
		case v.indices[i] < other.indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the euclidean length of v.
func (v *Vector) Norm() float64 {
	var sum float64
	for _, val := range v.values {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// Add returns v + other in a new vector.
func (v *Vector) Add(other *Vector) *Vector {
	return v.combine(other, 1)
}

// Subtract returns v - other in a new vector.
func (v *Vector) Subtract(other *Vector) *Vector {
	return v.combine(other, -1)
}

// AddInPlace adds other into v, mutating v.
func (v *Vector) AddInPlace(other *Vector) {
	sum := v.combine(other, 1)
	v.dims, v.indices, v.values = sum.dims, sum.indices, sum.values
}

func (v *Vector) combine(other *Vector, sign float32) *Vector {
	dims := v.dims
	if other.dims > dims {
		dims = other.dims
	}
	components := make(map[int32]float32, len(v.indices)+len(other.indices))
	for i, idx := range v.indices {
		components[idx] = v.values[i]
	}
	for i, idx := range other.indices {
		components[idx] += sign * other.values[i]
	}
	return FromMap(dims, components, v.Label)
}

// Average returns the component-wise mean of vs. It returns nil for an empty
// argument list.
func Average(vs ...*Vector) *Vector {
	if len(vs) == 0 {
		return nil
	}
	sum := vs[0]
	for _, other := range vs[1:] {
		sum = sum.Add(other)
	}
	n := float32(len(vs))
	components := make(map[int32]float32, len(sum.indices))
	for i, idx := range sum.indices {
		components[idx] = sum.values[i] / n
	}
	return FromMap(sum.dims, components, vs[0].Label)
}

// Shift returns a copy of v with every component index moved n places to
// the right, growing the dimensionality by n.
func (v *Vector) Shift(n int) *Vector {
	out := &Vector{
		Label:   v.Label,
		dims:    v.dims + n,
		indices: make([]int32, len(v.indices)),
		values:  make([]float32, len(v.values)),
	}
	for i, idx := range v.indices {
		out.indices[i] = idx + int32(n)
	}
	copy(out.values, v.values)
	return out
}

// Append concatenates other after v: the result lives in a space of
// v.Dims()+other.Dims() dimensions.
func (v *Vector) Append(other *Vector) *Vector {
	shifted := other.Shift(v.dims)
	out := &Vector{
		Label:   v.Label,
		dims:    shifted.dims,
		indices: make([]int32, 0, len(v.indices)+len(shifted.indices)),
		values:  make([]float32, 0, len(v.values)+len(shifted.values)),
	}
	out.indices = append(append(out.indices, v.indices...), shifted.indices...)
	out.values = append(append(out.values, v.values...), shifted.values...)
	return out
}

// SerializedSize returns the number of bytes WriteTo produces.
func (v *Vector) SerializedSize() int64 {
	return int64(len(v.indices)) * ComponentSize
}

// WriteTo writes all component indices followed by all component values,
// little-endian.
func (v *Vector) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, v.SerializedSize())
	n := len(v.indices)
	for i, idx := range v.indices {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(idx))
	}
	for i, val := range v.values {
		binary.LittleEndian.PutUint32(buf[n*4+i*4:], math.Float32bits(val))
	}
	written, err := w.Write(buf)
	return int64(written), err
}

// Read restores a vector of count components stored at off.
func Read(r io.ReaderAt, off int64, count int64, dims int) (*Vector, error) {
	buf := make([]byte, count*ComponentSize)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("reading vector at %d: %w", off, err)
	}
	v := &Vector{
		dims:    dims,
		indices: make([]int32, count),
		values:  make([]float32, count),
	}
	for i := int64(0); i < count; i++ {
		v.indices[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		v.values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[count*4+i*4:]))
	}
	return v, nil
}
