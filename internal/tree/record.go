package tree

import "encoding/binary"

// RecordSize is the fixed width of a serialized node: five little-endian
// int64 fields.
const RecordSize = 5 * 8

// Terminator values describe which children follow a record in file order.
const (
	TerminatorBoth      int64 = 0
	TerminatorLeftOnly  int64 = 1
	TerminatorRightOnly int64 = 2
	TerminatorLeaf      int64 = 3
)

// Record is the on-disk form of a tree node. The tree shape is carried only
// by record order and Terminator; there are no child pointers.
type Record struct {
	VectorOffset   int64
	PostingsOffset int64
	ComponentCount int64
	Weight         int64
	Terminator     int64
}

// HasLeft reports whether the next record in file order is this node's left
// child.
func (r Record) HasLeft() bool {
	return r.Terminator == TerminatorBoth || r.Terminator == TerminatorLeftOnly
}

// HasRight reports whether the node has a right child somewhere after it.
func (r Record) HasRight() bool {
	return r.Terminator == TerminatorBoth || r.Terminator == TerminatorRightOnly
}

// Encode writes r into buf, which must hold at least RecordSize bytes.
func (r Record) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.VectorOffset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.PostingsOffset))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.ComponentCount))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(r.Weight))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(r.Terminator))
}

// DecodeRecord reads a Record from the first RecordSize bytes of buf.
func DecodeRecord(buf []byte) Record {
	return Record{
		VectorOffset:   int64(binary.LittleEndian.Uint64(buf[0:8])),
		PostingsOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
		ComponentCount: int64(binary.LittleEndian.Uint64(buf[16:24])),
		Weight:         int64(binary.LittleEndian.Uint64(buf[24:32])),
		Terminator:     int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
}

func terminator(hasLeft, hasRight bool) int64 {
	switch {
	case hasLeft && hasRight:
		return TerminatorBoth
	case hasLeft:
		return TerminatorLeftOnly
	case hasRight:
		return TerminatorRightOnly
	default:
		return TerminatorLeaf
	}
}
