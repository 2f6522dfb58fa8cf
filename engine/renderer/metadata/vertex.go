package metadata

import "fmt"

// ElementType is the type of one vertex attribute.
type ElementType int

const (
	ElementFloat ElementType = iota
	ElementFloat2
	ElementFloat3
	ElementFloat4
	ElementInt
	ElementInt2
	ElementInt3
	ElementInt4
)

// Size returns the byte size of the element. Int variants match their float
// counterparts.
func (e ElementType) Size() uint32 {
	switch e {
	case ElementFloat, ElementInt:
		return 4
	case ElementFloat2, ElementInt2:
		return 8
	case ElementFloat3, ElementInt3:
		return 12
	case ElementFloat4, ElementInt4:
		return 16
	default:
		panic(fmt.Sprintf("metadata: unknown vertex element type %d", int(e)))
	}
}

// Components is the scalar count of the element.
func (e ElementType) Components() uint32 {
	return e.Size() / 4
}

func (e ElementType) IsInteger() bool {
	return e >= ElementInt && e <= ElementInt4
}

// VertexLayout is the ordered list of attributes of one interleaved vertex.
type VertexLayout []ElementType

// Size is the stride of one vertex: the plain sum of its elements, no padding.
func (l VertexLayout) Size() uint32 {
	var size uint32
	for _, e := range l {
		size += e.Size()
	}
	return size
}

// Offsets returns the byte offset of every element within a vertex.
func (l VertexLayout) Offsets() []uint32 {
	offsets := make([]uint32, len(l))
	var off uint32
	for i, e := range l {
		offsets[i] = off
		off += e.Size()
	}
	return offsets
}

// GetVertexSize is shorthand for VertexLayout(elements).Size().
func GetVertexSize(elements ...ElementType) uint32 {
	return VertexLayout(elements).Size()
}
