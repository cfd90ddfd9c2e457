package metadata

import (
	"unsafe"

	"github.com/spaghettifunk/hawk/engine/math"
)

/**
 * @brief A packed vertex as consumed by the G-buffer fill pass:
 * POSITION, NORMAL, TANGENT (R32G32B32_FLOAT) and TEXCOORD (R32G32_FLOAT).
 */
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	Tangent  math.Vec3
	Texcoord math.Vec2
}

// VertexStride is the byte size of one packed Vertex.
const VertexStride = uint32(unsafe.Sizeof(Vertex{}))

// IndexStride is the byte size of one index. Indices are always 32 bit.
const IndexStride = uint32(4)

// VertexInputLayout is the layout the fill pipeline expects from shader reflection.
var VertexInputLayout = []InputElementDesc{
	{SemanticName: "POSITION", Format: FormatR32G32B32Float, AlignedByteOffset: 0, Location: 0},
	{SemanticName: "NORMAL", Format: FormatR32G32B32Float, AlignedByteOffset: 12, Location: 1},
	{SemanticName: "TANGENT", Format: FormatR32G32B32Float, AlignedByteOffset: 24, Location: 2},
	{SemanticName: "TEXCOORD", Format: FormatR32G32Float, AlignedByteOffset: 36, Location: 3},
}

/**
 * @brief One draw range of a model. Offset is the first index in the flattened
 * index buffer and VertexBase the first vertex in the flattened vertex buffer.
 */
type Mesh struct {
	IndexMaterial uint32
	CountIndexes  uint32
	VertexBase    uint32
	Offset        uint32
}

// VertexBytes views the vertices as raw bytes without copying.
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(VertexStride))
}

// IndexBytes views the indices as raw bytes without copying.
func IndexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*int(IndexStride))
}
