package metadata

/**
 * @brief Geometry and materials as produced by an asset source. Mesh
 * IndexMaterial 0 selects the default material and k > 0 selects
 * Materials[k-1]. Offset and VertexBase point into the flattened Indices and
 * Vertices.
 */
type Scene struct {
	Name      string
	Vertices  []Vertex
	Indices   []uint32
	Meshes    []Mesh
	Materials []MaterialDesc
}

// IndexCount sums the index counts of every mesh.
func (s *Scene) IndexCount() uint32 {
	n := uint32(0)
	for _, m := range s.Meshes {
		n += m.CountIndexes
	}
	return n
}

/** @brief Decoded texture pixels, always tightly packed RGBA8. */
type Image struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []byte
}
