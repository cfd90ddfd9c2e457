package geometry

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// MinSphereTessellation is the smallest tessellation GenerateSphere accepts.
const MinSphereTessellation = 3

/** @brief An indexed triangle list. */
type Geometry struct {
	Vertices []metadata.Vertex
	Indices  []uint32
}

/**
 * @brief Generates a unit sphere with tessellation stacks and twice as many
 * slices. Normals point outwards and tangents follow the u direction.
 * @param tessellation Number of vertical segments. Must be at least 3.
 */
func GenerateSphere(tessellation uint32) (*Geometry, error) {
	if tessellation < MinSphereTessellation {
		err := fmt.Errorf("sphere tessellation %d is out of range, must be at least %d", tessellation, MinSphereTessellation)
		core.LogError("%s", err)
		return nil, err
	}
	vertical := tessellation
	horizontal := tessellation * 2

	g := &Geometry{
		Vertices: make([]metadata.Vertex, 0, (vertical+1)*(horizontal+1)),
		Indices:  make([]uint32, 0, vertical*horizontal*6),
	}
	for i := uint32(0); i <= vertical; i++ {
		v := 1.0 - float32(i)/float32(vertical)
		latitude := float32(i)*math.K_PI/float32(vertical) - math.K_HALF_PI
		dy, dxz := math32.Sin(latitude), math32.Cos(latitude)

		for j := uint32(0); j <= horizontal; j++ {
			u := float32(j) / float32(horizontal)
			longitude := float32(j) * 2.0 * math.K_PI / float32(horizontal)
			dx, dz := math32.Sin(longitude)*dxz, math32.Cos(longitude)*dxz

			normal := math.NewVec3(dx, dy, dz)
			g.Vertices = append(g.Vertices, metadata.Vertex{
				Position: normal,
				Normal:   normal,
				Texcoord: math.NewVec2(u, v),
			})
		}
	}

	stride := horizontal + 1
	for i := uint32(0); i < vertical; i++ {
		for j := uint32(0); j < horizontal; j++ {
			next := i + 1
			g.Indices = append(g.Indices,
				i*stride+j, next*stride+j, i*stride+j+1,
				i*stride+j+1, next*stride+j, next*stride+j+1,
			)
		}
	}
	GenerateTangents(g.Vertices, g.Indices)
	return g, nil
}

// GenerateQuad returns a 2x2 quad in the XY plane facing -Z.
func GenerateQuad() *Geometry {
	normal := math.NewVec3(0, 0, -1)
	g := &Geometry{
		Vertices: []metadata.Vertex{
			{Position: math.NewVec3(-1, 1, 0), Normal: normal, Texcoord: math.NewVec2(0, 0)},
			{Position: math.NewVec3(1, 1, 0), Normal: normal, Texcoord: math.NewVec2(1, 0)},
			{Position: math.NewVec3(1, -1, 0), Normal: normal, Texcoord: math.NewVec2(1, 1)},
			{Position: math.NewVec3(-1, -1, 0), Normal: normal, Texcoord: math.NewVec2(0, 1)},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	GenerateTangents(g.Vertices, g.Indices)
	return g
}

// GenerateTriangle returns a single clockwise triangle facing -Z.
func GenerateTriangle() *Geometry {
	g := &Geometry{
		Vertices: []metadata.Vertex{
			{Position: math.NewVec3(0, 1, 0), Texcoord: math.NewVec2(0.5, 0)},
			{Position: math.NewVec3(1, -1, 0), Texcoord: math.NewVec2(1, 1)},
			{Position: math.NewVec3(-1, -1, 0), Texcoord: math.NewVec2(0, 1)},
		},
		Indices: []uint32{0, 1, 2},
	}
	GenerateNormals(g.Vertices, g.Indices)
	GenerateTangents(g.Vertices, g.Indices)
	return g
}

// GenerateNormals assigns face normals. Smoothing is not performed.
func GenerateNormals(vertices []metadata.Vertex, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// GenerateTangents assigns per-face tangents from the texture coordinates.
// Faces with degenerate UVs keep their previous tangent.
func GenerateTangents(vertices []metadata.Vertex, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		duv1 := vertices[i1].Texcoord.Sub(vertices[i0].Texcoord)
		duv2 := vertices[i2].Texcoord.Sub(vertices[i0].Texcoord)

		det := duv1.X*duv2.Y - duv2.X*duv1.Y
		if math32.Abs(det) < math.K_FLOAT_EPSILON {
			continue
		}
		f := 1.0 / det
		tangent := edge1.MulScalar(duv2.Y).Sub(edge2.MulScalar(duv1.Y)).MulScalar(f).Normalized()

		vertices[i0].Tangent = tangent
		vertices[i1].Tangent = tangent
		vertices[i2].Tangent = tangent
	}
}
