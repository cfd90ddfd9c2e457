package loaders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/hawk/engine/geometry"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// ProceduralPrefix marks scene paths served by ProceduralLoader.
const ProceduralPrefix = "procedural:"

const defaultSphereTessellation = 16

// ProceduralLoader builds single-mesh scenes from generated geometry:
// "procedural:sphere[:tessellation]", "procedural:quad" and
// "procedural:triangle". The mesh uses one untextured material.
type ProceduralLoader struct{}

func (pl *ProceduralLoader) LoadScene(path string) (*metadata.Scene, error) {
	shape, ok := strings.CutPrefix(path, ProceduralPrefix)
	if !ok {
		return nil, assetError(path, fmt.Errorf("missing %q prefix", ProceduralPrefix))
	}
	kind, arg, _ := strings.Cut(shape, ":")

	var (
		g   *geometry.Geometry
		err error
	)
	switch kind {
	case "sphere":
		tessellation := uint64(defaultSphereTessellation)
		if arg != "" {
			if tessellation, err = strconv.ParseUint(arg, 10, 32); err != nil {
				return nil, assetError(path, fmt.Errorf("tessellation: %w", err))
			}
		}
		if g, err = geometry.GenerateSphere(uint32(tessellation)); err != nil {
			return nil, assetError(path, err)
		}
	case "quad":
		g = geometry.GenerateQuad()
	case "triangle":
		g = geometry.GenerateTriangle()
	default:
		return nil, assetError(path, fmt.Errorf("unknown procedural shape %q", kind))
	}

	return &metadata.Scene{
		Name:     kind,
		Vertices: g.Vertices,
		Indices:  g.Indices,
		Meshes: []metadata.Mesh{
			{IndexMaterial: 1, CountIndexes: uint32(len(g.Indices))},
		},
		Materials: []metadata.MaterialDesc{{
			Name:      kind,
			Ambient:   math.NewVec4(0.1, 0.1, 0.1, 1),
			Diffuse:   math.NewVec4(0.8, 0.8, 0.8, 1),
			Specular:  math.NewVec4(0.5, 0.5, 0.5, 1),
			Shininess: 32,
		}},
	}, nil
}
