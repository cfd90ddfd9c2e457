package loaders

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/geometry"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// GLTFLoader flattens the default scene of a .gltf or .glb file into one
// vertex and index stream. Node transforms are baked into the vertices.
type GLTFLoader struct{}

func (gl *GLTFLoader) LoadScene(path string) (*metadata.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, assetError(path, err)
	}
	dir := filepath.Dir(path)

	scene := &metadata.Scene{Name: filepath.Base(path)}
	for i, gm := range doc.Materials {
		mat, err := gltfMaterial(doc, dir, i, gm)
		if err != nil {
			return nil, assetError(path, err)
		}
		scene.Materials = append(scene.Materials, mat)
	}

	roots := gltfRoots(doc)
	for _, root := range roots {
		if err := gl.visit(doc, scene, root, math.NewMat4Identity()); err != nil {
			return nil, assetError(path, err)
		}
	}
	if len(scene.Meshes) == 0 {
		return nil, assetError(path, errors.New("scene has no triangle geometry"))
	}
	core.LogInfo("loaded %s: %d meshes, %d materials, %d vertices", path,
		len(scene.Meshes), len(scene.Materials), len(scene.Vertices))
	return scene, nil
}

func gltfMaterial(doc *gltf.Document, dir string, index int, gm *gltf.Material) (metadata.MaterialDesc, error) {
	mat := metadata.MaterialDesc{
		Name:      gm.Name,
		Ambient:   math.NewVec4(0.1, 0.1, 0.1, 1),
		Diffuse:   math.NewVec4One(),
		Specular:  math.NewVec4(0.5, 0.5, 0.5, 1),
		Shininess: 32,
	}
	if mat.Name == "" {
		mat.Name = fmt.Sprintf("material_%d", index)
	}
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		cf := pbr.BaseColorFactorOrDefault()
		mat.Diffuse = math.NewVec4(float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3]))
		if pbr.BaseColorTexture != nil {
			path, err := gltfTexturePath(doc, dir, pbr.BaseColorTexture.Index)
			if err != nil {
				return mat, fmt.Errorf("material %d base color: %w", index, err)
			}
			mat.Textures[metadata.TextureSlotDiffuse] = path
		}
		// Smooth surfaces get a tight highlight, metals a bright one.
		roughness := float32(pbr.RoughnessFactorOrDefault())
		metallic := float32(pbr.MetallicFactorOrDefault())
		mat.Shininess = (1.0-roughness)*(1.0-roughness)*128.0 + 1.0
		s := metallic * 0.7
		mat.Specular = math.NewVec4(s, s, s, 1)
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
		path, err := gltfTexturePath(doc, dir, *gm.NormalTexture.Index)
		if err != nil {
			return mat, fmt.Errorf("material %d normal: %w", index, err)
		}
		mat.Textures[metadata.TextureSlotNormal] = path
	}
	ef := gm.EmissiveFactor
	mat.Emission = math.NewVec4(float32(ef[0]), float32(ef[1]), float32(ef[2]), 1)
	return mat, nil
}

// gltfTexturePath resolves a texture to its image file. Images embedded in
// buffers are not supported and fall back to the default texture.
func gltfTexturePath(doc *gltf.Document, dir string, index int) (string, error) {
	if index < 0 || index >= len(doc.Textures) {
		return "", fmt.Errorf("texture %d out of range", index)
	}
	source := doc.Textures[index].Source
	if source == nil {
		return "", nil
	}
	if *source < 0 || *source >= len(doc.Images) {
		return "", fmt.Errorf("texture %d: image %d out of range", index, *source)
	}
	img := doc.Images[*source]
	if img.URI == "" || img.IsEmbeddedResource() {
		core.LogWarn("texture %d is embedded, using the default texture", index)
		return "", nil
	}
	return filepath.Join(dir, img.URI), nil
}

func gltfAccessor(doc *gltf.Document, index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}
	return doc.Accessors[index], nil
}

func gltfRoots(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func gltfLocalTransform(node *gltf.Node) math.Mat4 {
	t := node.TranslationOrDefault()
	s := node.ScaleOrDefault()
	r := node.RotationOrDefault()
	rotation := math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}

	scale := math.NewMat4Scale(math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2])))
	translation := math.NewMat4Translation(math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2])))
	return scale.Mul(rotation.ToMat4()).Mul(translation)
}

func (gl *GLTFLoader) visit(doc *gltf.Document, scene *metadata.Scene, index int, parent math.Mat4) error {
	if index < 0 || index >= len(doc.Nodes) {
		return fmt.Errorf("node %d out of range", index)
	}
	node := doc.Nodes[index]
	world := gltfLocalTransform(node).Mul(parent)

	if node.Mesh != nil {
		if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
			return fmt.Errorf("node %d: mesh %d out of range", index, *node.Mesh)
		}
		for pi, prim := range doc.Meshes[*node.Mesh].Primitives {
			if err := gl.appendPrimitive(doc, scene, prim, world); err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", *node.Mesh, pi, err)
			}
		}
	}
	for _, child := range node.Children {
		if err := gl.visit(doc, scene, child, world); err != nil {
			return err
		}
	}
	return nil
}

func (gl *GLTFLoader) appendPrimitive(doc *gltf.Document, scene *metadata.Scene, prim *gltf.Primitive, world math.Mat4) error {
	if prim.Mode != gltf.PrimitiveTriangles {
		core.LogWarn("skipping primitive with mode %d", prim.Mode)
		return nil
	}
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("no POSITION attribute")
	}
	accessor, err := gltfAccessor(doc, posIdx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, accessor, nil)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if accessor, err = gltfAccessor(doc, idx); err != nil {
			return fmt.Errorf("normals: %w", err)
		}
		if normals, err = modeler.ReadNormal(doc, accessor, nil); err != nil {
			return fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if accessor, err = gltfAccessor(doc, idx); err != nil {
			return fmt.Errorf("texcoords: %w", err)
		}
		if uvs, err = modeler.ReadTextureCoord(doc, accessor, nil); err != nil {
			return fmt.Errorf("texcoords: %w", err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if accessor, err = gltfAccessor(doc, *prim.Indices); err != nil {
			return fmt.Errorf("indices: %w", err)
		}
		if indices, err = modeler.ReadIndices(doc, accessor, nil); err != nil {
			return fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%d indices do not form triangles", len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(positions) {
			return fmt.Errorf("index %d out of range", i)
		}
	}

	normalMatrix := world.Inverse().Transposed()
	vertices := make([]metadata.Vertex, len(positions))
	for i, p := range positions {
		v := metadata.Vertex{Position: math.NewVec3(p[0], p[1], p[2]).Transform(world)}
		if i < len(uvs) {
			v.Texcoord = math.NewVec2(uvs[i][0], uvs[i][1])
		}
		if i < len(normals) {
			v.Normal = math.NewVec3(normals[i][0], normals[i][1], normals[i][2]).TransformDirection(normalMatrix).Normalized()
		}
		vertices[i] = v
	}
	if len(normals) == 0 {
		geometry.GenerateNormals(vertices, indices)
	}
	geometry.GenerateTangents(vertices, indices)

	// Material 0 is the default material; declared materials follow.
	material := uint32(0)
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(scene.Materials) {
		material = uint32(*prim.Material) + 1
	}
	scene.Meshes = append(scene.Meshes, metadata.Mesh{
		IndexMaterial: material,
		CountIndexes:  uint32(len(indices)),
		VertexBase:    uint32(len(scene.Vertices)),
		Offset:        uint32(len(scene.Indices)),
	})
	scene.Vertices = append(scene.Vertices, vertices...)
	scene.Indices = append(scene.Indices, indices...)
	return nil
}
