package assets

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func TestProceduralScenes(t *testing.T) {
	src := NewDefaultSource()
	tests := []struct {
		path    string
		indices int
	}{
		{"procedural:triangle", 3},
		{"procedural:quad", 6},
		{"procedural:sphere:3", 3 * 6 * 6},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			scene, err := src.LoadScene(tt.path)
			require.NoError(t, err)
			require.Len(t, scene.Meshes, 1)
			require.Len(t, scene.Materials, 1)
			assert.Equal(t, uint32(1), scene.Meshes[0].IndexMaterial)
			assert.Equal(t, uint32(tt.indices), scene.IndexCount())
			assert.Len(t, scene.Indices, tt.indices)
		})
	}
}

func TestLoadSceneErrorsAreAssetErrors(t *testing.T) {
	src := NewDefaultSource()
	for _, path := range []string{
		"procedural:cube",
		"procedural:sphere:2",
		"scene.obj",
		filepath.Join(t.TempDir(), "missing.glb"),
	} {
		_, err := src.LoadScene(path)
		require.Error(t, err, path)
		assert.True(t, errors.Is(err, core.ErrAsset), path)

		var assetErr *core.AssetError
		require.True(t, errors.As(err, &assetErr))
		assert.Equal(t, path, assetErr.Path)
	}
}

func TestGLTFScene(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 1, 0}, {1, -1, 0}, {-1, -1, 0}})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2})
	doc.Materials = []*gltf.Material{{Name: "red"}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "triangle",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
			Attributes: map[string]int{"POSITION": pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0), Translation: [3]float64{0, 0, 5}}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	path := filepath.Join(t.TempDir(), "triangle.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))

	scene, err := NewDefaultSource().LoadScene(path)
	require.NoError(t, err)
	require.Len(t, scene.Meshes, 1)
	require.Len(t, scene.Materials, 1)
	assert.Equal(t, "red", scene.Materials[0].Name)
	assert.Equal(t, metadata.Mesh{IndexMaterial: 1, CountIndexes: 3}, scene.Meshes[0])
	require.Len(t, scene.Vertices, 3)
	assert.InDelta(t, 5.0, scene.Vertices[0].Position.Z, 1e-6)
	// Normals are generated when the file has none.
	assert.InDelta(t, 1.0, scene.Vertices[0].Normal.Length(), 1e-5)
}

func triangleDocument() *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 1, 0}, {1, -1, 0}, {-1, -1, 0}})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{"POSITION": pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func TestMalformedGLTFIsAnAssetError(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(doc *gltf.Document)
		message string
	}{
		{
			name:    "position accessor",
			corrupt: func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Attributes["POSITION"] = 42 },
			message: "accessor 42 out of range",
		},
		{
			name:    "normal accessor",
			corrupt: func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Attributes["NORMAL"] = 42 },
			message: "accessor 42 out of range",
		},
		{
			name:    "texcoord accessor",
			corrupt: func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Attributes["TEXCOORD_0"] = 42 },
			message: "accessor 42 out of range",
		},
		{
			name:    "indices accessor",
			corrupt: func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Indices = gltf.Index(42) },
			message: "accessor 42 out of range",
		},
		{
			name:    "mesh",
			corrupt: func(doc *gltf.Document) { doc.Nodes[0].Mesh = gltf.Index(9) },
			message: "mesh 9 out of range",
		},
		{
			name:    "child node",
			corrupt: func(doc *gltf.Document) { doc.Nodes[0].Children = []int{5} },
			message: "node 5 out of range",
		},
		{
			name: "texture",
			corrupt: func(doc *gltf.Document) {
				doc.Materials = []*gltf.Material{{
					PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 3}},
				}}
			},
			message: "texture 3 out of range",
		},
		{
			name: "texture image",
			corrupt: func(doc *gltf.Document) {
				doc.Textures = []*gltf.Texture{{Source: gltf.Index(7)}}
				doc.Materials = []*gltf.Material{{
					PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}},
				}}
			},
			message: "image 7 out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := triangleDocument()
			tt.corrupt(doc)
			path := filepath.Join(t.TempDir(), "broken.glb")
			require.NoError(t, gltf.SaveBinary(doc, path))

			var err error
			require.NotPanics(t, func() { _, err = NewDefaultSource().LoadScene(path) })
			require.ErrorIs(t, err, core.ErrAsset)
			assert.ErrorContains(t, err, tt.message)

			var assetErr *core.AssetError
			require.True(t, errors.As(err, &assetErr))
			assert.Equal(t, path, assetErr.Path)
		})
	}
}

func TestMalformedGLTFJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gltf")
	doc := `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"mesh": 0}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 5}}]}]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var err error
	require.NotPanics(t, func() { _, err = NewDefaultSource().LoadScene(path) })
	require.ErrorIs(t, err, core.ErrAsset)
	assert.ErrorContains(t, err, "accessor 5 out of range")
}

func TestTextureSource(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	f, err := os.Create(filepath.Join(dir, "two.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	textures := NewTextureSource(dir)

	loaded, err := textures.LoadTexture("two.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), loaded.Width)
	assert.Equal(t, uint32(1), loaded.Height)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, loaded.Pixels)

	for _, name := range []string{
		metadata.DEFAULT_DIFFUSE_TEXTURE_NAME,
		metadata.DEFAULT_SPECULAR_TEXTURE_NAME,
		metadata.DEFAULT_NORMAL_TEXTURE_NAME,
	} {
		def, err := textures.LoadTexture(name)
		require.NoError(t, err)
		assert.Len(t, def.Pixels, 4, name)
	}

	_, err = textures.LoadTexture("missing.png")
	assert.ErrorIs(t, err, core.ErrAsset)
}

func TestShaderWatcher(t *testing.T) {
	dir := t.TempDir()
	bus := core.NewEventBus()
	fired := make(chan string, 8)
	bus.Register(core.EVENT_CODE_SHADER_CHANGED, nil, func(ctx core.EventContext, _ interface{}) bool {
		fired <- ctx.Data.(core.ShaderChangedEvent).Path
		return true
	})

	sw, err := NewShaderWatcher(dir, bus)
	require.NoError(t, err)
	defer sw.Close()

	shader := filepath.Join(dir, "fill_gbuffer.wgsl")
	require.NoError(t, os.WriteFile(shader, []byte("// v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	select {
	case path := <-fired:
		assert.Equal(t, shader, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no shader change event")
	}
	assert.Equal(t, []string{shader}, sw.Drain())
}

func TestShaderWatcherCloseTwice(t *testing.T) {
	sw, err := NewShaderWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, sw.Close())
	assert.Error(t, sw.Close())
}
