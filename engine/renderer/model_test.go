package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/geometry"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type modelFixture struct {
	dev     *headless.Device
	ctx     *CommandContext
	heaps   *DescriptorHeaps
	tracker *StateTracker
}

func newModelFixture(t *testing.T) *modelFixture {
	t.Helper()
	dev := newTestDevice(t)
	heaps, err := NewDescriptorHeaps(dev, DefaultHeapCapacities())
	require.NoError(t, err)
	t.Cleanup(heaps.Release)
	return &modelFixture{
		dev:     dev,
		ctx:     newTestContext(t, dev, device.QueueGraphics),
		heaps:   heaps,
		tracker: NewStateTracker(),
	}
}

func (f *modelFixture) load(t *testing.T, scene *metadata.Scene, textures assets.TextureSource) *Model {
	t.Helper()
	m, err := NewModel(f.dev, f.ctx, f.heaps, f.tracker, scene, textures)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func TestModelSingleTriangle(t *testing.T) {
	f := newModelFixture(t)
	scene := triangleScene()
	m := f.load(t, scene, textureSource())

	require.Len(t, m.Meshes(), 1)
	assert.Equal(t, metadata.Mesh{IndexMaterial: 1, CountIndexes: 3, VertexBase: 0, Offset: 0}, m.Meshes()[0])
	assert.Len(t, m.Materials(), 2, "default material plus the scene's")
	assert.Equal(t, uint32(3), m.VertexCount())
	assert.Equal(t, uint32(3), m.IndexCount())
	assert.Equal(t, metadata.DefaultMaterialName, m.Materials()[0].Name)
	assert.Equal(t, "red", m.Materials()[1].Name)

	// Empty slots resolve to the default textures.
	assert.Equal(t, m.Materials()[0].Textures, m.Materials()[1].Textures)
	stride := uint64(f.heaps.CBVSRVUAV.Stride())
	assert.Equal(t, m.Materials()[0].FirstDescriptor.Offset(uint64(metadata.DescriptorsPerMaterial)*stride), m.Materials()[1].FirstDescriptor)
	assert.Equal(t, 2*metadata.DescriptorsPerMaterial, f.heaps.CBVSRVUAV.Size())

	assert.Equal(t, metadata.VertexBytes(scene.Vertices), headless.Contents(m.VertexBuffer()))
	assert.Equal(t, metadata.IndexBytes(scene.Indices), headless.Contents(m.IndexBuffer()))
	assert.Equal(t, metadata.ResourceStateVertexAndConstantBuffer, f.dev.StateOf(m.VertexBuffer()))
	assert.Equal(t, metadata.ResourceStateIndexBuffer, f.dev.StateOf(m.IndexBuffer()))
	require.NoError(t, f.tracker.Require(m.VertexBuffer(), metadata.ResourceStateVertexAndConstantBuffer))
	require.NoError(t, f.tracker.Require(m.IndexBuffer(), metadata.ResourceStateIndexBuffer))

	// Vertex buffer, index buffer and the three deduplicated default textures.
	assert.Equal(t, 5, f.dev.LiveResources())
	assert.Equal(t, CommandContextStateIdle, f.ctx.State())
	assertClean(t, f.dev)
}

func TestModelSortsMeshesByMaterial(t *testing.T) {
	f := newModelFixture(t)
	quad := geometry.GenerateQuad()
	const k = 5
	materials := []uint32{2, 0, 1, 2, 0}

	scene := &metadata.Scene{
		Name:      "quads",
		Vertices:  quad.Vertices,
		Materials: []metadata.MaterialDesc{{Name: "a"}, {Name: "b"}},
	}
	for i := 0; i < k; i++ {
		scene.Meshes = append(scene.Meshes, metadata.Mesh{
			IndexMaterial: materials[i],
			CountIndexes:  uint32(len(quad.Indices)),
			Offset:        uint32(len(scene.Indices)),
		})
		scene.Indices = append(scene.Indices, quad.Indices...)
	}
	m := f.load(t, scene, textureSource())

	require.Len(t, m.Meshes(), k)
	assert.Equal(t, scene.IndexCount(), m.IndexCount())
	sum, offset := uint32(0), uint32(0)
	for i, mesh := range m.Meshes() {
		if i > 0 {
			assert.LessOrEqual(t, m.Meshes()[i-1].IndexMaterial, mesh.IndexMaterial)
		}
		assert.Equal(t, offset, mesh.Offset)
		offset += mesh.CountIndexes
		sum += mesh.CountIndexes
	}
	assert.Equal(t, m.IndexCount(), sum)
	assert.Equal(t, []uint32{0, 0, 1, 2, 2}, []uint32{
		m.Meshes()[0].IndexMaterial, m.Meshes()[1].IndexMaterial, m.Meshes()[2].IndexMaterial,
		m.Meshes()[3].IndexMaterial, m.Meshes()[4].IndexMaterial,
	})
	assert.Len(t, m.Materials(), 3)
	assertClean(t, f.dev)
}

// quadsScene holds one quad per material, each with its own vertices.
func quadsScene(materials ...uint32) *metadata.Scene {
	quad := geometry.GenerateQuad()
	scene := &metadata.Scene{
		Name:      "quads",
		Materials: []metadata.MaterialDesc{{Name: "a"}, {Name: "b"}},
	}
	for _, material := range materials {
		scene.Meshes = append(scene.Meshes, metadata.Mesh{
			IndexMaterial: material,
			CountIndexes:  uint32(len(quad.Indices)),
			VertexBase:    uint32(len(scene.Vertices)),
			Offset:        uint32(len(scene.Indices)),
		})
		scene.Vertices = append(scene.Vertices, quad.Vertices...)
		scene.Indices = append(scene.Indices, quad.Indices...)
	}
	return scene
}

func TestModelSortKeepsVertexBase(t *testing.T) {
	f := newModelFixture(t)
	scene := quadsScene(2, 0, 1)
	quadVertices := uint32(len(geometry.GenerateQuad().Vertices))
	m := f.load(t, scene, textureSource())

	require.Len(t, m.Meshes(), 3)
	assert.Equal(t, 3*quadVertices, m.VertexCount())
	count := scene.Meshes[0].CountIndexes
	assert.Equal(t, []metadata.Mesh{
		{IndexMaterial: 0, CountIndexes: count, VertexBase: quadVertices, Offset: 0},
		{IndexMaterial: 1, CountIndexes: count, VertexBase: 2 * quadVertices, Offset: count},
		{IndexMaterial: 2, CountIndexes: count, VertexBase: 0, Offset: 2 * count},
	}, m.Meshes())
	assertClean(t, f.dev)
}

func TestModelDrawBindsTableOnceThenMaterialPerMesh(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	require.NoError(t, r.LoadModel(quadsScene(2, 0, 1, 0), textureSource()))
	m := r.Model()

	dev.ResetTrace()
	require.NoError(t, r.DrawFrame(newTestCamera()))

	var draws []headless.Command
	tables := 0
	for _, c := range dev.Trace() {
		switch {
		case c.Kind == headless.CmdRootDescriptorTable && c.Queue == device.QueueGraphics && c.Slot == FillSlotTextures:
			tables++
			require.Empty(t, draws, "the texture table is bound before the first draw")
			assert.Equal(t, m.Materials()[0].FirstDescriptor, c.Handles[0])
		case c.Kind == headless.CmdRootConstant, c.Kind == headless.CmdDrawIndexed:
			draws = append(draws, c)
		}
	}
	assert.Equal(t, 1, tables)

	require.Len(t, draws, 2*len(m.Meshes()))
	for i, mesh := range m.Meshes() {
		constant, draw := draws[2*i], draws[2*i+1]
		require.Equal(t, headless.CmdRootConstant, constant.Kind)
		assert.Equal(t, mesh.IndexMaterial, constant.Value)
		require.Equal(t, headless.CmdDrawIndexed, draw.Kind)
		assert.Equal(t, [3]uint32{mesh.CountIndexes, 1, mesh.Offset}, draw.Counts)
		assert.Equal(t, int32(mesh.VertexBase), draw.BaseVertex)
	}
	assert.Equal(t, []uint32{0, 0, 1, 2}, []uint32{draws[0].Value, draws[2].Value, draws[4].Value, draws[6].Value})
	assertClean(t, dev)
}

func TestModelDeduplicatesTextures(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	file, err := os.Create(filepath.Join(dir, "checker.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())

	f := newModelFixture(t)
	scene := triangleScene()
	checker := metadata.MaterialDesc{Name: "checker"}
	checker.Textures[metadata.TextureSlotDiffuse] = "checker.png"
	scene.Materials = []metadata.MaterialDesc{checker, checker}
	scene.Meshes[0].IndexMaterial = 2

	m := f.load(t, scene, assets.NewTextureSource(dir))
	assert.Len(t, m.Materials(), 3)
	assert.Equal(t, "checker.png", m.Materials()[2].Textures[metadata.TextureSlotDiffuse])
	assert.Equal(t, metadata.DEFAULT_NORMAL_TEXTURE_NAME, m.Materials()[2].Textures[metadata.TextureSlotNormal])
	assert.Equal(t, 2+4, f.dev.LiveResources(), "buffers, checker and the three defaults")
	assertClean(t, f.dev)
}

func TestModelRejectsInvalidScenes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *metadata.Scene)
	}{
		{"no geometry", func(s *metadata.Scene) { s.Vertices = nil }},
		{"material out of range", func(s *metadata.Scene) { s.Meshes[0].IndexMaterial = 2 }},
		{"index range", func(s *metadata.Scene) { s.Meshes[0].CountIndexes = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newModelFixture(t)
			scene := triangleScene()
			tt.mutate(scene)
			_, err := NewModel(f.dev, f.ctx, f.heaps, f.tracker, scene, textureSource())
			assert.ErrorIs(t, err, core.ErrAsset)
			assert.Equal(t, CommandContextStateIdle, f.ctx.State())
			assert.Zero(t, f.dev.LiveResources())
		})
	}
}

func TestModelMissingTextureReleasesEverything(t *testing.T) {
	f := newModelFixture(t)
	scene := triangleScene()
	scene.Materials[0].Textures[metadata.TextureSlotSpecular] = "nope.png"

	_, err := NewModel(f.dev, f.ctx, f.heaps, f.tracker, scene, assets.NewTextureSource(t.TempDir()))
	require.ErrorIs(t, err, core.ErrAsset)
	assert.NotEqual(t, CommandContextStateRecording, f.ctx.State())
	assert.Zero(t, f.dev.LiveResources())

	// The context is still usable afterwards.
	m := f.load(t, triangleScene(), textureSource())
	assert.Equal(t, uint32(3), m.IndexCount())
}

type countingSource struct {
	assets.TextureSource
	mu    sync.Mutex
	calls map[string]int
}

func (cs *countingSource) LoadTexture(name string) (*metadata.Image, error) {
	cs.mu.Lock()
	cs.calls[name]++
	cs.mu.Unlock()
	return cs.TextureSource.LoadTexture(name)
}

func TestDecodeTexturesLoadsEachNameOnce(t *testing.T) {
	src := &countingSource{TextureSource: textureSource(), calls: make(map[string]int)}
	descs := []metadata.MaterialDesc{metadata.DefaultMaterialDesc(), metadata.DefaultMaterialDesc()}

	decoded, err := decodeTextures(src, descs)
	require.NoError(t, err)
	assert.Len(t, decoded, int(metadata.TextureSlotCount))
	for _, name := range descs[0].Textures {
		assert.Equal(t, 1, src.calls[name], name)
		assert.NotNil(t, decoded[name])
	}
}

func TestDecodeTexturesReportsEveryMissingFile(t *testing.T) {
	desc := metadata.DefaultMaterialDesc()
	desc.Textures[0] = "missing_diffuse.png"
	desc.Textures[2] = "missing_normal.png"

	_, err := decodeTextures(assets.NewTextureSource(t.TempDir()), []metadata.MaterialDesc{desc})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAsset)
	assert.Contains(t, err.Error(), "missing_diffuse.png")
	assert.Contains(t, err.Error(), "missing_normal.png")
}
