package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
	"github.com/spaghettifunk/hawk/engine/systems"
)

/**
 * @brief Static geometry with its materials. Built once and immutable
 * afterwards; owns its GPU buffers and textures exclusively.
 *
 * Material 0 is the default material. Every material occupies
 * DescriptorsPerMaterial consecutive SRVs and all of them form one range, so
 * Draw binds a single table and selects the material with a root constant.
 */
type Model struct {
	name      string
	vertices  device.Resource
	indices   device.Resource
	vbv       metadata.VertexBufferView
	ibv       metadata.IndexBufferView
	meshes    []metadata.Mesh
	materials []metadata.Material
	textures  []device.Resource

	vertexCount uint32
	indexCount  uint32
	tracker     *StateTracker
}

type modelBuilder struct {
	dev     device.Device
	ctx     *CommandContext
	tracker *StateTracker
	model   *Model
	staging []device.Resource
	byName  map[string]device.Resource
	decoded map[string]*metadata.Image
}

/**
 * @brief Uploads scene to the GPU through ctx and blocks until the copies
 * have completed.
 * @param ctx An idle graphics context.
 */
func NewModel(dev device.Device, ctx *CommandContext, heaps *DescriptorHeaps, tracker *StateTracker, scene *metadata.Scene, textures assets.TextureSource) (*Model, error) {
	if len(scene.Vertices) == 0 || len(scene.Indices) == 0 {
		return nil, modelAssetError(scene.Name, errors.New("scene has no geometry"))
	}
	materialCount := uint32(len(scene.Materials) + 1)
	for i, m := range scene.Meshes {
		if m.IndexMaterial >= materialCount {
			return nil, modelAssetError(scene.Name, fmt.Errorf("mesh %d uses material %d of %d", i, m.IndexMaterial, materialCount))
		}
		if uint64(m.Offset)+uint64(m.CountIndexes) > uint64(len(scene.Indices)) {
			return nil, modelAssetError(scene.Name, fmt.Errorf("mesh %d indexes past the index buffer", i))
		}
	}

	b := &modelBuilder{
		dev:     dev,
		ctx:     ctx,
		tracker: tracker,
		byName:  make(map[string]device.Resource),
		model:   &Model{name: scene.Name, tracker: tracker},
	}
	m := b.model

	if err := ctx.Reset(); err != nil {
		return nil, err
	}
	list := ctx.List()

	fail := func(err error) (*Model, error) {
		// The list may hold recorded copies; close it so the context stays usable.
		if ctx.State() == CommandContextStateRecording {
			_ = ctx.Close()
		}
		if ctx.State() == CommandContextStateClosed {
			if ctx.Execute() == nil {
				_ = ctx.WaitForGPU()
			}
		}
		b.releaseStaging()
		m.Release()
		return nil, err
	}

	descs := append([]metadata.MaterialDesc{metadata.DefaultMaterialDesc()}, scene.Materials...)
	defaults := descs[0].Textures
	for i := range descs {
		for slot := range descs[i].Textures {
			if descs[i].Textures[slot] == "" {
				descs[i].Textures[slot] = defaults[slot]
			}
		}
	}
	var err error
	if b.decoded, err = decodeTextures(textures, descs); err != nil {
		return fail(err)
	}
	for _, desc := range descs {
		first := heaps.CBVSRVUAV.Allocate()
		for slot, name := range desc.Textures {
			tex, err := b.texture(list, name)
			if err != nil {
				return fail(err)
			}
			handle := first
			if slot > 0 {
				handle = heaps.CBVSRVUAV.Allocate()
			}
			if err := dev.CreateShaderResourceView(tex, handle); err != nil {
				return fail(err)
			}
		}
		m.materials = append(m.materials, metadata.Material{MaterialDesc: desc, FirstDescriptor: first})
	}

	m.meshes, m.indexCount = sortMeshes(scene.Meshes)
	indices := make([]uint32, 0, m.indexCount)
	for _, mesh := range m.meshes {
		// Offset still points into the scene's index stream here.
		indices = append(indices, scene.Indices[mesh.Offset:mesh.Offset+mesh.CountIndexes]...)
	}
	offset := uint32(0)
	for i := range m.meshes {
		m.meshes[i].Offset = offset
		offset += m.meshes[i].CountIndexes
	}
	m.vertexCount = uint32(len(scene.Vertices))

	if m.vertices, err = b.buffer(list, "VertexBuffer", metadata.VertexBytes(scene.Vertices), metadata.ResourceStateVertexAndConstantBuffer); err != nil {
		return fail(err)
	}
	if m.indices, err = b.buffer(list, "IndexBuffer", metadata.IndexBytes(indices), metadata.ResourceStateIndexBuffer); err != nil {
		return fail(err)
	}
	m.vbv = metadata.VertexBufferView{
		BufferLocation: m.vertices.GPUVirtualAddress(),
		SizeInBytes:    m.vertexCount * metadata.VertexStride,
		StrideInBytes:  metadata.VertexStride,
	}
	m.ibv = metadata.IndexBufferView{
		BufferLocation: m.indices.GPUVirtualAddress(),
		SizeInBytes:    m.indexCount * metadata.IndexStride,
		Format:         metadata.FormatR32Uint,
	}

	if err := ctx.Close(); err != nil {
		return fail(err)
	}
	if err := ctx.Execute(); err != nil {
		return fail(err)
	}
	if err := ctx.WaitForGPU(); err != nil {
		b.releaseStaging()
		m.Release()
		return nil, err
	}
	b.releaseStaging()

	core.LogInfo("model %s: %d meshes, %d materials, %d vertices, %d indices",
		m.name, len(m.meshes), len(m.materials), m.vertexCount, m.indexCount)
	return m, nil
}

// sortMeshes returns a copy of meshes stably ordered by material and the
// total index count. The original Offset values are preserved.
func sortMeshes(meshes []metadata.Mesh) ([]metadata.Mesh, uint32) {
	sorted := append([]metadata.Mesh(nil), meshes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IndexMaterial < sorted[j].IndexMaterial
	})
	total := uint32(0)
	for _, m := range sorted {
		total += m.CountIndexes
	}
	return sorted, total
}

func (b *modelBuilder) stage(name string, data []byte) (device.Resource, error) {
	staging, err := b.dev.CreateCommittedResource(
		metadata.NewBufferDesc(name+"Upload", uint64(len(data))),
		metadata.HeapTypeUpload, metadata.ResourceStateGenericRead, nil)
	if err != nil {
		return nil, err
	}
	b.staging = append(b.staging, staging)
	mapped, err := staging.Map()
	if err != nil {
		return nil, err
	}
	copy(mapped, data)
	staging.Unmap()
	return staging, nil
}

func (b *modelBuilder) buffer(list device.CommandList, name string, data []byte, final metadata.ResourceState) (device.Resource, error) {
	res, err := b.dev.CreateCommittedResource(
		metadata.NewBufferDesc(name, uint64(len(data))),
		metadata.HeapTypeDefault, metadata.ResourceStateCopyDest, nil)
	if err != nil {
		return nil, err
	}
	b.tracker.Register(res, metadata.ResourceStateCopyDest)
	staging, err := b.stage(name, data)
	if err != nil {
		b.tracker.Unregister(res)
		res.Release()
		return nil, err
	}
	list.CopyBufferRegion(res, 0, staging, 0, uint64(len(data)))
	if err := b.tracker.Transition(list, res, metadata.ResourceStateCopyDest, final); err != nil {
		b.tracker.Unregister(res)
		res.Release()
		return nil, err
	}
	return res, nil
}

// texture uploads each distinct texture name once.
func (b *modelBuilder) texture(list device.CommandList, name string) (device.Resource, error) {
	if tex, ok := b.byName[name]; ok {
		return tex, nil
	}
	img, ok := b.decoded[name]
	if !ok {
		return nil, modelAssetError(name, errors.New("texture was not decoded"))
	}
	if uint32(len(img.Pixels)) != img.Width*img.Height*metadata.FormatR8G8B8A8Unorm.Size() {
		return nil, modelAssetError(name, fmt.Errorf("%d bytes of pixels for %dx%d", len(img.Pixels), img.Width, img.Height))
	}
	tex, err := b.dev.CreateCommittedResource(
		metadata.NewTexture2DDesc(name, img.Width, img.Height, metadata.FormatR8G8B8A8Unorm, metadata.ResourceFlagNone),
		metadata.HeapTypeDefault, metadata.ResourceStateCopyDest, nil)
	if err != nil {
		return nil, err
	}
	b.model.textures = append(b.model.textures, tex)
	b.tracker.Register(tex, metadata.ResourceStateCopyDest)

	staging, err := b.stage(name, img.Pixels)
	if err != nil {
		return nil, err
	}
	list.CopyBufferToTexture(tex, staging, 0)
	if err := b.tracker.Transition(list, tex, metadata.ResourceStateCopyDest, metadata.ResourceStatePixelShaderResource); err != nil {
		return nil, err
	}
	b.byName[name] = tex
	return tex, nil
}

// decodeTextures loads every distinct texture the materials name in parallel.
func decodeTextures(src assets.TextureSource, descs []metadata.MaterialDesc) (map[string]*metadata.Image, error) {
	var names []string
	seen := make(map[string]bool)
	for _, desc := range descs {
		for _, name := range desc.Textures {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	js, err := systems.NewJobSystem(min(len(names), runtime.NumCPU()), len(names))
	if err != nil {
		return nil, err
	}
	defer js.Shutdown()

	var mu sync.Mutex
	decoded := make(map[string]*metadata.Image, len(names))
	failures := make(map[string]error)
	for _, name := range names {
		var img *metadata.Image
		err := js.Submit(systems.JobTask{
			Name: name,
			OnStart: func() (err error) {
				img, err = src.LoadTexture(name)
				return err
			},
			OnComplete: func() {
				mu.Lock()
				decoded[name] = img
				mu.Unlock()
			},
			OnFailure: func(err error) {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
			},
		})
		if err != nil {
			return nil, err
		}
	}
	js.Wait()

	// Report failures in material order.
	var errs []error
	for _, name := range names {
		if err, ok := failures[name]; ok {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return decoded, nil
}

func (b *modelBuilder) releaseStaging() {
	for _, s := range b.staging {
		s.Release()
	}
	b.staging = nil
}

func modelAssetError(path string, err error) error {
	e := &core.AssetError{Path: path, Err: err}
	core.LogError("%s", e)
	return e
}

/**
 * @brief Records the model's draws. Binds the buffers and the material table
 * once; each mesh only changes the material root constant.
 * @param list A recording graphics list with the fill pipeline bound.
 * @param table Root parameter index of the material SRV table.
 */
func (m *Model) Draw(list device.CommandList, table uint32) {
	list.SetVertexBuffers(m.vbv)
	list.SetIndexBuffer(m.ibv)
	list.SetRootDescriptorTable(table, m.materials[0].FirstDescriptor)
	for _, mesh := range m.meshes {
		list.SetRoot32BitConstant(0, mesh.IndexMaterial, 0)
		list.DrawIndexedInstanced(mesh.CountIndexes, 1, mesh.Offset, int32(mesh.VertexBase), 0)
	}
}

func (m *Model) Name() string                   { return m.name }
func (m *Model) Meshes() []metadata.Mesh        { return m.meshes }
func (m *Model) Materials() []metadata.Material { return m.materials }
func (m *Model) VertexCount() uint32            { return m.vertexCount }
func (m *Model) IndexCount() uint32             { return m.indexCount }
func (m *Model) VertexBuffer() device.Resource  { return m.vertices }
func (m *Model) IndexBuffer() device.Resource   { return m.indices }

func (m *Model) Release() {
	for _, res := range append([]device.Resource{m.indices, m.vertices}, m.textures...) {
		if res == nil {
			continue
		}
		m.tracker.Unregister(res)
		res.Release()
	}
	m.indices, m.vertices, m.textures = nil, nil, nil
}
