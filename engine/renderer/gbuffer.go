package renderer

import (
	"fmt"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

/**
 * @brief Offscreen targets shared by every pass of a frame. Between frames
 * diffuse, normal and depth rest in PIXEL_SHADER_RESOURCE and the AO and
 * reflection targets in UNORDERED_ACCESS.
 */
type GBufferResourceSet struct {
	Diffuse    device.Resource
	Normal     device.Resource
	Depth      device.Resource
	Ambient    device.Resource
	Reflection device.Resource

	RTVDiffuse metadata.DescriptorHandle
	RTVNormal  metadata.DescriptorHandle
	DSVDepth   metadata.DescriptorHandle

	// Contiguous in the shader visible heap, in this order. UAVAmbient is
	// the base of the table every post-fill pass binds.
	UAVAmbient    metadata.DescriptorHandle
	UAVReflection metadata.DescriptorHandle
	SRVDiffuse    metadata.DescriptorHandle
	SRVNormal     metadata.DescriptorHandle
	SRVDepth      metadata.DescriptorHandle

	tracker *StateTracker
}

var (
	GBufferDiffuseFormat    = metadata.FormatR8G8B8A8Unorm
	GBufferNormalFormat     = metadata.FormatR16G16Float
	GBufferDepthFormat      = metadata.FormatD32Float
	GBufferAmbientFormat    = metadata.FormatR32Float
	GBufferReflectionFormat = metadata.FormatR8G8B8A8Unorm
)

func NewGBufferResourceSet(dev device.Device, heaps *DescriptorHeaps, tracker *StateTracker, width, height uint32) (*GBufferResourceSet, error) {
	g := &GBufferResourceSet{tracker: tracker}
	fail := func(err error) (*GBufferResourceSet, error) {
		core.LogError("%s", err)
		g.Release()
		return nil, err
	}

	create := func(name string, format metadata.Format, flags metadata.ResourceFlags, state metadata.ResourceState, clear *metadata.ClearValue) (device.Resource, error) {
		res, err := dev.CreateCommittedResource(
			metadata.NewTexture2DDesc(name, width, height, format, flags),
			metadata.HeapTypeDefault, state, clear)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		tracker.Register(res, state)
		return res, nil
	}

	var err error
	if g.Diffuse, err = create("GBufferDiffuse", GBufferDiffuseFormat, metadata.ResourceFlagAllowRenderTarget,
		metadata.ResourceStatePixelShaderResource,
		&metadata.ClearValue{Format: GBufferDiffuseFormat, Color: [4]float32{0, 0, 0, 1}}); err != nil {
		return fail(err)
	}
	if g.Normal, err = create("GBufferNormal", GBufferNormalFormat, metadata.ResourceFlagAllowRenderTarget,
		metadata.ResourceStatePixelShaderResource,
		&metadata.ClearValue{Format: GBufferNormalFormat, Color: [4]float32{0, 0, 0, 1}}); err != nil {
		return fail(err)
	}
	if g.Depth, err = create("GBufferDepth", GBufferDepthFormat, metadata.ResourceFlagAllowDepthStencil,
		metadata.ResourceStatePixelShaderResource,
		&metadata.ClearValue{Format: GBufferDepthFormat, Depth: 0}); err != nil {
		return fail(err)
	}
	if g.Ambient, err = create("AmbientOcclusion", GBufferAmbientFormat, metadata.ResourceFlagAllowUnorderedAccess,
		metadata.ResourceStateUnorderedAccess, nil); err != nil {
		return fail(err)
	}
	if g.Reflection, err = create("Reflection", GBufferReflectionFormat, metadata.ResourceFlagAllowUnorderedAccess,
		metadata.ResourceStateUnorderedAccess, nil); err != nil {
		return fail(err)
	}

	g.RTVDiffuse = heaps.RTV.Allocate()
	g.RTVNormal = heaps.RTV.Allocate()
	g.DSVDepth = heaps.DSV.Allocate()

	g.UAVAmbient = heaps.CBVSRVUAV.Allocate()
	g.UAVReflection = heaps.CBVSRVUAV.Allocate()
	g.SRVDiffuse = heaps.CBVSRVUAV.Allocate()
	g.SRVNormal = heaps.CBVSRVUAV.Allocate()
	g.SRVDepth = heaps.CBVSRVUAV.Allocate()

	views := []struct {
		name string
		fn   func() error
	}{
		{"RTV diffuse", func() error { return dev.CreateRenderTargetView(g.Diffuse, g.RTVDiffuse) }},
		{"RTV normal", func() error { return dev.CreateRenderTargetView(g.Normal, g.RTVNormal) }},
		{"DSV depth", func() error { return dev.CreateDepthStencilView(g.Depth, g.DSVDepth) }},
		{"UAV ambient", func() error { return dev.CreateUnorderedAccessView(g.Ambient, g.UAVAmbient) }},
		{"UAV reflection", func() error { return dev.CreateUnorderedAccessView(g.Reflection, g.UAVReflection) }},
		{"SRV diffuse", func() error { return dev.CreateShaderResourceView(g.Diffuse, g.SRVDiffuse) }},
		{"SRV normal", func() error { return dev.CreateShaderResourceView(g.Normal, g.SRVNormal) }},
		{"SRV depth", func() error { return dev.CreateShaderResourceView(g.Depth, g.SRVDepth) }},
	}
	for _, v := range views {
		if err := v.fn(); err != nil {
			return fail(fmt.Errorf("failed to create G-buffer %s: %w", v.name, err))
		}
	}
	return g, nil
}

func (g *GBufferResourceSet) Release() {
	for _, res := range []device.Resource{g.Reflection, g.Ambient, g.Depth, g.Normal, g.Diffuse} {
		if res != nil {
			g.tracker.Unregister(res)
			res.Release()
		}
	}
}
