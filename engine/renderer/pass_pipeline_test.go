package renderer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/components"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

const (
	testWidth  = 64
	testHeight = 44
)

func newTestRenderer(t *testing.T, dev *headless.Device, shaderDir string) *Renderer {
	t.Helper()
	r, err := NewRenderer(dev, RendererConfig{
		Width:     testWidth,
		Height:    testHeight,
		ShaderDir: shaderDir,
		Heaps:     DefaultHeapCapacities(),
	})
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r
}

func newTestCamera() *components.Camera {
	return components.NewCamera(float32(testWidth) / float32(testHeight))
}

// copyShaders copies the shader directory so a test can edit it.
func copyShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, file := range []string{FillShaderFile, AmbientOcclusionShaderFile, ReflectionShaderFile, CompositeShaderFile} {
		data, err := os.ReadFile(filepath.Join(testShaderDir, file))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
	}
	return dir
}

func countKind(trace []headless.Command, kind headless.CommandKind) int {
	n := 0
	for _, c := range trace {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func firstIndex(trace []headless.Command, kind headless.CommandKind) int {
	for i, c := range trace {
		if c.Kind == kind {
			return i
		}
	}
	return -1
}

func TestDispatchSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		workgroup     [3]uint32
		want          [3]uint32
		err           bool
	}{
		{"exact", 1280, 1000, [3]uint32{8, 8, 1}, [3]uint32{160, 125, 1}, false},
		{"rounds up", 1281, 1001, [3]uint32{8, 8, 1}, [3]uint32{161, 126, 1}, false},
		{"smaller than a group", 1, 1, [3]uint32{16, 16, 1}, [3]uint32{1, 1, 1}, false},
		{"zero width", 0, 1000, [3]uint32{8, 8, 1}, [3]uint32{}, true},
		{"zero height", 1280, 0, [3]uint32{8, 8, 1}, [3]uint32{}, true},
		{"zero workgroup", 1280, 1000, [3]uint32{0, 8, 1}, [3]uint32{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DispatchSize(tt.width, tt.height, tt.workgroup)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidDispatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassPipelineRejectsEmptyDispatch(t *testing.T) {
	dev := newTestDevice(t)
	tracker := NewStateTracker()
	heaps, err := NewDescriptorHeaps(dev, DefaultHeapCapacities())
	require.NoError(t, err)
	defer heaps.Release()
	graphics := newTestContext(t, dev, device.QueueGraphics)
	compute := newTestContext(t, dev, device.QueueCompute)
	swap, err := dev.CreateSwapChain(graphics.Queue(), device.SwapChainDesc{Width: testWidth, Height: testHeight, BufferCount: FrameCount, Format: BackBufferFormat})
	require.NoError(t, err)
	defer swap.Release()
	frames, err := NewFrameResourceSet(dev, swap, heaps, tracker, testWidth, testHeight)
	require.NoError(t, err)
	defer frames.Release()
	gbuffer, err := NewGBufferResourceSet(dev, heaps, tracker, testWidth, testHeight)
	require.NoError(t, err)
	defer gbuffer.Release()

	_, err = NewPassPipeline(dev, graphics, compute, heaps, tracker, frames, gbuffer, PassPipelineConfig{
		ShaderDir: testShaderDir,
		Width:     0,
		Height:    testHeight,
	})
	assert.ErrorIs(t, err, ErrInvalidDispatch)
}

func TestPassPipelineFrames(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	require.NoError(t, r.LoadModel(triangleScene(), textureSource()))
	camera := newTestCamera()
	r.UpdateConstants(camera)

	want := [3]uint32{(testWidth + 7) / 8, (testHeight + 7) / 8, 1}
	assert.Equal(t, want, r.Pipeline().AmbientGroups())
	assert.Equal(t, want, r.Pipeline().ReflectionGroups())

	const frames = 4
	dev.ResetTrace()
	for i := 0; i < frames; i++ {
		require.NoError(t, r.DrawFrame(camera))
	}
	assertClean(t, dev)
	assert.Equal(t, frames, dev.Presents())
	assert.Equal(t, uint64(frames), r.FrameNumber())

	trace := dev.Trace()
	assert.Equal(t, 2*frames, countKind(trace, headless.CmdDispatch))
	assert.Equal(t, frames, countKind(trace, headless.CmdDrawIndexed))
	assert.Equal(t, frames, countKind(trace, headless.CmdDraw))
	for _, c := range trace {
		if c.Kind == headless.CmdDispatch {
			assert.Equal(t, want, c.Counts)
			assert.Equal(t, device.QueueCompute, c.Queue)
		}
	}

	// Fill, then both compute passes, then the composite.
	fill := firstIndex(trace, headless.CmdDrawIndexed)
	dispatch := firstIndex(trace, headless.CmdDispatch)
	composite := firstIndex(trace, headless.CmdDraw)
	assert.Less(t, fill, dispatch)
	assert.Less(t, dispatch, composite)

	// Everything is back at rest between frames.
	g := r.GBuffer()
	for _, res := range []device.Resource{g.Diffuse, g.Normal, g.Depth} {
		assert.Equal(t, metadata.ResourceStatePixelShaderResource, dev.StateOf(res), res.Desc().Name)
	}
	for _, res := range []device.Resource{g.Ambient, g.Reflection} {
		assert.Equal(t, metadata.ResourceStateUnorderedAccess, dev.StateOf(res), res.Desc().Name)
	}
	for _, res := range r.Frames().RenderTargets {
		assert.Equal(t, metadata.ResourceStatePresent, dev.StateOf(res))
		state, _ := r.Tracker().State(res)
		assert.Equal(t, metadata.ResourceStatePresent, state)
	}
}

func TestPassPipelineWithoutModel(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	camera := newTestCamera()
	r.UpdateConstants(camera)

	require.NoError(t, r.DrawFrame(camera))
	require.NoError(t, r.DrawFrame(camera))
	assertClean(t, dev)
	assert.Zero(t, countKind(dev.Trace(), headless.CmdDrawIndexed))
	assert.Equal(t, 2, dev.Presents())
}

func TestPassPipelineDetectsStateMismatch(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	camera := newTestCamera()

	// Pretend an earlier frame forgot to return the normal target.
	r.Tracker().Register(r.GBuffer().Normal, metadata.ResourceStateGenericRead)
	dev.ResetTrace()

	err := r.DrawFrame(camera)
	var mismatch *StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "GBufferNormal", mismatch.Resource)
	assert.Equal(t, metadata.ResourceStatePixelShaderResource, mismatch.Expected)
	assert.Equal(t, metadata.ResourceStateGenericRead, mismatch.Actual)
	assert.Zero(t, dev.Presents())
	assert.Empty(t, dev.Trace(), "nothing reaches the GPU")
	assertClean(t, dev)
}

func TestPassPipelineComputeRequiresFillStates(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)

	r.Tracker().Register(r.GBuffer().Ambient, metadata.ResourceStatePixelShaderResource)
	err := r.DrawFrame(newTestCamera())
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Zero(t, countKind(dev.Trace(), headless.CmdDispatch))
}

func TestCompositorHook(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	camera := newTestCamera()

	calls := 0
	r.SetCompositor(func(list device.CommandList, inputs metadata.DescriptorHandle) {
		calls++
		assert.Equal(t, r.GBuffer().UAVAmbient, inputs)
	})
	require.NoError(t, r.DrawFrame(camera))
	assert.Equal(t, 1, calls)
	assert.Zero(t, countKind(dev.Trace(), headless.CmdDraw))

	r.SetCompositor(nil)
	require.NoError(t, r.DrawFrame(camera))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, countKind(dev.Trace(), headless.CmdDraw))
	assertClean(t, dev)
}

func TestReloadShaderKeepsPipelineOnError(t *testing.T) {
	dir := copyShaders(t)
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, dir)
	require.NoError(t, r.LoadModel(triangleScene(), textureSource()))
	camera := newTestCamera()
	require.NoError(t, r.DrawFrame(camera))

	path := filepath.Join(dir, AmbientOcclusionShaderFile)
	good, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("@compute fn CSMain( {"), 0o644))

	err = r.ReloadShaders([]string{path})
	assert.ErrorIs(t, err, core.ErrShaderCompile)
	require.NoError(t, r.DrawFrame(camera), "the previous pipeline still renders")

	require.NoError(t, os.WriteFile(path, good, 0o644))
	require.NoError(t, r.ReloadShaders([]string{path}))
	require.NoError(t, r.DrawFrame(camera))

	assert.NoError(t, r.ReloadShaders(nil))
	assertClean(t, dev)
}

func TestReloadIgnoresFilesThatFeedNoPass(t *testing.T) {
	dir := copyShaders(t)
	common := filepath.Join(dir, "common.wgsl")
	require.NoError(t, os.WriteFile(common, []byte("fn helper( {"), 0o644))
	nested := filepath.Join(dir, "include", "lighting.wgsl")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("const pi = 3.14159;"), 0o644))

	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, dir)
	require.NoError(t, r.LoadModel(triangleScene(), textureSource()))
	camera := newTestCamera()
	require.NoError(t, r.DrawFrame(camera))

	ambient := r.Pipeline().ambientPSO
	require.NoError(t, r.ReloadShaders([]string{common, nested}))
	assert.NoError(t, r.Pipeline().ReloadShader(filepath.Join(dir, "scratch.wgsl")))
	assert.Same(t, ambient, r.Pipeline().ambientPSO, "no pipeline is rebuilt")

	require.NoError(t, r.DrawFrame(camera))
	assertClean(t, dev)
}
