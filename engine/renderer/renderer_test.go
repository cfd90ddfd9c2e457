package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/components"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func TestConstantBuffersStableWithoutInput(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	require.NoError(t, r.LoadModel(triangleScene(), textureSource()))

	input := core.NewInputState(nil)
	controller := components.NewCameraController(newTestCamera(), input)
	r.UpdateConstants(controller.Camera())
	first := r.Frames().Constants(r.FrameIndex())

	const frames = 6
	for i := 0; i < frames; i++ {
		assert.False(t, controller.Update())
		input.Update()
		require.NoError(t, r.DrawFrame(controller.Camera()))
		assert.Equal(t, first, r.Frames().Constants(r.FrameIndex()), "frame %d", i)
	}
	for i := uint32(0); i < FrameCount; i++ {
		assert.Equal(t, first, r.Frames().Constants(i))
	}
	assertClean(t, dev)
}

func TestDrawFrameWritesNextFrame(t *testing.T) {
	dev := newTestDevice(t)
	r := newTestRenderer(t, dev, testShaderDir)
	camera := newTestCamera()
	r.UpdateConstants(camera)
	before := r.Frames().Constants(0)

	camera.SetPosition(math.NewVec3(0, 1, -3))
	require.NoError(t, r.DrawFrame(camera))

	assert.Equal(t, uint32(1), r.FrameIndex())
	assert.Equal(t, before, r.Frames().Constants(0), "frame 0 is only written while it is not in flight")
	assert.NotEqual(t, before, r.Frames().Constants(1))

	frame, object := camera.Constants(math.NewMat4Identity())
	written := r.Frames().Constants(1)
	assert.Equal(t, frame.Bytes(), written[:metadata.FrameConstantsSize])
	assert.Equal(t, object.Bytes(), written[metadata.ObjectConstantsOffset:])
}

func TestRendererShutdownReleasesEverything(t *testing.T) {
	dev := newTestDevice(t)
	r, err := NewRenderer(dev, RendererConfig{
		Width:     testWidth,
		Height:    testHeight,
		ShaderDir: testShaderDir,
		Heaps:     DefaultHeapCapacities(),
	})
	require.NoError(t, err)

	scene, err := assets.NewDefaultSource().LoadScene("procedural:sphere:6")
	require.NoError(t, err)
	require.NoError(t, r.LoadModel(scene, textureSource()))
	require.NoError(t, r.LoadModel(triangleScene(), textureSource()), "replacing the model")

	camera := newTestCamera()
	r.UpdateConstants(camera)
	require.NoError(t, r.DrawFrame(camera))

	r.Shutdown()
	assert.Zero(t, dev.LiveResources())
	assertClean(t, dev)
	r.Shutdown()
}

func TestRendererFailsOnMissingShaders(t *testing.T) {
	dev := newTestDevice(t)
	_, err := NewRenderer(dev, RendererConfig{
		Width:     testWidth,
		Height:    testHeight,
		ShaderDir: t.TempDir(),
		Heaps:     DefaultHeapCapacities(),
	})
	assert.ErrorIs(t, err, core.ErrShaderCompile)
	assert.Zero(t, dev.LiveResources())
}
