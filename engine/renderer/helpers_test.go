package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/geometry"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

const testShaderDir = "../../assets/shaders"

func newTestDevice(t *testing.T) *headless.Device {
	t.Helper()
	dev := headless.NewDevice(headless.DefaultOptions())
	t.Cleanup(dev.Release)
	return dev
}

func requirePrecondition(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a precondition panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.ErrorIs(t, err, core.ErrPrecondition)
	}()
	fn()
}

func assertClean(t *testing.T, dev *headless.Device) {
	t.Helper()
	assert.Empty(t, dev.ValidationErrors())
}

// withTimeout fails the test instead of hanging when fn deadlocks.
func withTimeout(t *testing.T, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the GPU")
		return nil
	}
}

func textureSource() assets.TextureSource {
	return assets.NewTextureSource("")
}

// triangleScene is one mesh using one untextured scene material.
func triangleScene() *metadata.Scene {
	g := geometry.GenerateTriangle()
	return &metadata.Scene{
		Name:      "triangle",
		Vertices:  g.Vertices,
		Indices:   g.Indices,
		Meshes:    []metadata.Mesh{{IndexMaterial: 1, CountIndexes: uint32(len(g.Indices))}},
		Materials: []metadata.MaterialDesc{{Name: "red", Diffuse: metadata.DefaultMaterialDesc().Diffuse}},
	}
}
