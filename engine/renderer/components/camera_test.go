package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/math"
)

const tolerance = 1e-4

func TestCameraViewMapsEyeToOrigin(t *testing.T) {
	c := NewCamera(1)
	c.SetPosition(math.NewVec3(3, 1, -5))
	eye := c.Position.Transform(c.GetView())
	assert.True(t, eye.Compare(math.NewVec3Zero(), tolerance), "%v", eye)

	ahead := c.Position.Add(c.Direction).Transform(c.GetView())
	assert.True(t, ahead.Compare(math.NewVec3(0, 0, 1), tolerance), "%v", ahead)
}

func TestCameraYawKeepsDirectionHorizontal(t *testing.T) {
	c := NewCamera(1)
	c.Yaw(math.K_HALF_PI)
	assert.InDelta(t, 0, c.Direction.Y, tolerance)
	assert.InDelta(t, 1, c.Direction.Length(), tolerance)
	assert.True(t, c.IsDirty)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera(1)
	for i := 0; i < 100; i++ {
		c.Pitch(0.1)
	}
	assert.InDelta(t, pitchLimit, math.K_HALF_PI-acos(c.Direction.Dot(c.Up)), tolerance)
	assert.Greater(t, c.Direction.Y, float32(0.99))

	c.Pitch(-2 * pitchLimit)
	assert.Less(t, c.Direction.Y, float32(-0.99))
}

func TestCameraConstantsNormalMatrix(t *testing.T) {
	c := NewCamera(16.0 / 9.0)
	world := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	frame, object := c.Constants(world)

	assert.Equal(t, c.GetView(), frame.View)
	assert.Equal(t, world, object.World)
	assert.True(t, object.WVP.Compare(world.Mul(frame.View).Mul(frame.Project), tolerance))
	// A pure translation leaves normals untouched.
	n := math.NewVec3(0, 1, 0).TransformDirection(object.Normal.Transposed())
	assert.True(t, n.Compare(math.NewVec3(0, 1, 0), tolerance), "%v", n)
}

func TestCameraControllerWithoutInputIsIdle(t *testing.T) {
	c := NewCamera(1)
	cc := NewCameraController(c, core.NewInputState(nil))
	before := c.GetView()
	for i := 0; i < 10; i++ {
		assert.False(t, cc.Update())
	}
	assert.Equal(t, before, c.GetView())
}

func TestCameraControllerMoves(t *testing.T) {
	input := core.NewInputState(nil)
	c := NewCamera(1)
	cc := NewCameraController(c, input)
	start := c.Position

	input.ProcessKey(core.KEY_W, true)
	require.True(t, cc.Update())
	assert.True(t, c.Position.Compare(start.Add(math.NewVec3(0, 0, MoveSpeed)), tolerance))

	input.ProcessKey(core.KEY_S, true)
	assert.False(t, cc.Update(), "opposite keys cancel")

	input.ProcessKey(core.KEY_W, false)
	input.ProcessKey(core.KEY_S, false)
	input.Update()
	input.ProcessButton(core.BUTTON_LEFT, true)
	input.ProcessMouseMove(100, 0)
	require.True(t, cc.Update())
	assert.InDelta(t, 0, c.Direction.Y, tolerance)
	assert.NotEqual(t, float32(1), c.Direction.Z)
}
