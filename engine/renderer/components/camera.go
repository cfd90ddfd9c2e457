package components

import (
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

const (
	DefaultFieldOfView float32 = 60.0
	DefaultNearClip    float32 = 0.1
	// pitchLimit keeps the view direction away from the up axis (89 degrees).
	pitchLimit float32 = 1.55334306
)

/**
 * @brief A fly camera in a left-handed world. The view matrix is rebuilt
 * lazily whenever the position or direction changes.
 */
type Camera struct {
	/** @brief The position of this camera. Use SetPosition so the view is rebuilt. */
	Position math.Vec3
	/** @brief Unit view direction. Use SetDirection so the view is rebuilt. */
	Direction math.Vec3
	/** @brief World up, never changed by rotation. */
	Up math.Vec3
	/** @brief Vertical field of view in degrees. */
	FieldOfView float32
	NearClip    float32
	AspectRatio float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix math.Mat4
}

func NewCamera(aspectRatio float32) *Camera {
	camera := &Camera{AspectRatio: aspectRatio}
	camera.Reset()
	return camera
}

// Reset places the camera two units behind the origin looking down +Z.
func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, -2)
	c.Direction = math.NewVec3Forward()
	c.Up = math.NewVec3Up()
	c.FieldOfView = DefaultFieldOfView
	c.NearClip = DefaultNearClip
	c.IsDirty = true
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetDirection(direction math.Vec3) {
	c.Direction = direction.Normalized()
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookTo(c.Position, c.Direction, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	return math.NewMat4PerspectiveReverseZ(math.DegToRad(c.FieldOfView), c.AspectRatio, c.NearClip)
}

func (c *Camera) Forward() math.Vec3 { return c.Direction }
func (c *Camera) Right() math.Vec3   { return c.Up.Cross(c.Direction).Normalized() }

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32) { c.move(c.Forward(), amount) }
func (c *Camera) MoveRight(amount float32)   { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)      { c.move(c.Up, amount) }

// Yaw turns the view direction about world up.
func (c *Camera) Yaw(angle float32) {
	rotation := math.NewQuatFromAxisAngle(c.Up, angle).ToMat4()
	c.SetDirection(c.Direction.TransformDirection(rotation))
}

// Pitch tilts the view direction about the camera right axis. Rotations that
// would bring it within one degree of world up are clamped.
func (c *Camera) Pitch(angle float32) {
	current := math.K_HALF_PI - acos(c.Direction.Dot(c.Up))
	target := math.Clamp(current+angle, -pitchLimit, pitchLimit)
	if target == current {
		return
	}
	rotation := math.NewQuatFromAxisAngle(c.Right(), current-target).ToMat4()
	c.SetDirection(c.Direction.TransformDirection(rotation))
}

/**
 * @brief Builds the constant buffer contents for one frame.
 * @param world The object transform. The normal matrix is its inverse transpose.
 */
func (c *Camera) Constants(world math.Mat4) (metadata.FrameConstantBuffer, metadata.ObjectConstantBuffer) {
	view, projection := c.GetView(), c.GetProjection()
	frame := metadata.FrameConstantBuffer{View: view, Project: projection}
	object := metadata.ObjectConstantBuffer{
		WVP:    world.Mul(view).Mul(projection),
		World:  world,
		Normal: world.Inverse().Transposed(),
	}
	return frame, object
}

// Camera controller speeds, per frame.
const (
	RotateSpeed float32 = 0.001
	MoveSpeed   float32 = 0.01
)

/**
 * @brief Drives a camera from polled input. Dragging with the left mouse
 * button rotates; W/S, A/D and E/Q move along forward, right and up.
 */
type CameraController struct {
	camera *Camera
	input  *core.InputState
}

func NewCameraController(camera *Camera, input *core.InputState) *CameraController {
	return &CameraController{camera: camera, input: input}
}

func (cc *CameraController) Camera() *Camera { return cc.camera }

// Update applies one frame of input. Returns true if the camera moved.
func (cc *CameraController) Update() bool {
	moved := false
	if cc.input.IsButtonDown(core.BUTTON_LEFT) {
		dx, dy := cc.input.MouseDelta()
		if dx != 0 {
			cc.camera.Yaw(-RotateSpeed * float32(dx))
			moved = true
		}
		if dy != 0 {
			cc.camera.Pitch(-RotateSpeed * float32(dy))
			moved = true
		}
	}

	axes := []struct {
		positive, negative core.KeyCode
		move               func(float32)
	}{
		{core.KEY_W, core.KEY_S, cc.camera.MoveForward},
		{core.KEY_D, core.KEY_A, cc.camera.MoveRight},
		{core.KEY_E, core.KEY_Q, cc.camera.MoveUp},
	}
	for _, axis := range axes {
		amount := float32(0)
		if cc.input.IsKeyDown(axis.positive) {
			amount += MoveSpeed
		}
		if cc.input.IsKeyDown(axis.negative) {
			amount -= MoveSpeed
		}
		if amount != 0 {
			axis.move(amount)
			moved = true
		}
	}
	return moved
}

func acos(x float32) float32 {
	return math.Acos(math.Clamp(x, -1, 1))
}
