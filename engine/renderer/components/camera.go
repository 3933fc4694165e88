package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
)

// Pitch is kept inside this range, in degrees.
const pitchLimit float32 = 89.0

// CameraInput is the part of the input state the camera reacts to.
type CameraInput interface {
	IsKeyDown(key core.KeyCode) bool
	MouseDelta() (float64, float64)
}

/**
 * @brief A free-fly camera. Moves on the horizontal plane with WASD, up and
 * down with Space and Left Control, and looks around with the mouse.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera in degrees (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead
	 * so the view matrix is recalculated when needed.
	 */
	EulerRotation math.Vec3

	Fov         float32
	AspectRatio float32
	Near        float32
	Far         float32

	BaseSpeed      float32
	SpeedModifier  float32
	RotationSpeed  float32
	MouseThreshold float32

	viewDirty       bool
	projectionDirty bool
	viewMatrix      math.Mat4
	projection      math.Mat4
}

func NewCamera(aspectRatio float32) *Camera {
	return NewCameraFromConfig(core.DefaultConfig().Camera, aspectRatio)
}

func NewCameraFromConfig(cfg core.CameraSection, aspectRatio float32) *Camera {
	c := &Camera{
		Position:       math.NewVec3(cfg.Position[0], cfg.Position[1], cfg.Position[2]),
		Fov:            cfg.Fov,
		AspectRatio:    aspectRatio,
		Near:           cfg.Near,
		Far:            cfg.Far,
		BaseSpeed:      cfg.BaseSpeed,
		SpeedModifier:  cfg.SpeedModifier,
		RotationSpeed:  cfg.RotationSpeed,
		MouseThreshold: cfg.MouseThreshold,
	}
	c.SetEulerRotation(math.NewVec3(cfg.Rotation[0], cfg.Rotation[1], cfg.Rotation[2]))
	c.projectionDirty = true
	return c
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.viewDirty = true
}

func (c *Camera) Translate(step math.Vec3) {
	c.Position = c.Position.Add(step)
	c.viewDirty = true
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -pitchLimit, pitchLimit)
	c.viewDirty = true
}

// Rotate adds angles (degrees) to the current rotation.
func (c *Camera) Rotate(angles math.Vec3) {
	c.SetEulerRotation(c.EulerRotation.Add(angles))
}

func (c *Camera) SetAspectRatio(aspectRatio float32) {
	c.AspectRatio = aspectRatio
	c.projectionDirty = true
}

func (c *Camera) SetFov(fov float32) {
	c.Fov = fov
	c.projectionDirty = true
}

func (c *Camera) SetNearFar(near, far float32) {
	c.Near = near
	c.Far = far
	c.projectionDirty = true
}

// Forward is the unit view direction derived from pitch and yaw.
func (c *Camera) Forward() math.Vec3 {
	pitch := math.DegToRad(c.EulerRotation.X)
	yaw := math.DegToRad(c.EulerRotation.Y)
	return math.NewVec3(
		math32.Cos(pitch)*math32.Cos(yaw),
		math32.Sin(pitch),
		math32.Sin(yaw)*math32.Cos(pitch),
	)
}

func (c *Camera) GetView() math.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math.NewMat4LookAt(c.Position, c.Position.Add(c.Forward()), math.NewVec3Up())
		c.viewDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	if c.projectionDirty {
		c.projection = math.NewMat4Perspective(math.DegToRad(c.Fov), c.AspectRatio, c.Near, c.Far)
		c.projectionDirty = false
	}
	return c.projection
}

/**
 * @brief Applies one frame of keyboard and mouse input.
 *
 * Horizontal movement follows the yaw only, so looking up or down does not
 * slow the camera. Holding E multiplies the speed by SpeedModifier.
 */
func (c *Camera) Update(deltaTime float32, input CameraInput) {
	forward := c.Forward()
	direction := math.NewVec3(forward.X, 0, forward.Z).Normalized()

	speed := c.BaseSpeed
	if input.IsKeyDown(core.KEY_E) {
		speed *= c.SpeedModifier
	}
	step := speed * deltaTime

	if input.IsKeyDown(core.KEY_W) {
		c.Translate(math.NewVec3(direction.X, 0, direction.Z).MulScalar(step))
	}
	if input.IsKeyDown(core.KEY_S) {
		c.Translate(math.NewVec3(-direction.X, 0, -direction.Z).MulScalar(step))
	}
	if input.IsKeyDown(core.KEY_A) {
		c.Translate(math.NewVec3(direction.Z, 0, -direction.X).MulScalar(step))
	}
	if input.IsKeyDown(core.KEY_D) {
		c.Translate(math.NewVec3(-direction.Z, 0, direction.X).MulScalar(step))
	}
	if input.IsKeyDown(core.KEY_LCONTROL) {
		c.Translate(math.NewVec3(0, -step, 0))
	}
	if input.IsKeyDown(core.KEY_SPACE) {
		c.Translate(math.NewVec3(0, step, 0))
	}

	dx, dy := input.MouseDelta()
	if math32.Abs(float32(dx)) > c.MouseThreshold || math32.Abs(float32(dy)) > c.MouseThreshold {
		scale := deltaTime * c.RotationSpeed
		c.Rotate(math.NewVec3(float32(-dy)*scale, float32(dx)*scale, 0))
	}
}

