package components

import (
	"github.com/spaghettifunk/prism/engine/math"
)

const (
	DefaultFOV  float32 = 60
	DefaultNear float32 = 0.1
	DefaultFar  float32 = 1000
)

// pitchLimit is 89 degrees, keeping the view away from gimbal lock.
const pitchLimit float32 = 1.55334306

/**
 * @brief A camera attached to a scene entity. The active one drives the
 * frame; otherwise the free-fly camera does.
 */
type CameraComponent struct {
	/** @brief Vertical field of view in degrees. */
	FOV    float32
	Near   float32
	Far    float32
	Active bool
	/**
	 * @brief The position of this camera.
	 * NOTE: Use SetPosition so the view matrix is rebuilt.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Use SetRotation so the view matrix is rebuilt.
	 */
	Rotation math.Vec3

	isDirty    bool
	view       math.Mat4
	projection math.Mat4
	aspect     float32
}

func NewCameraComponent() *CameraComponent {
	c := &CameraComponent{
		FOV:  DefaultFOV,
		Near: DefaultNear,
		Far:  DefaultFar,
	}
	c.Reset()
	return c
}

func (c *CameraComponent) Reset() {
	c.Position = math.NewVec3Zero()
	c.Rotation = math.NewVec3Zero()
	c.view = math.NewMat4Identity()
	c.isDirty = false
	c.SetViewport(16, 9)
}

func (c *CameraComponent) SetPosition(position math.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *CameraComponent) SetRotation(rotation math.Vec3) {
	c.Rotation = rotation
	c.isDirty = true
}

// SetViewport rebuilds the projection for a w x h target. A zero height
// keeps the previous projection.
func (c *CameraComponent) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.aspect = float32(w) / float32(h)
	c.projection = projection(c.FOV, c.aspect, c.Near, c.Far)
}

func (c *CameraComponent) Aspect() float32 { return c.aspect }

func (c *CameraComponent) ViewMatrix() math.Mat4 {
	if c.isDirty {
		rotation := math.NewMat4EulerX(c.Rotation.X).Mul(math.NewMat4EulerY(c.Rotation.Y)).Mul(math.NewMat4EulerZ(c.Rotation.Z))
		translation := math.NewMat4Translation(c.Position)
		c.view = rotation.Mul(translation).Inverse()
		c.isDirty = false
	}
	return c.view
}

func (c *CameraComponent) ProjectionMatrix() math.Mat4 { return c.projection }

func (c *CameraComponent) Forward() math.Vec3 { return c.ViewMatrix().Forward() }

func (c *CameraComponent) Right() math.Vec3 { return c.ViewMatrix().Right() }

func (c *CameraComponent) Yaw(amount float32) {
	c.Rotation.Y += amount
	c.isDirty = true
}

func (c *CameraComponent) Pitch(amount float32) {
	c.Rotation.X = math.Clamp(c.Rotation.X+amount, -pitchLimit, pitchLimit)
	c.isDirty = true
}

// projection is a perspective matrix for a Y-down clip space.
func projection(fovDegrees, aspect, near, far float32) math.Mat4 {
	p := math.NewMat4Perspective(math.DegToRad(fovDegrees), aspect, near, far)
	p.Data[5] *= -1
	return p
}
