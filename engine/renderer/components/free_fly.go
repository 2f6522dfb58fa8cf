package components

import (
	stdmath "math"

	"github.com/spaghettifunk/prism/engine/math"
)

// FreeFlyCamera is the editor-style fallback camera used when no scene
// camera is active. Yaw and pitch are in radians; yaw 0 looks down -Z.
type FreeFlyCamera struct {
	Position math.Vec3
	Yaw      float32
	Pitch    float32
	// Speed is in world units per second.
	Speed float32

	fov, near, far float32
	projection     math.Mat4
}

func NewFreeFlyCamera(position math.Vec3) *FreeFlyCamera {
	f := &FreeFlyCamera{
		Position: position,
		Speed:    5,
		fov:      DefaultFOV,
		near:     DefaultNear,
		far:      DefaultFar,
	}
	f.SetViewport(16, 9)
	return f
}

func (f *FreeFlyCamera) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	f.projection = projection(f.fov, float32(w)/float32(h), f.near, f.far)
}

// Front is the unit view direction.
func (f *FreeFlyCamera) Front() math.Vec3 {
	yaw, pitch := float64(f.Yaw), float64(f.Pitch)
	return math.NewVec3(
		float32(stdmath.Sin(yaw)*stdmath.Cos(pitch)),
		float32(stdmath.Sin(pitch)),
		float32(-stdmath.Cos(yaw)*stdmath.Cos(pitch)),
	).Normalize()
}

// Move translates along the view axes. Each axis is in [-1, 1] and scaled
// by Speed*dt.
func (f *FreeFlyCamera) Move(forward, right, up, dt float32) {
	front := f.Front()
	side := front.Cross(math.NewVec3Up()).Normalize()
	step := f.Speed * dt
	f.Position = f.Position.
		Add(front.MulScalar(forward * step)).
		Add(side.MulScalar(right * step)).
		Add(math.NewVec3Up().MulScalar(up * step))
}

func (f *FreeFlyCamera) Rotate(dYaw, dPitch float32) {
	f.Yaw += dYaw
	f.Pitch = math.Clamp(f.Pitch+dPitch, -pitchLimit, pitchLimit)
}

func (f *FreeFlyCamera) ViewMatrix() math.Mat4 {
	return math.NewMat4LookAt(f.Position, f.Position.Add(f.Front()), math.NewVec3Up())
}

func (f *FreeFlyCamera) ProjectionMatrix() math.Mat4 { return f.projection }
