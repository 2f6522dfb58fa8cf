package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/prism/engine/math"
)

func TestCameraComponentDefaults(t *testing.T) {
	c := NewCameraComponent()
	assert.Equal(t, DefaultFOV, c.FOV)
	assert.Equal(t, DefaultNear, c.Near)
	assert.Equal(t, DefaultFar, c.Far)
	assert.False(t, c.Active)
	assert.Equal(t, math.NewMat4Identity(), c.ViewMatrix())
}

func TestCameraComponentViewFollowsPosition(t *testing.T) {
	c := NewCameraComponent()
	c.SetPosition(math.NewVec3(1, 2, 3))
	view := c.ViewMatrix()
	assert.InDelta(t, -1, view.Data[12], 1e-5)
	assert.InDelta(t, -2, view.Data[13], 1e-5)
	assert.InDelta(t, -3, view.Data[14], 1e-5)
}

func TestCameraComponentProjectionFlipsY(t *testing.T) {
	c := NewCameraComponent()
	c.SetViewport(800, 600)
	assert.InDelta(t, 800.0/600.0, c.Aspect(), 1e-5)
	p := c.ProjectionMatrix()
	assert.Less(t, p.Data[5], float32(0))
	assert.Equal(t, float32(-1), p.Data[11])

	c.SetViewport(0, 0)
	assert.Equal(t, p, c.ProjectionMatrix())
}

func TestCameraComponentPitchClamped(t *testing.T) {
	c := NewCameraComponent()
	c.Pitch(10)
	assert.Equal(t, pitchLimit, c.Rotation.X)
	c.Pitch(-20)
	assert.Equal(t, -pitchLimit, c.Rotation.X)
}

func TestFreeFlyMove(t *testing.T) {
	f := NewFreeFlyCamera(math.NewVec3Zero())
	assert.True(t, f.Front().Compare(math.NewVec3(0, 0, -1), 1e-5))

	f.Move(1, 0, 0, 1)
	assert.True(t, f.Position.Compare(math.NewVec3(0, 0, -5), 1e-4), "got %+v", f.Position)

	f.Position = math.NewVec3Zero()
	f.Move(0, 1, 0, 0.5)
	assert.True(t, f.Position.Compare(math.NewVec3(2.5, 0, 0), 1e-4), "got %+v", f.Position)

	f.Position = math.NewVec3Zero()
	f.Move(0, 0, -1, 1)
	assert.True(t, f.Position.Compare(math.NewVec3(0, -5, 0), 1e-4), "got %+v", f.Position)
}

func TestFreeFlyRotateClampsPitch(t *testing.T) {
	f := NewFreeFlyCamera(math.NewVec3Zero())
	f.Rotate(0.5, 3)
	assert.Equal(t, float32(0.5), f.Yaw)
	assert.Equal(t, pitchLimit, f.Pitch)
	f.Rotate(0, -6)
	assert.Equal(t, -pitchLimit, f.Pitch)
}

func TestFreeFlyViewPutsFrontAhead(t *testing.T) {
	f := NewFreeFlyCamera(math.NewVec3(0, 0, 5))
	ahead := f.Position.Add(f.Front().MulScalar(3))
	p := ahead.Transform(f.ViewMatrix())
	assert.True(t, p.Compare(math.NewVec3(0, 0, -3), 1e-4), "got %+v", p)
	assert.Less(t, f.ProjectionMatrix().Data[5], float32(0))
}

func TestTransformComponentMatrix(t *testing.T) {
	tc := NewTransformComponent()
	assert.Equal(t, math.NewMat4Identity(), tc.Matrix())

	tc.Position = math.NewVec3(4, 5, 6)
	tc.Scale = math.NewVec3(2, 2, 2)
	p := math.NewVec3(1, 0, 0).Transform(tc.Matrix())
	assert.True(t, p.Compare(math.NewVec3(6, 5, 6), 1e-5), "got %+v", p)
}

func TestMeshRendererDrawable(t *testing.T) {
	m := MeshRendererComponent{}
	d := m.Drawable()
	assert.Nil(t, d.Mesh)
	assert.Nil(t, d.Texture)
}
