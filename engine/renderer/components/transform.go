package components

import (
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
)

/** @brief Placement of an entity in the world. */
type TransformComponent struct {
	Position math.Vec3
	Rotation math.Quaternion
	Scale    math.Vec3
}

func NewTransformComponent() TransformComponent {
	return TransformComponent{
		Rotation: math.NewQuatIdentity(),
		Scale:    math.NewVec3One(),
	}
}

// Matrix applies scale, then rotation, then translation.
func (t TransformComponent) Matrix() math.Mat4 {
	return math.NewTransformFrom(t.Position, t.Rotation, t.Scale).GetLocal()
}

/** @brief What to draw for an entity. A nil Texture uses the default one. */
type MeshRendererComponent struct {
	Mesh     *renderer.Mesh
	Texture  *renderer.Texture
	Pipeline *renderer.Pipeline
}

func (m MeshRendererComponent) Drawable() renderer.Drawable {
	return renderer.Drawable{Mesh: m.Mesh, Texture: m.Texture}
}
