package math

/**
 * @brief Represents the transform of an object in the world.
 * Transforms can have a parent whose own transform is then
 * taken into account. The properties should be changed through
 * the setters so the local matrix is regenerated.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	/** @brief Set when position, rotation or scale changed since the local matrix was built. */
	IsDirty bool
	Local   Mat4
	/** @brief Optional parent transform. */
	Parent *Transform
}

func NewTransform() *Transform {
	return NewTransformFrom(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func NewTransformFrom(position Vec3, rotation Quaternion, scale Vec3) *Transform {
	t := &Transform{Local: NewMat4Identity()}
	t.SetPositionRotationScale(position, rotation, scale)
	return t
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.IsDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

func (t *Transform) SetPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.IsDirty = true
}

// GetLocal returns scale, then rotation, then translation.
func (t *Transform) GetLocal() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	if t.IsDirty {
		t.Local = NewMat4Scale(t.Scale).Mul(t.Rotation.ToMat4()).Mul(NewMat4Translation(t.Position))
		t.IsDirty = false
	}
	return t.Local
}

func (t *Transform) GetWorld() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	l := t.GetLocal()
	if t.Parent != nil {
		return l.Mul(t.Parent.GetWorld())
	}
	return l
}
