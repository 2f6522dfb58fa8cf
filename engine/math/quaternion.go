package math

func NewQuatIdentity() Quaternion {
	return Quaternion{0, 0, 0, 1.0}
}

/** @brief Returns the normal of the quaternion. */
func (q Quaternion) Normal() float32 {
	return ksqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

/** @brief Returns a normalized copy of the quaternion. */
func (q Quaternion) Normalize() Quaternion {
	normal := q.Normal()
	return Quaternion{q.X / normal, q.Y / normal, q.Z / normal, q.W / normal}
}

/** @brief Multiplies the quaternions. */
func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.X*other.W + q.Y*other.Z - q.Z*other.Y + q.W*other.X,
		Y: -q.X*other.Z + q.Y*other.W + q.Z*other.X + q.W*other.Y,
		Z: q.X*other.Y - q.Y*other.X + q.Z*other.W + q.W*other.Z,
		W: -q.X*other.X - q.Y*other.Y - q.Z*other.Z + q.W*other.W,
	}
}

/** @brief Creates a rotation matrix from the quaternion, laid out like the Euler builders. */
func (q Quaternion) ToMat4() Mat4 {
	out := NewMat4Identity()

	// https://stackoverflow.com/questions/1556260/convert-quaternion-rotation-to-rotation-matrix
	n := q.Normalize()

	out.Data[0] = 1.0 - 2.0*n.Y*n.Y - 2.0*n.Z*n.Z
	out.Data[1] = 2.0*n.X*n.Y + 2.0*n.Z*n.W
	out.Data[2] = 2.0*n.X*n.Z - 2.0*n.Y*n.W

	out.Data[4] = 2.0*n.X*n.Y - 2.0*n.Z*n.W
	out.Data[5] = 1.0 - 2.0*n.X*n.X - 2.0*n.Z*n.Z
	out.Data[6] = 2.0*n.Y*n.Z + 2.0*n.X*n.W

	out.Data[8] = 2.0*n.X*n.Z + 2.0*n.Y*n.W
	out.Data[9] = 2.0*n.Y*n.Z - 2.0*n.X*n.W
	out.Data[10] = 1.0 - 2.0*n.X*n.X - 2.0*n.Y*n.Y

	return out
}

/**
 * @brief Creates a quaternion from the given axis and angle.
 *
 * @param axis The axis of rotation.
 * @param angle The angle of rotation.
 * @param normalize Indicates if the quaternion should be normalized.
 */
func NewQuatFromAxisAngle(axis Vec3, angle float32, normalize bool) Quaternion {
	halfAngle := 0.5 * angle
	s := ksin(halfAngle)
	c := kcos(halfAngle)

	q := Quaternion{s * axis.X, s * axis.Y, s * axis.Z, c}
	if normalize {
		q = q.Normalize()
	}
	return q
}
