package math

import (
	"encoding/binary"
	m "math"
)

// Mat4Size is the size in bytes of a Mat4 as the shaders read it.
const Mat4Size = 64

/**
 * @brief Creates and returns an identity matrix:
 *
 * {
 *   {1, 0, 0, 0},
 *   {0, 1, 0, 0},
 *   {0, 0, 1, 0},
 *   {0, 0, 0, 1}
 * }
 */
func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

/**
 * @brief Returns the result of multiplying mt and other. The transform of mt
 * is applied first.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

/**
 * @brief Creates and returns an orthographic projection matrix. Typically used to
 * render flat or 2D scenes.
 */
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()

	lr := 1.0 / (left - right)
	bt := 1.0 / (bottom - top)
	nf := 1.0 / (nearClip - farClip)

	out.Data[0] = -2.0 * lr
	out.Data[5] = -2.0 * bt
	out.Data[10] = 2.0 * nf

	out.Data[12] = (left + right) * lr
	out.Data[13] = (top + bottom) * bt
	out.Data[14] = (farClip + nearClip) * nf
	return out
}

/**
 * @brief Creates and returns a perspective matrix. Typically used to render 3d scenes.
 *
 * @param fovRadians The field of view in radians.
 * @param aspectRatio The aspect ratio.
 * @param nearClip The near clipping plane distance.
 * @param farClip The far clipping plane distance.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := ktan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out
}

/**
 * @brief Creates and returns a look-at matrix, or a matrix looking
 * at target from the perspective of position.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	zAxis := target.Sub(position).Normalize()
	xAxis := zAxis.Cross(up).Normalize()
	yAxis := xAxis.Cross(zAxis)

	out := Mat4{}
	out.Data[0] = xAxis.X
	out.Data[1] = yAxis.X
	out.Data[2] = -zAxis.X
	out.Data[4] = xAxis.Y
	out.Data[5] = yAxis.Y
	out.Data[6] = -zAxis.Y
	out.Data[8] = xAxis.Z
	out.Data[9] = yAxis.Z
	out.Data[10] = -zAxis.Z
	out.Data[12] = -xAxis.Dot(position)
	out.Data[13] = -yAxis.Dot(position)
	out.Data[14] = zAxis.Dot(position)
	out.Data[15] = 1.0
	return out
}

/** @brief Returns a transposed copy of the matrix (rows->columns). */
func (mt Mat4) Transposed() Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out.Data[col*4+row] = mt.Data[row*4+col]
		}
	}
	return out
}

/** @brief Creates and returns an inverse of the matrix. */
func (mt Mat4) Inverse() Mat4 {
	m := mt.Data

	t0 := m[10] * m[15]
	t1 := m[14] * m[11]
	t2 := m[6] * m[15]
	t3 := m[14] * m[7]
	t4 := m[6] * m[11]
	t5 := m[10] * m[7]
	t6 := m[2] * m[15]
	t7 := m[14] * m[3]
	t8 := m[2] * m[11]
	t9 := m[10] * m[3]
	t10 := m[2] * m[7]
	t11 := m[6] * m[3]
	t12 := m[8] * m[13]
	t13 := m[12] * m[9]
	t14 := m[4] * m[13]
	t15 := m[12] * m[5]
	t16 := m[4] * m[9]
	t17 := m[8] * m[5]
	t18 := m[0] * m[13]
	t19 := m[12] * m[1]
	t20 := m[0] * m[9]
	t21 := m[8] * m[1]
	t22 := m[0] * m[5]
	t23 := m[4] * m[1]

	out := Mat4{}
	o := &out.Data

	o[0] = (t0*m[5] + t3*m[9] + t4*m[13]) - (t1*m[5] + t2*m[9] + t5*m[13])
	o[1] = (t1*m[1] + t6*m[9] + t9*m[13]) - (t0*m[1] + t7*m[9] + t8*m[13])
	o[2] = (t2*m[1] + t7*m[5] + t10*m[13]) - (t3*m[1] + t6*m[5] + t11*m[13])
	o[3] = (t5*m[1] + t8*m[5] + t11*m[9]) - (t4*m[1] + t9*m[5] + t10*m[9])

	d := 1.0 / (m[0]*o[0] + m[4]*o[1] + m[8]*o[2] + m[12]*o[3])

	o[0] = d * o[0]
	o[1] = d * o[1]
	o[2] = d * o[2]
	o[3] = d * o[3]
	o[4] = d * ((t1*m[4] + t2*m[8] + t5*m[12]) - (t0*m[4] + t3*m[8] + t4*m[12]))
	o[5] = d * ((t0*m[0] + t7*m[8] + t8*m[12]) - (t1*m[0] + t6*m[8] + t9*m[12]))
	o[6] = d * ((t3*m[0] + t6*m[4] + t11*m[12]) - (t2*m[0] + t7*m[4] + t10*m[12]))
	o[7] = d * ((t4*m[0] + t9*m[4] + t10*m[8]) - (t5*m[0] + t8*m[4] + t11*m[8]))
	o[8] = d * ((t12*m[7] + t15*m[11] + t16*m[15]) - (t13*m[7] + t14*m[11] + t17*m[15]))
	o[9] = d * ((t13*m[3] + t18*m[11] + t21*m[15]) - (t12*m[3] + t19*m[11] + t20*m[15]))
	o[10] = d * ((t14*m[3] + t19*m[7] + t22*m[15]) - (t15*m[3] + t18*m[7] + t23*m[15]))
	o[11] = d * ((t17*m[3] + t20*m[7] + t23*m[11]) - (t16*m[3] + t21*m[7] + t22*m[11]))
	o[12] = d * ((t14*m[10] + t17*m[14] + t13*m[6]) - (t16*m[14] + t12*m[6] + t15*m[10]))
	o[13] = d * ((t20*m[14] + t12*m[2] + t19*m[10]) - (t18*m[10] + t21*m[14] + t13*m[2]))
	o[14] = d * ((t18*m[6] + t23*m[14] + t15*m[2]) - (t22*m[14] + t14*m[2] + t19*m[6]))
	o[15] = d * ((t22*m[10] + t16*m[2] + t21*m[6]) - (t20*m[6] + t23*m[10] + t17*m[2]))

	return out
}

/** @brief Creates and returns a translation matrix from the given position. */
func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

/** @brief Returns a scale matrix using the provided scale. */
func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

func NewMat4EulerX(angleRadians float32) Mat4 {
	out := NewMat4Identity()
	c := kcos(angleRadians)
	s := ksin(angleRadians)

	out.Data[5] = c
	out.Data[6] = s
	out.Data[9] = -s
	out.Data[10] = c
	return out
}

func NewMat4EulerY(angleRadians float32) Mat4 {
	out := NewMat4Identity()
	c := kcos(angleRadians)
	s := ksin(angleRadians)

	out.Data[0] = c
	out.Data[2] = -s
	out.Data[8] = s
	out.Data[10] = c
	return out
}

func NewMat4EulerZ(angleRadians float32) Mat4 {
	out := NewMat4Identity()
	c := kcos(angleRadians)
	s := ksin(angleRadians)

	out.Data[0] = c
	out.Data[1] = s
	out.Data[4] = -s
	out.Data[5] = c
	return out
}

/** @brief Returns a forward vector relative to the matrix. */
func (mt Mat4) Forward() Vec3 {
	return Vec3{-mt.Data[2], -mt.Data[6], -mt.Data[10]}.Normalize()
}

/** @brief Returns a right vector relative to the matrix. */
func (mt Mat4) Right() Vec3 {
	return Vec3{mt.Data[0], mt.Data[4], mt.Data[8]}.Normalize()
}

/** @brief Returns an up vector relative to the matrix. */
func (mt Mat4) Up() Vec3 {
	return Vec3{mt.Data[1], mt.Data[5], mt.Data[9]}.Normalize()
}

// AppendBytes appends the little-endian float32 encoding of the matrix to dst.
func (mt Mat4) AppendBytes(dst []byte) []byte {
	for _, f := range mt.Data {
		dst = binary.LittleEndian.AppendUint32(dst, m.Float32bits(f))
	}
	return dst
}
