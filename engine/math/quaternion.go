package math

import "github.com/chewxy/math32"

func NewQuatIdentity() Quaternion {
	return Quaternion{X: 0, Y: 0, Z: 0, W: 1}
}

func (q Quaternion) Normal() float32 {
	return math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

func (q Quaternion) Normalize() Quaternion {
	n := q.Normal()
	if n == 0 {
		return NewQuatIdentity()
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.X*other.W + q.Y*other.Z - q.Z*other.Y + q.W*other.X,
		Y: -q.X*other.Z + q.Y*other.W + q.Z*other.X + q.W*other.Y,
		Z: q.X*other.Y - q.Y*other.X + q.Z*other.W + q.W*other.Z,
		W: -q.X*other.X - q.Y*other.Y - q.Z*other.Z + q.W*other.W,
	}
}

func NewQuatFromAxisAngle(axis Vec3, angle float32) Quaternion {
	a := axis.Normalized()
	s := math32.Sin(angle * 0.5)
	return Quaternion{X: a.X * s, Y: a.Y * s, Z: a.Z * s, W: math32.Cos(angle * 0.5)}.Normalize()
}

/**
 * @brief Creates a rotation matrix from the quaternion for row vectors.
 */
func (q Quaternion) ToMat4() Mat4 {
	n := q.Normalize()
	out_matrix := NewMat4Identity()

	out_matrix.Data[0] = 1.0 - 2.0*n.Y*n.Y - 2.0*n.Z*n.Z
	out_matrix.Data[1] = 2.0*n.X*n.Y + 2.0*n.Z*n.W
	out_matrix.Data[2] = 2.0*n.X*n.Z - 2.0*n.Y*n.W

	out_matrix.Data[4] = 2.0*n.X*n.Y - 2.0*n.Z*n.W
	out_matrix.Data[5] = 1.0 - 2.0*n.X*n.X - 2.0*n.Z*n.Z
	out_matrix.Data[6] = 2.0*n.Y*n.Z + 2.0*n.X*n.W

	out_matrix.Data[8] = 2.0*n.X*n.Z + 2.0*n.Y*n.W
	out_matrix.Data[9] = 2.0*n.Y*n.Z - 2.0*n.X*n.W
	out_matrix.Data[10] = 1.0 - 2.0*n.X*n.X - 2.0*n.Y*n.Y

	return out_matrix
}
