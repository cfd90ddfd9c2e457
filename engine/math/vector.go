package math

import "github.com/chewxy/math32"

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3Up() Vec3 {
	return Vec3{X: 0, Y: 1, Z: 0}
}

func NewVec3Right() Vec3 {
	return Vec3{X: 1, Y: 0, Z: 0}
}

// NewVec3Forward points down +Z; the renderer uses left-handed view space.
func NewVec3Forward() Vec3 {
	return Vec3{X: 0, Y: 0, Z: 1}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSquared())
}

// Normalized returns a unit copy of v. The zero vector stays zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.MulScalar(1.0 / l)
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

/**
 * @brief Compares all elements of v and other and ensures the difference
 * is less than tolerance.
 */
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return AlmostEqual(v.X, other.X, tolerance) &&
		AlmostEqual(v.Y, other.Y, tolerance) &&
		AlmostEqual(v.Z, other.Z, tolerance)
}

// Transform treats v as a point (w = 1).
func (v Vec3) Transform(m Mat4) Vec3 {
	d := m.Data
	return Vec3{
		X: v.X*d[0] + v.Y*d[4] + v.Z*d[8] + d[12],
		Y: v.X*d[1] + v.Y*d[5] + v.Z*d[9] + d[13],
		Z: v.X*d[2] + v.Y*d[6] + v.Z*d[10] + d[14],
	}
}

// TransformDirection treats v as a direction (w = 0).
func (v Vec3) TransformDirection(m Mat4) Vec3 {
	d := m.Data
	return Vec3{
		X: v.X*d[0] + v.Y*d[4] + v.Z*d[8],
		Y: v.X*d[1] + v.Y*d[5] + v.Z*d[9],
		Z: v.X*d[2] + v.Y*d[6] + v.Z*d[10],
	}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func NewVec4One() Vec4 {
	return Vec4{X: 1, Y: 1, Z: 1, W: 1}
}

func (v Vec4) Transform(m Mat4) Vec4 {
	d := m.Data
	return Vec4{
		X: v.X*d[0] + v.Y*d[4] + v.Z*d[8] + v.W*d[12],
		Y: v.X*d[1] + v.Y*d[5] + v.Z*d[9] + v.W*d[13],
		Z: v.X*d[2] + v.Y*d[6] + v.Z*d[10] + v.W*d[14],
		W: v.X*d[3] + v.Y*d[7] + v.Z*d[11] + v.W*d[15],
	}
}
