package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix in row-vector convention: points transform as v * M and
 * the translation lives in Data[12], Data[13], Data[14].
 */
type Mat4 struct {
	/** @brief The matrix elements, row-major */
	Data [16]float32
}
