package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

/**
 * @brief A 3x3 matrix stored as rows. Holds rotation, scale and shear.
 */
type Basis struct {
	Rows [3]Vec3
}

/**
 * @brief Represents the placement of an object in the world: a basis
 * applied first, then a translation by Origin.
 */
type Transform3D struct {
	Basis  Basis
	Origin Vec3
}

/**
 * @brief An axis-aligned bounding box. Size components are expected to
 * be non-negative.
 */
type AABB struct {
	/** @brief The minimum corner of the box. */
	Position Vec3
	/** @brief The extents of the box along each axis. */
	Size Vec3
}
