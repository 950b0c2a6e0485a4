package math

import "github.com/chewxy/math32"

func NewAABB(position, size Vec3) AABB {
	return AABB{Position: position, Size: size}
}

// NewAABBFromMinMax builds a box spanning min to max.
func NewAABBFromMinMax(min, max Vec3) AABB {
	return AABB{Position: min, Size: max.Sub(min)}
}

func (a AABB) End() Vec3 {
	return a.Position.Add(a.Size)
}

func (a AABB) Center() Vec3 {
	return a.Position.Add(a.Size.MulScalar(0.5))
}

// HasSurface is true when the box has extent along at least one axis.
func (a AABB) HasSurface() bool {
	return a.Size.X > 0 || a.Size.Y > 0 || a.Size.Z > 0
}

func (a AABB) HasVolume() bool {
	return a.Size.X > 0 && a.Size.Y > 0 && a.Size.Z > 0
}

func (a AABB) Merge(other AABB) AABB {
	return NewAABBFromMinMax(a.Position.Min(other.Position), a.End().Max(other.End()))
}

/**
 * @brief Reports whether the boxes overlap. Boxes that only share a face
 * do not intersect.
 */
func (a AABB) Intersects(other AABB) bool {
	ae, oe := a.End(), other.End()
	if a.Position.X >= oe.X || ae.X <= other.Position.X {
		return false
	}
	if a.Position.Y >= oe.Y || ae.Y <= other.Position.Y {
		return false
	}
	if a.Position.Z >= oe.Z || ae.Z <= other.Position.Z {
		return false
	}
	return true
}

// Encloses reports whether other lies entirely inside a.
func (a AABB) Encloses(other AABB) bool {
	ae, oe := a.End(), other.End()
	return a.Position.X <= other.Position.X && ae.X >= oe.X &&
		a.Position.Y <= other.Position.Y && ae.Y >= oe.Y &&
		a.Position.Z <= other.Position.Z && ae.Z >= oe.Z
}

func (a AABB) GetLongestAxisSize() float32 {
	return math32.Max(a.Size.X, math32.Max(a.Size.Y, a.Size.Z))
}

// Grow expands the box by amount on every side.
func (a AABB) Grow(amount float32) AABB {
	d := Vec3{amount, amount, amount}
	return AABB{Position: a.Position.Sub(d), Size: a.Size.Add(d.MulScalar(2))}
}

/**
 * @brief Snaps the box outwards onto a grid of the given unit: the start
 * is floored to a multiple of unit and the end is pushed up past the next
 * multiple.
 */
func (a AABB) Quantize(unit float32) AABB {
	end := a.End()
	pos := a.Position
	pos.X -= fposmodp(pos.X, unit)
	pos.Y -= fposmodp(pos.Y, unit)
	pos.Z -= fposmodp(pos.Z, unit)

	end.X -= fposmodp(end.X, unit)
	end.Y -= fposmodp(end.Y, unit)
	end.Z -= fposmodp(end.Z, unit)
	end = end.Add(Vec3{unit, unit, unit})

	return NewAABBFromMinMax(pos, end)
}
