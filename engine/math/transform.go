package math

func NewBasisIdentity() Basis {
	return Basis{Rows: [3]Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// NewBasisScale returns a diagonal basis.
func NewBasisScale(scale Vec3) Basis {
	return Basis{Rows: [3]Vec3{{scale.X, 0, 0}, {0, scale.Y, 0}, {0, 0, scale.Z}}}
}

// Get returns the element at row i, column j.
func (b Basis) Get(i, j int) float32 {
	return b.Rows[i].Axis(j)
}

func (b Basis) Determinant() float32 {
	r := b.Rows
	return r[0].X*(r[1].Y*r[2].Z-r[2].Y*r[1].Z) -
		r[1].X*(r[0].Y*r[2].Z-r[2].Y*r[0].Z) +
		r[2].X*(r[0].Y*r[1].Z-r[1].Y*r[0].Z)
}

func (b Basis) Xform(v Vec3) Vec3 {
	return Vec3{b.Rows[0].Dot(v), b.Rows[1].Dot(v), b.Rows[2].Dot(v)}
}

func NewTransformIdentity() Transform3D {
	return Transform3D{Basis: NewBasisIdentity()}
}

func NewTransformFromPosition(position Vec3) Transform3D {
	return Transform3D{Basis: NewBasisIdentity(), Origin: position}
}

func (t Transform3D) Xform(v Vec3) Vec3 {
	return t.Basis.Xform(v).Add(t.Origin)
}

/**
 * @brief Transforms an AABB and returns the axis-aligned box enclosing
 * the result.
 */
func (t Transform3D) XformAABB(aabb AABB) AABB {
	min := aabb.Position
	max := aabb.Position.Add(aabb.Size)
	tmin := t.Origin
	tmax := t.Origin

	for i := 0; i < 3; i++ {
		lo := tmin.Axis(i)
		hi := tmax.Axis(i)
		for j := 0; j < 3; j++ {
			e := t.Basis.Get(i, j) * min.Axis(j)
			f := t.Basis.Get(i, j) * max.Axis(j)
			if e < f {
				lo += e
				hi += f
			} else {
				lo += f
				hi += e
			}
		}
		tmin.SetAxis(i, lo)
		tmax.SetAxis(i, hi)
	}
	return AABB{Position: tmin, Size: tmax.Sub(tmin)}
}

/**
 * @brief Reports whether every basis row and the origin are free of NaN
 * and infinities.
 */
func (t Transform3D) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if !t.Basis.Rows[i].IsFinite() {
			return false
		}
	}
	return t.Origin.IsFinite()
}
