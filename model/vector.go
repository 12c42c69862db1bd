package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Vec3 is a 3-component vector in the hybrid reference frame. It serializes
// as a 3-element JSON array.
type Vec3 [3]float64

// Quaternion is an orientation (x, y, z, w). It serializes as a 4-element
// JSON array.
type Quaternion [4]float64

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return floats.Norm(v[:], 2)
}

// Scale returns v scaled by c.
func (v Vec3) Scale(c float64) Vec3 {
	var out Vec3
	floats.ScaleTo(out[:], c, v[:])
	return out
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 { return v.Scale(-1) }

// Unit returns v normalised to unit length, or the zero vector when v has
// no length.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if scalar.EqualWithinAbs(n, 0, 1e-12) {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// EqualWithinAbs reports whether every component of v and o differs by at
// most tol.
func (v Vec3) EqualWithinAbs(o Vec3, tol float64) bool {
	return floats.EqualApprox(v[:], o[:], tol)
}

// Horizontal returns the length of the (y, z) components. In the hybrid
// surface frame x points up, so this is the horizontal magnitude.
func (v Vec3) Horizontal() float64 {
	return math.Hypot(v[1], v[2])
}
