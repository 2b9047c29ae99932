// Package geometry computes joint angles from pose landmarks.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mode selects which coordinates take part in an angle computation.
type Mode string

const (
	// Mode2D uses only the image-plane x and y coordinates.
	Mode2D Mode = "2d"
	// Mode3D also uses the estimated depth.
	Mode3D Mode = "3d"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Mode2D || m == Mode3D
}

// Angle3D returns the angle at vertex b formed by the rays b->a and b->c,
// in degrees. The result is in [0, 180], or NaN when a or c coincides with b.
func Angle3D(a, b, c r3.Vec) float64 {
	return angleBetween(r3.Sub(a, b), r3.Sub(c, b))
}

// Angle2D is Angle3D with the z component ignored.
func Angle2D(a, b, c r3.Vec) float64 {
	a.Z, b.Z, c.Z = 0, 0, 0
	return Angle3D(a, b, c)
}

// Angle dispatches to Angle2D or Angle3D. Unknown modes use 2D.
func Angle(mode Mode, a, b, c r3.Vec) float64 {
	if mode == Mode3D {
		return Angle3D(a, b, c)
	}
	return Angle2D(a, b, c)
}

// collinearTolerance is the largest |sin| between two rays still treated as
// collinear.
const collinearTolerance = 1e-9

// angleBetween uses atan2 of the cross and dot products, which stays accurate
// near 0 and 180 where acos of the cosine does not.
func angleBetween(u, v r3.Vec) float64 {
	denom := r3.Norm(u) * r3.Norm(v)
	if denom == 0 || math.IsNaN(denom) {
		return math.NaN()
	}

	cross := r3.Norm(r3.Cross(u, v))
	dot := r3.Dot(u, v)
	if cross <= collinearTolerance*denom {
		if dot < 0 {
			return 180
		}
		return 0
	}

	return math.Atan2(cross, dot) * 180 / math.Pi
}
