// Package crs implements coordinate reference systems: the mapping from
// geographic coordinates to an unbounded projected plane, and from that
// plane to pixel space at a given zoom. All types here are stateless;
// built-in systems are package-level values.
//
// Custom systems can be configured without code through JSON definitions,
// see Definition.
package crs

import "github.com/kaart/tegel/plane"

// Transformation is the linear map (x, y) -> (a*x + b, c*y + d), used to
// move projected coordinates into the unit square before pixel scaling.
type Transformation struct {
	A, B, C, D float64
}

// Apply transforms p and multiplies by scale in one step.
func (t Transformation) Apply(p plane.Point, scale float64) plane.Point {
	return plane.Point{
		X: scale * (t.A*p.X + t.B),
		Y: scale * (t.C*p.Y + t.D),
	}
}

// Untransform is the exact inverse of Apply.
func (t Transformation) Untransform(p plane.Point, scale float64) plane.Point {
	return plane.Point{
		X: (p.X/scale - t.B) / t.A,
		Y: (p.Y/scale - t.D) / t.C,
	}
}
