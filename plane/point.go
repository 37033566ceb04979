// Package plane provides the 2D pixel-plane primitives used by every other
// package: points and axis-aligned bounds with both pure and in-place
// arithmetic. Inputs are assumed finite; NaN/Inf handling is the caller's
// concern. Conversions to/from go-spatial/geom types are provided for the
// external geometry surface.
package plane

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
)

// Point is an x/y pair in pixel space. The Mut* methods mutate the receiver
// and return it for chaining in hot loops; all other methods are pure.
type Point struct {
	X, Y float64
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

func (p Point) MulBy(f float64) Point {
	return Point{p.X * f, p.Y * f}
}

func (p Point) DivBy(f float64) Point {
	return Point{p.X / f, p.Y / f}
}

// ScaleBy multiplies componentwise, UnscaleBy divides componentwise.
func (p Point) ScaleBy(q Point) Point {
	return Point{p.X * q.X, p.Y * q.Y}
}

func (p Point) UnscaleBy(q Point) Point {
	return Point{p.X / q.X, p.Y / q.Y}
}

func (p Point) Round() Point {
	return Point{math.Round(p.X), math.Round(p.Y)}
}

func (p Point) Floor() Point {
	return Point{math.Floor(p.X), math.Floor(p.Y)}
}

func (p Point) Ceil() Point {
	return Point{math.Ceil(p.X), math.Ceil(p.Y)}
}

func (p Point) Trunc() Point {
	return Point{math.Trunc(p.X), math.Trunc(p.Y)}
}

func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

func (p Point) Equals(q Point) bool {
	return p.X == q.X && p.Y == q.Y
}

func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func (p *Point) MutAdd(q Point) *Point {
	p.X += q.X
	p.Y += q.Y
	return p
}

func (p *Point) MutSub(q Point) *Point {
	p.X -= q.X
	p.Y -= q.Y
	return p
}

func (p *Point) MutMulBy(f float64) *Point {
	p.X *= f
	p.Y *= f
	return p
}

func (p *Point) MutDivBy(f float64) *Point {
	p.X /= f
	p.Y /= f
	return p
}

func (p *Point) MutRound() *Point {
	p.X = math.Round(p.X)
	p.Y = math.Round(p.Y)
	return p
}

func (p *Point) MutFloor() *Point {
	p.X = math.Floor(p.X)
	p.Y = math.Floor(p.Y)
	return p
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%v, %v)", p.X, p.Y)
}

// GeomPoint converts to the go-spatial/geom representation.
func (p Point) GeomPoint() geom.Point {
	return geom.Point{p.X, p.Y}
}

func FromGeomPoint(p geom.Point) Point {
	return Point{p.X(), p.Y()}
}
