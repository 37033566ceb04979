package plane

import (
	"fmt"

	"github.com/go-spatial/geom"
)

// Bounds is an axis-aligned rectangle in pixel space, built up by extending
// with points. The zero value is invalid until the first Extend; callers must
// check IsValid before reading Min/Max.
type Bounds struct {
	Min, Max Point
	valid    bool
}

func NewBounds(corner1, corner2 Point) Bounds {
	var b Bounds
	b.Extend(corner1)
	b.Extend(corner2)
	return b
}

func (b *Bounds) Extend(p Point) *Bounds {
	if !b.valid {
		b.Min = p
		b.Max = p
		b.valid = true
		return b
	}
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
	return b
}

func (b *Bounds) ExtendBounds(other Bounds) *Bounds {
	if !other.valid {
		return b
	}
	b.Extend(other.Min)
	b.Extend(other.Max)
	return b
}

func (b Bounds) IsValid() bool {
	return b.valid
}

func (b Bounds) Center() Point {
	return b.Min.Add(b.Max).DivBy(2)
}

func (b Bounds) Size() Point {
	return b.Max.Sub(b.Min)
}

func (b Bounds) TopLeft() Point {
	return b.Min
}

func (b Bounds) BottomRight() Point {
	return b.Max
}

func (b Bounds) TopRight() Point {
	return Point{b.Max.X, b.Min.Y}
}

func (b Bounds) BottomLeft() Point {
	return Point{b.Min.X, b.Max.Y}
}

func (b Bounds) Contains(other Bounds) bool {
	return b.valid && other.valid &&
		other.Min.X >= b.Min.X && other.Max.X <= b.Max.X &&
		other.Min.Y >= b.Min.Y && other.Max.Y <= b.Max.Y
}

func (b Bounds) ContainsPoint(p Point) bool {
	return b.valid &&
		p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Intersects reports whether the rectangles share at least one point
// (touching edges count). Overlaps requires a shared area.
func (b Bounds) Intersects(other Bounds) bool {
	return b.valid && other.valid &&
		other.Max.X >= b.Min.X && other.Min.X <= b.Max.X &&
		other.Max.Y >= b.Min.Y && other.Min.Y <= b.Max.Y
}

func (b Bounds) Overlaps(other Bounds) bool {
	return b.valid && other.valid &&
		other.Max.X > b.Min.X && other.Min.X < b.Max.X &&
		other.Max.Y > b.Min.Y && other.Min.Y < b.Max.Y
}

// Pad grows (or shrinks, for negative ratios) the bounds by a ratio of its
// own size in every direction.
func (b Bounds) Pad(bufferRatio float64) Bounds {
	heightBuffer := (b.Max.Y - b.Min.Y) * bufferRatio
	widthBuffer := (b.Max.X - b.Min.X) * bufferRatio
	return NewBounds(
		Point{b.Min.X - widthBuffer, b.Min.Y - heightBuffer},
		Point{b.Max.X + widthBuffer, b.Max.Y + heightBuffer},
	)
}

func (b Bounds) IsFinite() bool {
	return b.valid && b.Min.IsFinite() && b.Max.IsFinite()
}

func (b Bounds) String() string {
	if !b.valid {
		return "Bounds(invalid)"
	}
	return fmt.Sprintf("Bounds(%v, %v)", b.Min, b.Max)
}

// GeomExtent converts to a go-spatial/geom extent.
func (b Bounds) GeomExtent() geom.Extent {
	return geom.Extent{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
}

func FromGeomExtent(e geom.Extent) Bounds {
	return NewBounds(Point{e.MinX(), e.MinY()}, Point{e.MaxX(), e.MaxY()})
}
