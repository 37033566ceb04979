package crs

import (
	"math"

	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/mathhelp"
	"github.com/kaart/tegel/plane"
)

// DefaultTileSize is the pixel size underlying the power-of-2 scale
// formula: scale(zoom) = DefaultTileSize * 2^zoom.
const DefaultTileSize = 256

// CRS combines a projection with the linear transformation and scale
// formula that together map geographic coordinates to pixel space.
// The zero value is not usable; use a built-in (EPSG3857, EPSG4326,
// Simple) or FromDefinition.
type CRS struct {
	Code           string
	Projection     Projection
	Transformation Transformation

	// WrapLng/WrapLat are the ranges the world wraps at, nil for no
	// wrapping on that axis.
	WrapLng *[2]float64
	WrapLat *[2]float64

	// Infinite marks a boundless plane (flat game maps and the like):
	// no pixel world bounds at any zoom.
	Infinite bool

	// Resolutions, when set, replaces the power-of-2 scale formula with
	// an explicit per-zoom resolution list (projected units per pixel).
	// Fractional zooms interpolate linearly between entries.
	Resolutions []float64
}

// Scale returns the projected-plane-to-pixel multiplier at a zoom.
func (c *CRS) Scale(zoom float64) float64 {
	if len(c.Resolutions) == 0 {
		return DefaultTileSize * math.Pow(2, zoom)
	}
	iz := int(math.Floor(zoom))
	if iz < 0 {
		iz = 0
	}
	last := len(c.Resolutions) - 1
	if iz >= last {
		return 1 / c.Resolutions[last]
	}
	baseRes := c.Resolutions[iz]
	nextRes := c.Resolutions[iz+1]
	res := baseRes + (zoom-float64(iz))*(nextRes-baseRes)
	return 1 / res
}

// Zoom is the inverse of Scale.
func (c *CRS) Zoom(scale float64) float64 {
	if len(c.Resolutions) == 0 {
		return math.Log2(scale / DefaultTileSize)
	}
	res := 1 / scale
	if res >= c.Resolutions[0] {
		return 0
	}
	for iz := 0; iz < len(c.Resolutions)-1; iz++ {
		baseRes := c.Resolutions[iz]
		nextRes := c.Resolutions[iz+1]
		if mathhelp.BetweenInc(res, baseRes, nextRes) {
			return float64(iz) + (res-baseRes)/(nextRes-baseRes)
		}
	}
	return float64(len(c.Resolutions) - 1)
}

func (c *CRS) Project(ll geo.LatLng) plane.Point {
	return c.Projection.Project(ll)
}

func (c *CRS) Unproject(p plane.Point) geo.LatLng {
	return c.Projection.Unproject(p)
}

// LatLngToPoint projects a coordinate into pixel space at a zoom.
func (c *CRS) LatLngToPoint(ll geo.LatLng, zoom float64) plane.Point {
	return c.Transformation.Apply(c.Projection.Project(ll), c.Scale(zoom))
}

// PointToLatLng is the exact inverse of LatLngToPoint.
func (c *CRS) PointToLatLng(p plane.Point, zoom float64) geo.LatLng {
	return c.Projection.Unproject(c.Transformation.Untransform(p, c.Scale(zoom)))
}

// ProjectedBounds returns the pixel bounds of the whole world at a zoom,
// invalid for an infinite CRS.
func (c *CRS) ProjectedBounds(zoom float64) plane.Bounds {
	if c.Infinite {
		return plane.Bounds{}
	}
	b := c.Projection.Bounds()
	s := c.Scale(zoom)
	return plane.NewBounds(
		c.Transformation.Apply(b.Min, s),
		c.Transformation.Apply(b.Max, s),
	)
}

// Wraps reports whether the CRS wraps on any axis.
func (c *CRS) Wraps() bool {
	return c.WrapLng != nil || c.WrapLat != nil
}

// WrapLatLng folds a coordinate into the canonical wrap ranges.
func (c *CRS) WrapLatLng(ll geo.LatLng) geo.LatLng {
	wrapped := ll
	if c.WrapLng != nil {
		wrapped.Lng = mathhelp.Wrap(ll.Lng, c.WrapLng[0], c.WrapLng[1], true)
	}
	if c.WrapLat != nil {
		wrapped.Lat = mathhelp.Wrap(ll.Lat, c.WrapLat[0], c.WrapLat[1], true)
	}
	return wrapped
}

var (
	// EPSG3857 is web Mercator, the default for slippy maps.
	EPSG3857 = &CRS{
		Code:       "EPSG:3857",
		Projection: SphericalMercator{},
		Transformation: Transformation{
			A: 0.5 / (math.Pi * EarthRadius), B: 0.5,
			C: -0.5 / (math.Pi * EarthRadius), D: 0.5,
		},
		WrapLng: &[2]float64{-180, 180},
	}

	// EPSG4326 is plate carrée on WGS84 (two by one tiles at zoom 0).
	EPSG4326 = &CRS{
		Code:           "EPSG:4326",
		Projection:     LonLat{},
		Transformation: Transformation{A: 1.0 / 180, B: 1, C: -1.0 / 180, D: 0.5},
		WrapLng:        &[2]float64{-180, 180},
	}

	// Simple maps "latitude" and "longitude" directly to y and x, for
	// non-geographic imagery. The plane is unbounded and nothing wraps.
	Simple = &CRS{
		Code:           "Simple",
		Projection:     LonLat{},
		Transformation: Transformation{A: 1, B: 0, C: -1, D: 0},
		Infinite:       true,
	}
)
