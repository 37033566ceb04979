package crs

import (
	"math"

	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/plane"
)

// EarthRadius is the WGS84 equatorial radius in meters.
const EarthRadius = 6378137

// MaxMercatorLatitude is the latitude beyond which the spherical Mercator
// projection is clamped to keep log(tan(...)) finite.
const MaxMercatorLatitude = 85.0511287798

// Projection maps geographic coordinates to an unbounded projected plane.
// Implementations are total over the finite domain; latitudes at a polar
// singularity must be clamped, not passed through.
type Projection interface {
	Project(ll geo.LatLng) plane.Point
	Unproject(p plane.Point) geo.LatLng
	// Bounds is the valid projected area, used to derive the pixel world
	// bounds at a zoom. An invalid bounds means the plane is unbounded.
	Bounds() plane.Bounds
}

// SphericalMercator is the web map projection (the projection half of
// EPSG:3857). Latitude is clamped to ±MaxMercatorLatitude.
type SphericalMercator struct{}

func (SphericalMercator) Project(ll geo.LatLng) plane.Point {
	d := math.Pi / 180
	lat := math.Max(math.Min(MaxMercatorLatitude, ll.Lat), -MaxMercatorLatitude)
	sin := math.Sin(lat * d)
	return plane.Point{
		X: EarthRadius * ll.Lng * d,
		Y: EarthRadius * math.Log((1+sin)/(1-sin)) / 2,
	}
}

func (SphericalMercator) Unproject(p plane.Point) geo.LatLng {
	d := 180 / math.Pi
	return geo.LatLng{
		Lat: (2*math.Atan(math.Exp(p.Y/EarthRadius)) - math.Pi/2) * d,
		Lng: p.X * d / EarthRadius,
	}
}

func (SphericalMercator) Bounds() plane.Bounds {
	r := EarthRadius * math.Pi
	return plane.NewBounds(plane.Pt(-r, -r), plane.Pt(r, r))
}

// LonLat is the trivial equirectangular projection: degrees in, degrees out.
type LonLat struct{}

func (LonLat) Project(ll geo.LatLng) plane.Point {
	return plane.Point{X: ll.Lng, Y: ll.Lat}
}

func (LonLat) Unproject(p plane.Point) geo.LatLng {
	return geo.LatLng{Lat: p.Y, Lng: p.X}
}

func (LonLat) Bounds() plane.Bounds {
	return plane.NewBounds(plane.Pt(-180, -90), plane.Pt(180, 90))
}
