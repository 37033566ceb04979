// Package geo holds geographic coordinates and rectangles, independent of
// any projection. Longitude wrapping lives here; projecting to pixel space
// is the crs package's job.
package geo

import (
	"fmt"
	"math"

	"github.com/kaart/tegel/mathhelp"
)

// MeanEarthRadius in meters, used for great-circle distances.
const MeanEarthRadius = 6371000

type LatLng struct {
	Lat, Lng float64
}

func LL(lat, lng float64) LatLng {
	return LatLng{Lat: lat, Lng: lng}
}

// Equals compares with a small tolerance to absorb projection round-trip
// noise. Use EqualsWithin for an explicit tolerance.
func (ll LatLng) Equals(other LatLng) bool {
	return ll.EqualsWithin(other, 1e-9)
}

func (ll LatLng) EqualsWithin(other LatLng, maxMargin float64) bool {
	return math.Abs(ll.Lat-other.Lat) <= maxMargin &&
		math.Abs(ll.Lng-other.Lng) <= maxMargin
}

// WrapLng folds the longitude into [-180, 180); the latitude is untouched.
func (ll LatLng) WrapLng() LatLng {
	return LatLng{Lat: ll.Lat, Lng: mathhelp.Wrap(ll.Lng, -180, 180, false)}
}

// DistanceTo returns the great-circle distance in meters (haversine).
func (ll LatLng) DistanceTo(other LatLng) float64 {
	rad := math.Pi / 180
	lat1 := ll.Lat * rad
	lat2 := other.Lat * rad
	sinDLat := math.Sin((other.Lat - ll.Lat) * rad / 2)
	sinDLng := math.Sin((other.Lng - ll.Lng) * rad / 2)
	a := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * MeanEarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (ll LatLng) IsFinite() bool {
	return !math.IsNaN(ll.Lat) && !math.IsNaN(ll.Lng) &&
		!math.IsInf(ll.Lat, 0) && !math.IsInf(ll.Lng, 0)
}

func (ll LatLng) String() string {
	return fmt.Sprintf("LatLng(%v, %v)", ll.Lat, ll.Lng)
}
