package geo

import "fmt"

// LatLngBounds is a geographic rectangle built by extending with
// coordinates, same contract as plane.Bounds: the zero value is invalid
// until the first Extend.
type LatLngBounds struct {
	SW, NE LatLng
	valid  bool
}

func NewLatLngBounds(corner1, corner2 LatLng) LatLngBounds {
	var b LatLngBounds
	b.Extend(corner1)
	b.Extend(corner2)
	return b
}

func (b *LatLngBounds) Extend(ll LatLng) *LatLngBounds {
	if !b.valid {
		b.SW = ll
		b.NE = ll
		b.valid = true
		return b
	}
	if ll.Lat < b.SW.Lat {
		b.SW.Lat = ll.Lat
	}
	if ll.Lat > b.NE.Lat {
		b.NE.Lat = ll.Lat
	}
	if ll.Lng < b.SW.Lng {
		b.SW.Lng = ll.Lng
	}
	if ll.Lng > b.NE.Lng {
		b.NE.Lng = ll.Lng
	}
	return b
}

func (b LatLngBounds) IsValid() bool {
	return b.valid
}

func (b LatLngBounds) Center() LatLng {
	return LatLng{
		Lat: (b.SW.Lat + b.NE.Lat) / 2,
		Lng: (b.SW.Lng + b.NE.Lng) / 2,
	}
}

func (b LatLngBounds) NorthWest() LatLng {
	return LatLng{Lat: b.NE.Lat, Lng: b.SW.Lng}
}

func (b LatLngBounds) SouthEast() LatLng {
	return LatLng{Lat: b.SW.Lat, Lng: b.NE.Lng}
}

func (b LatLngBounds) Contains(ll LatLng) bool {
	return b.valid &&
		ll.Lat >= b.SW.Lat && ll.Lat <= b.NE.Lat &&
		ll.Lng >= b.SW.Lng && ll.Lng <= b.NE.Lng
}

func (b LatLngBounds) ContainsBounds(other LatLngBounds) bool {
	return b.valid && other.valid &&
		other.SW.Lat >= b.SW.Lat && other.NE.Lat <= b.NE.Lat &&
		other.SW.Lng >= b.SW.Lng && other.NE.Lng <= b.NE.Lng
}

func (b LatLngBounds) Intersects(other LatLngBounds) bool {
	return b.valid && other.valid &&
		other.NE.Lat >= b.SW.Lat && other.SW.Lat <= b.NE.Lat &&
		other.NE.Lng >= b.SW.Lng && other.SW.Lng <= b.NE.Lng
}

// Pad grows the bounds by a ratio of its span in every direction.
func (b LatLngBounds) Pad(bufferRatio float64) LatLngBounds {
	latBuffer := (b.NE.Lat - b.SW.Lat) * bufferRatio
	lngBuffer := (b.NE.Lng - b.SW.Lng) * bufferRatio
	return NewLatLngBounds(
		LatLng{Lat: b.SW.Lat - latBuffer, Lng: b.SW.Lng - lngBuffer},
		LatLng{Lat: b.NE.Lat + latBuffer, Lng: b.NE.Lng + lngBuffer},
	)
}

func (b LatLngBounds) String() string {
	if !b.valid {
		return "LatLngBounds(invalid)"
	}
	return fmt.Sprintf("LatLngBounds(%v, %v)", b.SW, b.NE)
}
