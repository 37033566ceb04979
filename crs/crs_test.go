package crs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/plane"
)

func TestSphericalMercator_roundTrip(t *testing.T) {
	tests := []geo.LatLng{
		geo.LL(0, 0),
		geo.LL(52.3702, 4.8952),
		geo.LL(-33.8688, 151.2093),
		geo.LL(85.0511287798, 180),
		geo.LL(-85.0511287798, -180),
	}
	p := SphericalMercator{}
	for _, ll := range tests {
		t.Run(ll.String(), func(t *testing.T) {
			got := p.Unproject(p.Project(ll))
			assert.True(t, got.EqualsWithin(ll, 1e-9), "got %v, want %v", got, ll)
		})
	}
}

func TestSphericalMercator_clampsPolarLatitudes(t *testing.T) {
	p := SphericalMercator{}
	north := p.Project(geo.LL(90, 0))
	assert.True(t, north.IsFinite(), "projecting the pole must not produce Inf")
	assert.Equal(t, p.Project(geo.LL(MaxMercatorLatitude, 0)), north)
}

func TestCRS_latLngToPoint(t *testing.T) {
	tests := []struct {
		crs  *CRS
		ll   geo.LatLng
		zoom float64
		want plane.Point
	}{
		{EPSG3857, geo.LL(0, 0), 0, plane.Pt(128, 128)},
		{EPSG3857, geo.LL(0, 0), 1, plane.Pt(256, 256)},
		{EPSG3857, geo.LL(85.0511287798, -180), 0, plane.Pt(0, 0)},
		{EPSG3857, geo.LL(-85.0511287798, 180), 0, plane.Pt(256, 256)},
		{EPSG4326, geo.LL(0, 0), 0, plane.Pt(256, 128)},
		{Simple, geo.LL(-50, 100), 0, plane.Pt(25600, 12800)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v %v z%v", tt.crs.Code, tt.ll, tt.zoom), func(t *testing.T) {
			got := tt.crs.LatLngToPoint(tt.ll, tt.zoom)
			assert.InDelta(t, tt.want.X, got.X, 1e-6)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-6)
		})
	}
}

func TestCRS_pixelRoundTrip(t *testing.T) {
	systems := []*CRS{EPSG3857, EPSG4326, Simple}
	coords := []geo.LatLng{
		geo.LL(0, 0),
		geo.LL(52.3702, 4.8952),
		geo.LL(-45, 135.42),
	}
	for _, c := range systems {
		for _, ll := range coords {
			for zoom := 0.0; zoom <= 18; zoom += 3.5 {
				t.Run(fmt.Sprintf("%v %v z%v", c.Code, ll, zoom), func(t *testing.T) {
					got := c.PointToLatLng(c.LatLngToPoint(ll, zoom), zoom)
					assert.True(t, got.EqualsWithin(ll, 1e-9), "got %v, want %v", got, ll)
				})
			}
		}
	}
}

func TestCRS_scaleZoomInverse(t *testing.T) {
	for _, c := range []*CRS{EPSG3857, EPSG4326} {
		for zoom := 0.0; zoom <= 22; zoom += 0.7 {
			assert.InDelta(t, zoom, c.Zoom(c.Scale(zoom)), 1e-9, "crs %v zoom %v", c.Code, zoom)
		}
	}
}

func TestCRS_wrapLatLng(t *testing.T) {
	tests := []struct {
		in   geo.LatLng
		want geo.LatLng
	}{
		{geo.LL(0, 190), geo.LL(0, -170)},
		{geo.LL(0, -190), geo.LL(0, 170)},
		{geo.LL(0, 180), geo.LL(0, 180)}, // wrap range is inclusive at the max
		{geo.LL(0, 540), geo.LL(0, -180)},
		{geo.LL(52, 4), geo.LL(52, 4)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("wrap %v", tt.in.Lng), func(t *testing.T) {
			got := EPSG3857.WrapLatLng(tt.in)
			assert.True(t, got.Equals(tt.want), "got %v, want %v", got, tt.want)
			assert.True(t, EPSG3857.WrapLatLng(got).Equals(got), "wrap must be idempotent")
		})
	}
}

func TestCRS_projectedBounds(t *testing.T) {
	b := EPSG3857.ProjectedBounds(0)
	require.True(t, b.IsValid())
	assert.InDelta(t, 0, b.Min.X, 1e-6)
	assert.InDelta(t, 0, b.Min.Y, 1e-6)
	assert.InDelta(t, 256, b.Max.X, 1e-6)
	assert.InDelta(t, 256, b.Max.Y, 1e-6)

	assert.False(t, Simple.ProjectedBounds(3).IsValid(), "infinite CRS has no world bounds")
}

func TestLoadEmbeddedDefinition(t *testing.T) {
	tests := []struct {
		id   string
		code string
	}{
		{id: "WebMercatorQuad", code: "EPSG:3857"},
		{id: "WorldCRS84Quad", code: "EPSG:4326"},
		{id: "WebMercatorQuadLimited", code: "EPSG:3857"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := LoadEmbeddedDefinition(tt.id)
			require.NoError(t, err)
			require.Equal(t, tt.code, got.Code)
		})
	}
}

func TestLoadEmbeddedDefinition_matchesBuiltin(t *testing.T) {
	loaded, err := LoadEmbeddedDefinition("WebMercatorQuad")
	require.NoError(t, err)
	for _, ll := range []geo.LatLng{geo.LL(0, 0), geo.LL(52.3702, 4.8952)} {
		for _, zoom := range []float64{0, 7, 15.5} {
			want := EPSG3857.LatLngToPoint(ll, zoom)
			got := loaded.LatLngToPoint(ll, zoom)
			assert.InDelta(t, want.X, got.X, 1e-6)
			assert.InDelta(t, want.Y, got.Y, 1e-6)
		}
	}
}

func TestCRS_resolutionsScale(t *testing.T) {
	limited, err := LoadEmbeddedDefinition("WebMercatorQuadLimited")
	require.NoError(t, err)

	// the resolutions are expressed in projected meters per pixel, so
	// the raw scale differs from the 256*2^zoom convention by a constant
	// world-size factor. Whole zooms still double the scale, and both
	// grids must land on the same pixels.
	for zoom := 1.0; zoom <= 15; zoom++ {
		assert.InDelta(t, 2, limited.Scale(zoom)/limited.Scale(zoom-1), 1e-9, "zoom %v", zoom)
	}
	for _, zoom := range []float64{0, 7, 15} {
		for _, ll := range []geo.LatLng{geo.LL(0, 0), geo.LL(52.3702, 4.8952)} {
			want := EPSG3857.LatLngToPoint(ll, zoom)
			got := limited.LatLngToPoint(ll, zoom)
			assert.InDelta(t, want.X, got.X, 1e-6, "zoom %v %v", zoom, ll)
			assert.InDelta(t, want.Y, got.Y, 1e-6, "zoom %v %v", zoom, ll)
		}
	}
	// beyond the list the finest resolution holds
	assert.InDelta(t, limited.Scale(15), limited.Scale(17), 1e-9)
	// a scale coarser than the coarsest resolution clamps to zoom 0
	assert.Equal(t, 0.0, limited.Zoom(limited.Scale(0)/4))
	// fractional zooms interpolate and invert consistently
	for _, zoom := range []float64{0.5, 3.25, 14.75} {
		assert.InDelta(t, zoom, limited.Zoom(limited.Scale(zoom)), 1e-9)
	}
}

func TestLoadJSONDefinition_invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing code", `{"projection": "lonlat", "transformation": [1, 0, -1, 0]}`},
		{"unknown projection", `{"code": "X", "projection": "mystery", "transformation": [1, 0, -1, 0]}`},
		{"infinite with extent", `{"code": "X", "projection": "lonlat", "transformation": [1, 0, -1, 0], "infinite": true, "extent": [0, 0, 1, 1]}`},
		{"negative resolution", `{"code": "X", "projection": "lonlat", "transformation": [1, 0, -1, 0], "resolutions": [-1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJSONDefinition([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}
