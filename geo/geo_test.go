package geo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatLng_WrapLng(t *testing.T) {
	tests := []struct {
		in   LatLng
		want LatLng
	}{
		{LL(52, 190), LL(52, -170)},
		{LL(52, -190), LL(52, 170)},
		{LL(52, 180), LL(52, -180)},
		{LL(52, 5), LL(52, 5)},
		{LL(52, 365), LL(52, 5)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("wrap %v", tt.in.Lng), func(t *testing.T) {
			got := tt.in.WrapLng()
			assert.True(t, got.Equals(tt.want), "got %v, want %v", got, tt.want)
			// idempotence
			assert.True(t, got.WrapLng().Equals(got))
		})
	}
}

func TestLatLng_DistanceTo(t *testing.T) {
	amsterdam := LL(52.3702, 4.8952)
	berlin := LL(52.52, 13.405)
	d := amsterdam.DistanceTo(berlin)
	// roughly 577 km
	assert.InDelta(t, 577000, d, 5000)
	assert.Zero(t, amsterdam.DistanceTo(amsterdam))
}

func TestLatLngBounds_Extend(t *testing.T) {
	var b LatLngBounds
	require.False(t, b.IsValid())

	b.Extend(LL(52, 4))
	b.Extend(LL(53, 5))
	b.Extend(LL(51, 6))

	assert.Equal(t, LL(51, 4), b.SW)
	assert.Equal(t, LL(53, 6), b.NE)
	assert.Equal(t, LL(52, 5), b.Center())
}

func TestLatLngBounds_Contains(t *testing.T) {
	b := NewLatLngBounds(LL(50, 3), LL(54, 8))
	assert.True(t, b.Contains(LL(52, 5)))
	assert.True(t, b.Contains(LL(50, 3)))
	assert.False(t, b.Contains(LL(49, 5)))
	assert.True(t, b.ContainsBounds(NewLatLngBounds(LL(51, 4), LL(53, 7))))
	assert.False(t, b.ContainsBounds(NewLatLngBounds(LL(51, 4), LL(55, 7))))
	assert.True(t, b.Intersects(NewLatLngBounds(LL(53, 7), LL(56, 9))))
	assert.False(t, b.Intersects(NewLatLngBounds(LL(55, 9), LL(56, 10))))
}
