package tilegrid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileKeyIDRoundTrip(t *testing.T) {
	tests := []TileKey{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 2, Z: 3},
		{X: -1, Y: -1, Z: 5},
		{X: -37, Y: 129, Z: 18},
		{X: 1 << 20, Y: 1 << 20, Z: 21},
		{X: -(1 << 27), Y: (1 << 27) - 1, Z: 63},
	}
	for _, key := range tests {
		t.Run(key.String(), func(t *testing.T) {
			id, ok := key.ID()
			require.True(t, ok)
			assert.Equal(t, key, KeyFromID(id))
		})
	}
}

func TestTileKeyIDDistinct(t *testing.T) {
	seen := map[uint64]TileKey{}
	for z := 0; z <= 4; z++ {
		for x := -4; x <= 4; x++ {
			for y := -4; y <= 4; y++ {
				key := TileKey{X: x, Y: y, Z: z}
				id := key.MustID()
				prev, dup := seen[id]
				require.False(t, dup, "%v and %v share id %d", prev, key, id)
				seen[id] = key
			}
		}
	}
}

func TestTileKeyIDRejectsOutOfRange(t *testing.T) {
	for _, key := range []TileKey{
		{X: 1 << 29, Y: 0, Z: 0},
		{X: 0, Y: -(1 << 29), Z: 0},
		{X: 0, Y: 0, Z: -1},
		{X: 0, Y: 0, Z: 64},
	} {
		_, ok := key.ID()
		assert.False(t, ok, "%v must not pack", key)
	}
	assert.Panics(t, func() { TileKey{Z: -1}.MustID() })
}

func TestTileKeyParent(t *testing.T) {
	tests := []struct {
		key    TileKey
		want   TileKey
		wantOk bool
	}{
		{TileKey{X: 0, Y: 0, Z: 0}, TileKey{}, false},
		{TileKey{X: 5, Y: 3, Z: 4}, TileKey{X: 2, Y: 1, Z: 3}, true},
		{TileKey{X: -1, Y: -2, Z: 4}, TileKey{X: -1, Y: -1, Z: 3}, true},
		{TileKey{X: -3, Y: 7, Z: 2}, TileKey{X: -2, Y: 3, Z: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			got, ok := tt.key.Parent()
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTileKeyChildrenInvertParent(t *testing.T) {
	for _, key := range []TileKey{
		{X: 0, Y: 0, Z: 0},
		{X: 3, Y: 1, Z: 2},
		{X: -2, Y: -5, Z: 6},
	} {
		for i, child := range key.Children() {
			t.Run(fmt.Sprintf("%v[%d]", key, i), func(t *testing.T) {
				parent, ok := child.Parent()
				require.True(t, ok)
				assert.Equal(t, key, parent)
			})
		}
	}
}
