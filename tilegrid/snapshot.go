package tilegrid

import (
	"sort"

	"github.com/kaart/tegel/plane"
)

// TileInfo is one tile as a renderer should draw it.
type TileInfo struct {
	// Key is the unwrapped grid slot, Wrapped the coordinate the source
	// was asked for.
	Key     TileKey
	Wrapped TileKey
	// Pos is the tile's top-left corner in its level's pixel space,
	// Scale the factor to draw the level at for the current view zoom.
	Pos   plane.Point
	Scale float64
	// Opacity ramps from 0 to 1 over the fade duration once loaded.
	Opacity float64
	Loaded  bool
	Active  bool
	Err     error
}

// Snapshot returns the drawable tiles, back levels first and within a
// level in z-order of creation, with fade opacity evaluated at the
// clock's current time.
func (g *Grid) Snapshot() []TileInfo {
	now := g.clock.Now()
	out := make([]TileInfo, 0, g.tiles.Len())
	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		if t.err != nil {
			out = append(out, TileInfo{Key: t.key, Wrapped: t.wrapped, Err: t.err})
			continue
		}
		lvl, ok := g.levels[t.key.Z]
		if !ok {
			continue
		}
		opacity := 0.0
		if t.loaded {
			opacity = 1.0
			if !t.active && g.cfg.fade() > 0 {
				opacity = float64(now.Sub(t.loadedAt)) / float64(g.cfg.fade())
				if opacity > 1 {
					opacity = 1
				}
			}
		}
		out = append(out, TileInfo{
			Key:     t.key,
			Wrapped: t.wrapped,
			Pos: plane.Pt(float64(t.key.X), float64(t.key.Y)).
				MulBy(g.cfg.TileSize).Sub(lvl.origin),
			Scale:   lvl.scale,
			Opacity: opacity,
			Loaded:  t.loaded,
			Active:  t.active,
		})
	}
	// stale levels draw under the current one
	sort.SliceStable(out, func(i, j int) bool {
		zi, zj := out[i].Key.Z, out[j].Key.Z
		if (zi == g.tileZoom) != (zj == g.tileZoom) {
			return zj == g.tileZoom
		}
		return zi < zj
	})
	return out
}
