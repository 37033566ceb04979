package tilegrid

// pruneTiles drops every tile that is neither current nor covering for
// one. A current tile that has not become active yet keeps its nearest
// loaded ancestor alive, or failing that its loaded descendants, so the
// screen never goes blank while it loads.
func (g *Grid) pruneTiles() {
	if !g.hasTileZoom {
		return
	}

	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		t.retain = t.current
	}

	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		if !t.current || t.active {
			continue
		}
		if !g.retainParent(t.key, t.key.Z-g.cfg.RetainUp) {
			g.retainChildren(t.key, t.key.Z+g.cfg.RetainDown)
		}
	}

	var drop []*tile
	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.retain {
			drop = append(drop, pair.Value)
		}
	}
	for _, t := range drop {
		g.removeTile(t)
	}
}

// retainParent walks up from key looking for an active ancestor, marking
// loaded ones retained along the way. Reports whether an active one
// covers the tile, so the caller can stop looking.
func (g *Grid) retainParent(key TileKey, minZoom int) bool {
	parent, ok := key.Parent()
	if !ok {
		return false
	}
	if t, ok := g.tiles.Get(parent.MustID()); ok {
		if t.active {
			t.retain = true
			return true
		}
		if t.loaded {
			t.retain = true
		}
	}
	if parent.Z > minZoom {
		return g.retainParent(parent, minZoom)
	}
	return false
}

// retainChildren keeps loaded descendants of key down to maxZoom;
// recursion stops under an active child since it covers its quadrant.
func (g *Grid) retainChildren(key TileKey, maxZoom int) {
	for _, child := range key.Children() {
		if t, ok := g.tiles.Get(child.MustID()); ok {
			if t.active {
				t.retain = true
				continue
			}
			if t.loaded {
				t.retain = true
			}
		}
		if child.Z < maxZoom {
			g.retainChildren(child, maxZoom)
		}
	}
}
