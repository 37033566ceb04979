// Package tilegrid maintains the set of map tiles backing a viewport:
// which tiles are visible, which are in flight, which stale tiles stay
// around to cover gaps, and when everything else is pruned.
//
// A grid subscribes to its viewport's events and reacts to view changes;
// it never spawns goroutines. Sources deliver completions on the driving
// goroutine, so no locks are needed anywhere.
package tilegrid

import (
	"errors"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/umpc/go-sortedmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kaart/tegel/event"
	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/mapslicehelp"
	"github.com/kaart/tegel/mathhelp"
	"github.com/kaart/tegel/plane"
	"github.com/kaart/tegel/view"
)

// Events published by a Grid. Tile events carry a TileEvent.
const (
	// Loading fires when the grid goes from idle to having requests in
	// flight, Load when the last outstanding request completes.
	Loading event.Type = "loading"
	Load    event.Type = "load"

	TileLoadStart event.Type = "tileloadstart"
	TileLoad      event.Type = "tileload"
	TileError     event.Type = "tileerror"
	TileUnload    event.Type = "tileunload"

	// LoadError fires once when the grid shuts itself down on a fatal
	// range error; Data is the error.
	LoadError event.Type = "loaderror"
)

type TileEvent struct {
	Key TileKey
	Err error
}

// ErrInfiniteRange means the viewport projected to a non-finite pixel
// area, so the visible tile range is unbounded. The grid refuses to
// load and stays down until Redraw after the view is fixed.
var ErrInfiniteRange = errors.New("tilegrid: attempted to load an infinite number of tiles")

type tile struct {
	key     TileKey
	wrapped TileKey
	current bool
	retain  bool
	loading bool
	loaded  bool
	active  bool

	loadedAt time.Time
	handle   Handle
	abort    func()
	err      error
}

type level struct {
	zoom   int
	origin plane.Point
	scale  float64
}

type tileRange struct {
	minX, minY, maxX, maxY int
}

func (r tileRange) contains(x, y int) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

func (r tileRange) expand(margin int) tileRange {
	return tileRange{r.minX - margin, r.minY - margin, r.maxX + margin, r.maxY + margin}
}

// Grid tracks the tiles of one source against one viewport. Not safe
// for concurrent use; drive it from the viewport's goroutine.
type Grid struct {
	Events event.Emitter

	cfg    Config
	vp     *view.Viewport
	source Source
	clock  view.Clock

	tiles  *orderedmap.OrderedMap[uint64, *tile]
	levels map[int]*level

	tileZoom    int
	hasTileZoom bool
	globalRange *tileRange
	wrapX       *[2]int
	wrapY       *[2]int

	loading       int
	lastUpdate    time.Time
	updatePending bool
	fadePending   bool
	viewHandles   []event.Handle
	err           error
}

// NewGrid attaches a tile grid to a viewport. The grid starts reacting
// to view events immediately; call Close to detach it.
func NewGrid(vp *view.Viewport, source Source, cfg Config) (*Grid, error) {
	err := cfg.complete()
	if err != nil {
		return nil, err
	}
	g := &Grid{
		cfg:    cfg,
		vp:     vp,
		source: source,
		clock:  vp.Clock(),
		tiles:  orderedmap.New[uint64, *tile](),
		levels: map[int]*level{},
	}
	g.viewHandles = []event.Handle{
		vp.Events.On(view.ViewReset, g.onViewReset),
		vp.Events.On(view.Move, g.onMove),
		vp.Events.On(view.MoveEnd, g.onMoveEnd),
		vp.Events.On(view.ZoomAnim, g.onZoomAnim),
	}
	if vp.Loaded() {
		g.setView(vp.Center(), vp.Zoom(), false)
	}
	return g, nil
}

// Close detaches the grid from its viewport and drops every tile,
// aborting loads and releasing handles. Frame callbacks still scheduled
// on the clock find nothing pending and do not reload.
func (g *Grid) Close() {
	for _, h := range g.viewHandles {
		g.vp.Events.Off(h)
	}
	g.viewHandles = nil
	g.updatePending = false
	g.fadePending = false
	g.hasTileZoom = false
	g.removeAllTiles()
}

// Err returns the fatal error that shut the grid down, if any.
func (g *Grid) Err() error {
	return g.err
}

// LoadingCount is the number of tile requests in flight.
func (g *Grid) LoadingCount() int {
	return g.loading
}

// TileCount is the number of tile records the grid holds, loaded or not.
func (g *Grid) TileCount() int {
	return g.tiles.Len()
}

// ActiveCount is the number of tiles loaded and past their fade-in.
func (g *Grid) ActiveCount() int {
	return mapslicehelp.CountIf(g.tiles, func(_ uint64, t *tile) bool {
		return t.active
	})
}

// Redraw drops all tiles and reloads the current view. It also clears a
// fatal range error.
func (g *Grid) Redraw() {
	g.removeAllTiles()
	g.err = nil
	g.hasTileZoom = false
	if g.vp.Loaded() {
		g.setView(g.vp.Center(), g.vp.Zoom(), false)
	}
}

func (g *Grid) onViewReset(event.Event) {
	if g.err != nil {
		return
	}
	g.setView(g.vp.Center(), g.vp.Zoom(), false)
}

func (g *Grid) onMove(event.Event) {
	if g.err != nil || !g.hasTileZoom {
		return
	}
	now := g.clock.Now()
	if now.Sub(g.lastUpdate) >= g.cfg.UpdateInterval {
		g.updatePending = false
		g.updateTiles(g.vp.Center(), true)
		return
	}
	if g.updatePending {
		return
	}
	g.updatePending = true
	g.clock.RequestFrame(g.deferredUpdate)
}

func (g *Grid) deferredUpdate(now time.Time) {
	if !g.updatePending || g.err != nil {
		return
	}
	if now.Sub(g.lastUpdate) < g.cfg.UpdateInterval {
		g.clock.RequestFrame(g.deferredUpdate)
		return
	}
	g.updatePending = false
	g.updateTiles(g.vp.Center(), true)
}

func (g *Grid) onMoveEnd(event.Event) {
	if g.err != nil {
		return
	}
	g.updatePending = false
	g.setView(g.vp.Center(), g.vp.Zoom(), false)
}

// onZoomAnim reloads tiles for intermediate zooms during an animated
// zoom, when configured. Off by default: frames only scale visually.
func (g *Grid) onZoomAnim(e event.Event) {
	if g.err != nil || !g.cfg.UpdateWhenZooming {
		return
	}
	data := e.Data.(view.ZoomAnimEvent)
	g.setViewAt(data.Center, data.Zoom, true)
}

// clampTileZoom rounds a view zoom to the integer level tiles are
// requested at, folded into the native zoom range.
func (g *Grid) clampTileZoom(zoom float64) int {
	tz := int(math.Round(zoom))
	if g.cfg.MinNativeZoom != nil && tz < int(*g.cfg.MinNativeZoom) {
		tz = int(*g.cfg.MinNativeZoom)
	}
	if g.cfg.MaxNativeZoom != nil && tz > int(*g.cfg.MaxNativeZoom) {
		tz = int(*g.cfg.MaxNativeZoom)
	}
	return tz
}

// zoomOutOfRange reports whether the grid should show no tiles at all at
// this view zoom.
func (g *Grid) zoomOutOfRange(zoom float64) bool {
	if g.cfg.MinZoom != nil && zoom < *g.cfg.MinZoom {
		return true
	}
	if g.cfg.MaxZoom != nil && zoom > *g.cfg.MaxZoom {
		return true
	}
	return false
}

func (g *Grid) setView(center geo.LatLng, zoom float64, noPrune bool) {
	g.setViewAt(center, zoom, noPrune)
}

func (g *Grid) setViewAt(center geo.LatLng, zoom float64, noPrune bool) {
	if g.zoomOutOfRange(zoom) {
		g.removeAllTiles()
		g.hasTileZoom = false
		return
	}
	tz := g.clampTileZoom(zoom)
	if !g.hasTileZoom || tz != g.tileZoom {
		g.tileZoom = tz
		g.hasTileZoom = true
		g.abortOtherZoomLoads()
		g.resetGridRanges()
		g.updateLevels()
	}
	g.updateTiles(center, noPrune)
}

// resetGridRanges recomputes the world tile range and the wrap spans for
// the current tile zoom.
func (g *Grid) resetGridRanges() {
	c := g.vp.CRS()
	zoom := float64(g.tileZoom)
	ts := g.cfg.TileSize

	g.globalRange = nil
	world := c.ProjectedBounds(zoom)
	if world.IsValid() {
		r := g.pixelBoundsToTileRange(world)
		g.globalRange = &r
	}

	wrapLng, wrapLat := c.WrapLng, c.WrapLat
	g.wrapX = nil
	if wrapLng != nil && !g.cfg.NoWrap {
		lo := math.Floor(c.LatLngToPoint(geo.LL(0, wrapLng[0]), zoom).X / ts)
		hi := math.Ceil(c.LatLngToPoint(geo.LL(0, wrapLng[1]), zoom).X / ts)
		g.wrapX = &[2]int{int(lo), int(hi)}
	}
	g.wrapY = nil
	if wrapLat != nil && !g.cfg.NoWrap {
		lo := math.Floor(c.LatLngToPoint(geo.LL(wrapLat[0], 0), zoom).Y / ts)
		hi := math.Ceil(c.LatLngToPoint(geo.LL(wrapLat[1], 0), zoom).Y / ts)
		g.wrapY = &[2]int{int(lo), int(hi)}
	}
}

// updateLevels keeps one level record per zoom that still holds tiles,
// plus the current tile zoom, and refreshes their display transforms.
func (g *Grid) updateLevels() {
	counts := map[int]int{}
	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		counts[pair.Value.key.Z]++
	}
	for _, z := range mapslicehelp.SortedKeys(g.levels) {
		if z != g.tileZoom && counts[z] == 0 {
			delete(g.levels, z)
		}
	}
	if _, ok := g.levels[g.tileZoom]; !ok {
		origin := g.vp.Project(g.vp.Center(), float64(g.tileZoom)).
			Sub(g.vp.Size().DivBy(2)).Round()
		g.levels[g.tileZoom] = &level{zoom: g.tileZoom, origin: origin}
	}
	for _, lvl := range g.levels {
		lvl.scale = g.vp.ZoomScale(g.vp.Zoom(), float64(lvl.zoom))
	}
}

func (g *Grid) pixelBoundsToTileRange(b plane.Bounds) tileRange {
	ts := g.cfg.TileSize
	return tileRange{
		minX: int(math.Floor(b.Min.X / ts)),
		minY: int(math.Floor(b.Min.Y / ts)),
		maxX: int(math.Ceil(b.Max.X/ts)) - 1,
		maxY: int(math.Ceil(b.Max.Y/ts)) - 1,
	}
}

// tiledPixelBounds is the viewport's pixel rectangle projected at the
// tile zoom rather than the (possibly fractional) view zoom.
func (g *Grid) tiledPixelBounds(center geo.LatLng) plane.Bounds {
	scale := g.vp.ZoomScale(g.vp.Zoom(), float64(g.tileZoom))
	pixelCenter := g.vp.Project(center, float64(g.tileZoom))
	half := g.vp.Size().DivBy(scale * 2)
	return plane.NewBounds(pixelCenter.Sub(half), pixelCenter.Add(half))
}

func (g *Grid) fatal(err error) {
	g.err = err
	log.WithError(err).Error("tile grid shut down")
	g.removeAllTiles()
	g.Events.Fire(event.Event{Type: LoadError, Data: err})
}

// updateTiles recomputes the visible range, marks tiles in and out of it,
// and requests what is missing, nearest to the center first.
func (g *Grid) updateTiles(center geo.LatLng, noPrune bool) {
	if !g.hasTileZoom {
		return
	}
	g.lastUpdate = g.clock.Now()

	pxBounds := g.tiledPixelBounds(center)
	if !pxBounds.IsFinite() {
		g.fatal(ErrInfiniteRange)
		return
	}
	visible := g.pixelBoundsToTileRange(pxBounds)
	keep := visible.expand(g.cfg.KeepBuffer)

	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		t.current = t.key.Z == g.tileZoom && keep.contains(t.key.X, t.key.Y)
	}

	tileCenter := g.vp.Project(center, float64(g.tileZoom)).DivBy(g.cfg.TileSize)
	queue := sortedmap.New(8, func(a, b interface{}) bool {
		return a.(float64) < b.(float64)
	})
	for y := visible.minY; y <= visible.maxY; y++ {
		for x := visible.minX; x <= visible.maxX; x++ {
			key := TileKey{X: x, Y: y, Z: g.tileZoom}
			if !g.isValidTile(key) {
				continue
			}
			if t, ok := g.tiles.Get(key.MustID()); ok {
				t.current = true
				continue
			}
			queue.Insert(key.MustID(), key.center().DistanceTo(tileCenter))
		}
	}

	for _, k := range queue.Keys() {
		g.createTile(KeyFromID(k.(uint64)))
	}

	// prune after the new requests exist, so their covering ancestors
	// and descendants are retained
	if !noPrune {
		g.pruneTiles()
	}
}

// isValidTile rejects tiles beyond the world edge on non-wrapping axes
// and tiles outside the configured geographic bounds.
func (g *Grid) isValidTile(key TileKey) bool {
	if g.globalRange != nil {
		r := g.globalRange
		if (g.wrapX == nil && (key.X < r.minX || key.X > r.maxX)) ||
			(g.wrapY == nil && (key.Y < r.minY || key.Y > r.maxY)) {
			return false
		}
	}
	if g.cfg.Bounds == nil {
		return true
	}
	return g.cfg.Bounds.Intersects(g.keyBounds(key))
}

// keyBounds is the geographic area a tile covers.
func (g *Grid) keyBounds(key TileKey) geo.LatLngBounds {
	ts := g.cfg.TileSize
	zoom := float64(key.Z)
	nw := g.vp.Unproject(plane.Pt(float64(key.X)*ts, float64(key.Y)*ts), zoom)
	se := g.vp.Unproject(plane.Pt(float64(key.X+1)*ts, float64(key.Y+1)*ts), zoom)
	return geo.NewLatLngBounds(nw, se)
}

// wrapKey folds an unwrapped tile coordinate into the single world the
// source understands.
func (g *Grid) wrapKey(key TileKey) TileKey {
	if g.wrapX != nil {
		span := g.wrapX[1] - g.wrapX[0]
		key.X = g.wrapX[0] + mathhelp.EuclidianMod(key.X-g.wrapX[0], span)
	}
	if g.wrapY != nil {
		span := g.wrapY[1] - g.wrapY[0]
		key.Y = g.wrapY[0] + mathhelp.EuclidianMod(key.Y-g.wrapY[0], span)
	}
	return key
}

func (g *Grid) createTile(key TileKey) {
	t := &tile{key: key, wrapped: g.wrapKey(key), current: true, loading: true}
	g.tiles.Set(key.MustID(), t)
	if g.loading == 0 {
		g.Events.Fire(event.Event{Type: Loading})
	}
	g.loading++
	g.Events.Fire(event.Event{Type: TileLoadStart, Data: TileEvent{Key: key}})
	log.WithField("tile", key.String()).Debug("requesting tile")
	t.abort = g.source.Load(t.wrapped, func(h Handle, err error) {
		g.tileDone(t, h, err)
	})
}

// tileDone accepts a source completion. Completions for tiles that were
// pruned or replaced in the meantime are discarded; their handle is
// released here, exactly once.
func (g *Grid) tileDone(t *tile, h Handle, err error) {
	cur, ok := g.tiles.Get(t.key.MustID())
	if !ok || cur != t || !t.loading {
		if h != nil {
			h.Release()
		}
		log.WithField("tile", t.key.String()).Debug("discarding late tile completion")
		return
	}
	t.loading = false
	t.abort = nil
	g.loading--

	if err != nil {
		t.err = err
		if h != nil {
			h.Release()
		}
		log.WithError(err).WithField("tile", t.key.String()).Warn("tile failed to load")
		g.Events.Fire(event.Event{Type: TileError, Data: TileEvent{Key: t.key, Err: err}})
	} else {
		t.handle = h
		t.loaded = true
		t.loadedAt = g.clock.Now()
		if g.cfg.fade() == 0 {
			t.active = true
		} else {
			g.scheduleFade()
		}
		g.Events.Fire(event.Event{Type: TileLoad, Data: TileEvent{Key: t.key}})
	}

	if g.loading == 0 {
		g.Events.Fire(event.Event{Type: Load})
		if g.cfg.fade() == 0 {
			g.pruneTiles()
		}
	}
}

func (g *Grid) scheduleFade() {
	if g.fadePending {
		return
	}
	g.fadePending = true
	g.clock.RequestFrame(g.onFadeFrame)
}

// onFadeFrame activates tiles whose fade finished and keeps the frame
// loop alive while any tile is still fading. Pruning waits until the
// covering tiles are fully opaque.
func (g *Grid) onFadeFrame(now time.Time) {
	g.fadePending = false
	fading := false
	activated := false
	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		if !t.loaded || t.active {
			continue
		}
		if now.Sub(t.loadedAt) >= g.cfg.fade() {
			t.active = true
			activated = true
		} else {
			fading = true
		}
	}
	if fading {
		g.scheduleFade()
	} else if activated {
		g.pruneTiles()
	}
}

// abortOtherZoomLoads drops in-flight tiles for zooms other than the
// current tile zoom; their content would arrive already stale.
func (g *Grid) abortOtherZoomLoads() {
	var drop []*tile
	for pair := g.tiles.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		if t.loading && t.key.Z != g.tileZoom {
			drop = append(drop, t)
		}
	}
	for _, t := range drop {
		g.removeTile(t)
	}
}

func (g *Grid) removeAllTiles() {
	for _, id := range mapslicehelp.OrderedMapKeys(g.tiles) {
		if t, ok := g.tiles.Get(id); ok {
			g.removeTile(t)
		}
	}
}

// removeTile drops one tile record, aborting its load and releasing its
// handle. A completion arriving afterwards no longer finds this record
// and is discarded.
func (g *Grid) removeTile(t *tile) {
	if _, ok := g.tiles.Get(t.key.MustID()); !ok {
		return
	}
	g.tiles.Delete(t.key.MustID())
	if t.loading {
		t.loading = false
		g.loading--
		if t.abort != nil {
			t.abort()
			t.abort = nil
		}
	}
	if t.handle != nil {
		t.handle.Release()
		t.handle = nil
	}
	g.Events.Fire(event.Event{Type: TileUnload, Data: TileEvent{Key: t.key}})
}
