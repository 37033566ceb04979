package tilegrid

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaart/tegel/crs"
	"github.com/kaart/tegel/event"
	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/plane"
	"github.com/kaart/tegel/view"
)

type testHandle struct {
	releases int
}

func (h *testHandle) Release() { h.releases++ }

// fakeSource records every load and lets tests complete them at will,
// including after the grid asked to abort.
type fakeSource struct {
	loads   []TileKey
	pending map[TileKey]func(Handle, error)
	aborted []TileKey
}

func newFakeSource() *fakeSource {
	return &fakeSource{pending: map[TileKey]func(Handle, error){}}
}

func (s *fakeSource) Load(key TileKey, done func(Handle, error)) func() {
	s.loads = append(s.loads, key)
	s.pending[key] = done
	return func() { s.aborted = append(s.aborted, key) }
}

func (s *fakeSource) complete(key TileKey, h Handle, err error) bool {
	done, ok := s.pending[key]
	if !ok {
		return false
	}
	delete(s.pending, key)
	done(h, err)
	return true
}

func (s *fakeSource) completeAll(t *testing.T) map[TileKey]*testHandle {
	t.Helper()
	handles := map[TileKey]*testHandle{}
	for len(s.pending) > 0 {
		for key := range s.pending {
			h := &testHandle{}
			handles[key] = h
			require.True(t, s.complete(key, h, nil))
			break
		}
	}
	return handles
}

func durPtr(d time.Duration) *time.Duration { return &d }
func f64Ptr(f float64) *float64             { return &f }

func newGridFixture(t *testing.T, cfg Config, opts view.Options) (*view.Viewport, *view.ManualClock, *fakeSource, *Grid) {
	t.Helper()
	clock := view.NewManualClock(time.Unix(0, 0))
	if opts.CRS == nil {
		opts.CRS = crs.EPSG3857
	}
	if opts.Size.Equals(plane.Pt(0, 0)) {
		opts.Size = plane.Pt(512, 512)
	}
	if cfg.FadeDuration == nil {
		cfg.FadeDuration = durPtr(0)
	}
	vp, err := view.NewViewport(clock, opts)
	require.NoError(t, err)
	src := newFakeSource()
	g, err := NewGrid(vp, src, cfg)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return vp, clock, src, g
}

func keys(ts []TileKey) map[TileKey]bool {
	m := map[TileKey]bool{}
	for _, k := range ts {
		m[k] = true
	}
	return m
}

func TestInitialViewLoadsVisibleTiles(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})

	rec := 0
	loadFired := 0
	g.Events.On(Loading, func(event.Event) { rec++ })
	g.Events.On(Load, func(event.Event) { loadFired++ })

	vp.SetView(geo.LL(0, 0), 2)

	want := keys([]TileKey{
		{X: 1, Y: 1, Z: 2}, {X: 2, Y: 1, Z: 2},
		{X: 1, Y: 2, Z: 2}, {X: 2, Y: 2, Z: 2},
	})
	assert.Equal(t, want, keys(src.loads))
	assert.Equal(t, 1, rec, "loading must fire once per batch")
	assert.Equal(t, 4, g.LoadingCount())

	src.completeAll(t)
	assert.Equal(t, 0, g.LoadingCount())
	assert.Equal(t, 1, loadFired)
	assert.Equal(t, 4, g.TileCount())
	assert.Equal(t, 4, g.ActiveCount())
	for _, info := range g.Snapshot() {
		assert.True(t, info.Active, "tile %v must be active without fading", info.Key)
		assert.Equal(t, 1.0, info.Opacity)
	}
}

func TestTilesRequestedNearestCenterFirst(t *testing.T) {
	vp, _, src, _ := newGridFixture(t, Config{}, view.Options{Size: plane.Pt(768, 768)})
	vp.SetView(geo.LL(0, 0), 3)

	center := vp.Project(vp.Center(), 3).DivBy(256)
	require.Greater(t, len(src.loads), 4)
	prev := -1.0
	for _, key := range src.loads {
		d := key.center().DistanceTo(center)
		assert.GreaterOrEqual(t, d, prev, "tile %v requested out of order", key)
		prev = d
	}
}

func TestHorizontalWrap(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 180), 1)

	for _, key := range src.loads {
		assert.GreaterOrEqual(t, key.X, 0)
		assert.LessOrEqual(t, key.X, 1)
	}
	unwrapped := map[int]bool{}
	for _, info := range g.Snapshot() {
		unwrapped[info.Key.X] = true
	}
	assert.True(t, unwrapped[2], "grid must keep the unwrapped slot past the date line")
}

func TestNoWrapSkipsTilesBeyondWorldEdge(t *testing.T) {
	vp, _, src, _ := newGridFixture(t, Config{NoWrap: true}, view.Options{})
	vp.SetView(geo.LL(0, 180), 1)

	for _, key := range src.loads {
		assert.GreaterOrEqual(t, key.X, 0)
		assert.LessOrEqual(t, key.X, 1)
	}
	assert.Len(t, src.loads, 2, "only the in-world column must load")
}

func TestGeographicBoundsRestrictLoading(t *testing.T) {
	bounds := geo.NewLatLngBounds(geo.LL(-85, -180), geo.LL(85, -1))
	vp, _, src, _ := newGridFixture(t, Config{Bounds: &bounds}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)

	require.NotEmpty(t, src.loads)
	for _, key := range src.loads {
		assert.Equal(t, 1, key.X, "tile %v lies outside the configured bounds", key)
	}
}

func TestPanWithinKeepBufferDoesNotReload(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(10, 10), 2)
	src.completeAll(t)
	loads := len(src.loads)
	count := g.TileCount()

	vp.PanBy(plane.Pt(10, 0))
	clock.StepUntilIdle(16 * time.Millisecond)

	assert.Len(t, src.loads, loads, "a sub-tile pan must not request anything")
	assert.Equal(t, count, g.TileCount())
}

func TestJumpPrunesOldTilesAndReleasesHandles(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 5)
	handles := src.completeAll(t)

	unloads := 0
	g.Events.On(TileUnload, func(event.Event) { unloads++ })

	vp.SetView(geo.LL(0, 120), 5)

	assert.Equal(t, 4, unloads)
	for key, h := range handles {
		assert.Equal(t, 1, h.releases, "handle for %v", key)
	}
	assert.Equal(t, 6, g.TileCount())
	assert.Equal(t, 6, g.LoadingCount())
}

func TestZoomInRetainsActiveAncestorsUntilLoaded(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 3)
	src.completeAll(t)

	vp.ZoomTo(4)
	clock.StepUntilIdle(16 * time.Millisecond)

	assert.Equal(t, 8, g.TileCount(), "old level must survive while the new one loads")
	byZoom := map[int]int{}
	for _, info := range g.Snapshot() {
		byZoom[info.Key.Z]++
	}
	assert.Equal(t, 4, byZoom[3])
	assert.Equal(t, 4, byZoom[4])

	// stale levels draw under the current one
	infos := g.Snapshot()
	assert.Equal(t, 3, infos[0].Key.Z)
	assert.Equal(t, 4, infos[len(infos)-1].Key.Z)

	src.completeAll(t)
	assert.Equal(t, 4, g.TileCount(), "covering ancestors go once the new level is in")
	for _, info := range g.Snapshot() {
		assert.Equal(t, 4, info.Key.Z)
	}
}

func TestRetainWalkBounded(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{RetainUp: 1, RetainDown: 1}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)
	src.completeAll(t)

	vp.ZoomTo(4)
	clock.StepUntilIdle(16 * time.Millisecond)

	for _, info := range g.Snapshot() {
		assert.Equal(t, 4, info.Key.Z,
			"tile %v is too far up to cover and must be pruned", info.Key)
	}
}

func TestLateCompletionAfterPruneIsDiscarded(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 5)
	require.Equal(t, 4, g.LoadingCount())
	stale := src.loads[0]

	tileLoads := 0
	g.Events.On(TileLoad, func(event.Event) { tileLoads++ })

	vp.SetView(geo.LL(0, 120), 5)
	assert.Contains(t, src.aborted, stale)
	require.Equal(t, 6, g.LoadingCount())

	h := &testHandle{}
	require.True(t, src.complete(stale, h, nil))

	assert.Equal(t, 1, h.releases, "the grid must release a handle it discards")
	assert.Equal(t, 0, tileLoads)
	assert.Equal(t, 6, g.LoadingCount())
	assert.Equal(t, 6, g.TileCount())
}

func TestTileErrorKeepsRecordAndFiresEvent(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)

	var failed []TileKey
	g.Events.On(TileError, func(e event.Event) {
		failed = append(failed, e.Data.(TileEvent).Key)
	})

	bad := src.loads[0]
	boom := errors.New("boom")
	require.True(t, src.complete(bad, nil, boom))
	src.completeAll(t)

	assert.Equal(t, []TileKey{bad}, failed)
	assert.Equal(t, 4, g.TileCount(), "a failed tile is not re-requested")
	errs := 0
	for _, info := range g.Snapshot() {
		if info.Err != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestFadeIn(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{FadeDuration: durPtr(200 * time.Millisecond)}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)
	src.completeAll(t)

	for _, info := range g.Snapshot() {
		assert.True(t, info.Loaded)
		assert.False(t, info.Active)
		assert.Equal(t, 0.0, info.Opacity)
	}

	clock.Step(100 * time.Millisecond)
	for _, info := range g.Snapshot() {
		assert.False(t, info.Active)
		assert.InDelta(t, 0.5, info.Opacity, 1e-9)
	}

	clock.Step(150 * time.Millisecond)
	for _, info := range g.Snapshot() {
		assert.True(t, info.Active)
		assert.Equal(t, 1.0, info.Opacity)
	}
	assert.Equal(t, 0, clock.Pending(), "the fade loop must stop once everything is opaque")
}

func TestNativeZoomClampsRequests(t *testing.T) {
	vp, _, src, _ := newGridFixture(t, Config{MaxNativeZoom: f64Ptr(2)}, view.Options{})
	vp.SetView(geo.LL(0, 0), 4)

	require.NotEmpty(t, src.loads)
	for _, key := range src.loads {
		assert.Equal(t, 2, key.Z)
	}
}

func TestZoomOutsideGridRangeShowsNothing(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{MaxZoom: f64Ptr(3)}, view.Options{})
	vp.SetView(geo.LL(0, 0), 3)
	src.completeAll(t)
	require.Equal(t, 4, g.TileCount())

	vp.ZoomTo(5)
	clock.StepUntilIdle(16 * time.Millisecond)
	assert.Equal(t, 0, g.TileCount())
	assert.Equal(t, 0, g.LoadingCount())
}

func TestMoveUpdatesAreThrottled(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)
	src.completeAll(t)
	require.Len(t, src.loads, 4)

	vp.PanBy(plane.Pt(256, 0))
	for clock.Now().Sub(time.Unix(0, 0)) < 192*time.Millisecond {
		clock.Step(16 * time.Millisecond)
	}
	assert.Len(t, src.loads, 4, "no update may run before the interval elapses")

	clock.Step(16 * time.Millisecond)
	assert.Len(t, src.loads, 6, "the first throttled update requests the new column")

	clock.StepUntilIdle(16 * time.Millisecond)
	assert.Len(t, src.loads, 6)
	assert.Equal(t, 6, g.TileCount(), "tiles inside the keep buffer survive the move")
}

func TestInfiniteRangeShutsGridDown(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)
	src.completeAll(t)

	var fatal error
	g.Events.On(LoadError, func(e event.Event) { fatal = e.Data.(error) })

	vp.SetView(geo.LL(math.NaN(), 0), 2)

	assert.ErrorIs(t, g.Err(), ErrInfiniteRange)
	assert.ErrorIs(t, fatal, ErrInfiniteRange)
	assert.Equal(t, 0, g.TileCount())
	assert.Equal(t, 0, g.LoadingCount())

	before := len(src.loads)
	vp.SetView(geo.LL(0, 0), 2)
	assert.Len(t, src.loads, before, "a dead grid must ignore view changes")

	g.Redraw()
	assert.NoError(t, g.Err())
	assert.Equal(t, 4, g.LoadingCount())
}

func TestCloseReleasesEverything(t *testing.T) {
	vp, _, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 3)
	handles := map[TileKey]*testHandle{}
	for _, key := range src.loads[:2] {
		h := &testHandle{}
		handles[key] = h
		require.True(t, src.complete(key, h, nil))
	}

	g.Close()

	assert.Equal(t, 0, g.TileCount())
	assert.Len(t, src.aborted, 2)
	for key, h := range handles {
		assert.Equal(t, 1, h.releases, "handle for %v", key)
	}

	before := len(src.loads)
	vp.SetView(geo.LL(40, 40), 5)
	assert.Len(t, src.loads, before, "a closed grid must ignore the viewport")
}

func TestCloseCancelsPendingThrottledUpdate(t *testing.T) {
	vp, clock, src, g := newGridFixture(t, Config{}, view.Options{})
	vp.SetView(geo.LL(0, 0), 2)
	src.completeAll(t)
	require.Len(t, src.loads, 4)

	vp.PanBy(plane.Pt(256, 0))
	clock.Step(16 * time.Millisecond) // arms the throttled update

	g.Close()
	clock.StepUntilIdle(16 * time.Millisecond)

	assert.Len(t, src.loads, 4, "a closed grid must not issue deferred loads")
	assert.Equal(t, 0, g.TileCount())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.complete())
	assert.Equal(t, 256.0, cfg.TileSize)
	assert.Equal(t, 2, cfg.KeepBuffer)
	assert.Equal(t, 200*time.Millisecond, cfg.UpdateInterval)
	assert.Equal(t, 200*time.Millisecond, *cfg.FadeDuration)
	assert.Equal(t, 5, cfg.RetainUp)
	assert.Equal(t, 2, cfg.RetainDown)

	bad := Config{TileSize: -1}
	assert.Error(t, bad.complete())
}
