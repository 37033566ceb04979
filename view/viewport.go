// Package view owns the viewport state: center, zoom and pixel origin,
// conversions between geographic, layer-pixel and container-pixel space,
// and the animation state machine for smooth pan, zoom and fly-to
// transitions. It publishes change events that the tile grid subscribes to.
//
// Everything here runs on one logical thread; "waiting" is always a
// rendering-clock callback, never a blocking call.
package view

import (
	"math"
	"time"

	"github.com/kaart/tegel/crs"
	"github.com/kaart/tegel/event"
	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/mathhelp"
	"github.com/kaart/tegel/plane"
)

// Events published by the viewport.
const (
	// ViewReset fires when the view jumped without animation and all
	// derived state must be rebuilt.
	ViewReset event.Type = "viewreset"
	// Move fires on every animation frame that changes the center,
	// MoveEnd once the view settles.
	Move    event.Type = "move"
	MoveEnd event.Type = "moveend"
	// ZoomStart/ZoomAnim/ZoomEnd frame an animated zoom transition.
	// ZoomAnim carries a ZoomAnimEvent so layers can apply a purely
	// visual transform without re-requesting tiles.
	ZoomStart event.Type = "zoomstart"
	ZoomAnim  event.Type = "zoomanim"
	ZoomEnd   event.Type = "zoomend"
)

// ViewEvent is the payload of Move, MoveEnd, ZoomEnd and ViewReset.
type ViewEvent struct {
	Center geo.LatLng
	Zoom   float64
}

// ZoomAnimEvent is the payload of ZoomAnim frames. Zoom is the animated
// (fractional) zoom of this frame; Scale is the visual scale factor
// relative to the committed zoom.
type ZoomAnimEvent struct {
	Center geo.LatLng
	Zoom   float64
	Scale  float64
}

type animState int

const (
	stateIdle animState = iota
	statePanning
	stateZooming
	stateFlying
)

// Viewport is the single owner of the current view. Not safe for
// concurrent use; drive it from one goroutine.
type Viewport struct {
	Events event.Emitter

	opts  Options
	clock Clock

	center      geo.LatLng
	zoom        float64
	pixelOrigin plane.Point
	loaded      bool

	state      animState
	frameToken FrameToken
	frameArmed bool
	anim       *animation
}

// animation is one in-flight transition on the rendering clock.
type animation struct {
	duration time.Duration
	start    time.Time
	started  bool
	// frame receives linear progress in [0, 1]; easing is the frame
	// function's business.
	frame func(progress float64)
	// settle commits the target state; it also runs when the animation
	// is stopped before finishing.
	settle func()
}

func NewViewport(clock Clock, opts Options) (*Viewport, error) {
	err := opts.complete()
	if err != nil {
		return nil, err
	}
	return &Viewport{opts: opts, clock: clock}, nil
}

// CRS returns the coordinate reference system the viewport projects with.
func (v *Viewport) CRS() *crs.CRS {
	return v.opts.CRS
}

// Clock returns the rendering clock the viewport animates on.
func (v *Viewport) Clock() Clock {
	return v.clock
}

// Loaded reports whether the view has been set at least once.
func (v *Viewport) Loaded() bool {
	return v.loaded
}

func (v *Viewport) Size() plane.Point {
	return v.opts.Size
}

func (v *Viewport) Center() geo.LatLng {
	return v.center
}

func (v *Viewport) Zoom() float64 {
	return v.zoom
}

// PixelOrigin is the projected pixel coordinate of the viewport's top-left
// corner. It is derived from center and zoom, rounded once the view is
// settled.
func (v *Viewport) PixelOrigin() plane.Point {
	return v.pixelOrigin
}

func (v *Viewport) MinZoom() float64 {
	return v.opts.MinZoom
}

func (v *Viewport) MaxZoom() float64 {
	return v.opts.MaxZoom
}

// Animating reports whether a pan, zoom or fly transition is in flight.
func (v *Viewport) Animating() bool {
	return v.state != stateIdle
}

// Project converts a geographic coordinate to pixel space at a zoom.
func (v *Viewport) Project(ll geo.LatLng, zoom float64) plane.Point {
	return v.opts.CRS.LatLngToPoint(ll, zoom)
}

func (v *Viewport) Unproject(p plane.Point, zoom float64) geo.LatLng {
	return v.opts.CRS.PointToLatLng(p, zoom)
}

// LatLngToLayerPoint converts to pixels relative to the pixel origin.
func (v *Viewport) LatLngToLayerPoint(ll geo.LatLng) plane.Point {
	return v.Project(ll, v.zoom).Sub(v.pixelOrigin)
}

func (v *Viewport) LayerPointToLatLng(p plane.Point) geo.LatLng {
	return v.Unproject(p.Add(v.pixelOrigin), v.zoom)
}

// ContainerPointToLatLng converts from pixels relative to the viewport's
// top-left corner. With a settled view the container and layer spaces
// coincide; both names are kept for the boundary contract.
func (v *Viewport) ContainerPointToLatLng(p plane.Point) geo.LatLng {
	return v.LayerPointToLatLng(p)
}

func (v *Viewport) LatLngToContainerPoint(ll geo.LatLng) plane.Point {
	return v.LatLngToLayerPoint(ll)
}

// ZoomScale is the visual scale factor between two zooms.
func (v *Viewport) ZoomScale(toZoom, fromZoom float64) float64 {
	return v.opts.CRS.Scale(toZoom) / v.opts.CRS.Scale(fromZoom)
}

// ScaleZoom is the inverse of ZoomScale: the zoom at which the world is
// scale times larger than at fromZoom.
func (v *Viewport) ScaleZoom(scale, fromZoom float64) float64 {
	return v.opts.CRS.Zoom(scale * v.opts.CRS.Scale(fromZoom))
}

// PixelBounds returns the pixel rectangle covered by the viewport at the
// current view.
func (v *Viewport) PixelBounds() plane.Bounds {
	return v.PixelBoundsAt(v.center, v.zoom)
}

func (v *Viewport) PixelBoundsAt(center geo.LatLng, zoom float64) plane.Bounds {
	half := v.opts.Size.DivBy(2)
	topLeft := v.Project(center, zoom).Sub(half)
	return plane.NewBounds(topLeft, topLeft.Add(v.opts.Size))
}

// PixelWorldBounds returns the pixel bounds of the whole world at the
// current zoom, invalid for an infinite CRS.
func (v *Viewport) PixelWorldBounds() plane.Bounds {
	return v.opts.CRS.ProjectedBounds(v.zoom)
}

func (v *Viewport) newPixelOrigin(center geo.LatLng, zoom float64) plane.Point {
	return v.Project(center, zoom).Sub(v.opts.Size.DivBy(2))
}

// clampZoom restricts a zoom to the configured range, snapped to ZoomSnap.
func (v *Viewport) clampZoom(zoom float64) float64 {
	snapped := mathhelp.SnapZoom(zoom, v.opts.ZoomSnap)
	return mathhelp.Clamp(snapped, v.opts.MinZoom, v.opts.MaxZoom)
}

// limitCenter moves the center by the minimal correction that keeps the
// projected viewport inside the projected max bounds.
func (v *Viewport) limitCenter(center geo.LatLng, zoom float64) geo.LatLng {
	if v.opts.MaxBounds == nil || !v.opts.MaxBounds.IsValid() {
		return center
	}
	offset := v.boundsOffset(v.PixelBoundsAt(center, zoom), *v.opts.MaxBounds, zoom)
	if offset.Equals(plane.Pt(0, 0)) {
		return center
	}
	return v.Unproject(v.Project(center, zoom).Add(offset), zoom)
}

// boundsOffset is the minimal pixel vector that brings pxBounds inside the
// projected maxBounds rectangle.
func (v *Viewport) boundsOffset(pxBounds plane.Bounds, maxBounds geo.LatLngBounds, zoom float64) plane.Point {
	var projected plane.Bounds
	projected.Extend(v.Project(maxBounds.NorthWest(), zoom))
	projected.Extend(v.Project(maxBounds.SouthEast(), zoom))

	minOffset := projected.Min.Sub(pxBounds.Min)
	maxOffset := projected.Max.Sub(pxBounds.Max)
	return plane.Point{
		X: rebound(minOffset.X, -maxOffset.X),
		Y: rebound(minOffset.Y, -maxOffset.Y),
	}
}

// rebound resolves the two one-sided corrections into one: when the view
// is larger than the bounds it centers, otherwise it shifts just enough.
func rebound(left, right float64) float64 {
	if left+right > 0 {
		return math.Round(left-right) / 2
	}
	return math.Max(0, math.Ceil(left)) - math.Max(0, math.Floor(right))
}

// SetView moves the view to a center and zoom. The zoom is clamped and
// snapped, the center clamped to the max bounds. Small moves animate; a
// jump further than one viewport or a zoom change beyond the animation
// threshold resets instantly. Any in-flight transition is finished first.
func (v *Viewport) SetView(center geo.LatLng, zoom float64) {
	zoom = v.clampZoom(zoom)
	center = v.limitCenter(v.opts.CRS.WrapLatLng(center), zoom)
	v.Stop()

	if v.loaded {
		if zoom != v.zoom && v.zoomAnimatable(center, zoom) {
			v.startZoomAnimation(center, zoom)
			return
		}
		if zoom == v.zoom && v.panAnimatable(center) {
			v.startPanAnimation(center)
			return
		}
	}
	v.resetView(center, zoom)
}

// ZoomTo changes only the zoom, keeping the current center.
func (v *Viewport) ZoomTo(zoom float64) {
	v.SetView(v.center, zoom)
}

// PanBy moves the view by a pixel offset with an eased animation.
func (v *Viewport) PanBy(offset plane.Point) {
	offset = offset.Round()
	if offset.Equals(plane.Pt(0, 0)) {
		v.Events.Fire(event.Event{Type: MoveEnd, Data: ViewEvent{Center: v.center, Zoom: v.zoom}})
		return
	}
	v.Stop()
	target := v.Unproject(v.Project(v.center, v.zoom).Add(offset), v.zoom)
	target = v.limitCenter(target, v.zoom)
	if !v.loaded {
		v.resetView(target, v.zoom)
		return
	}
	v.startPanAnimation(target)
}

// Stop finishes any in-flight transition at its target, firing its end
// events, and leaves no scheduled frame callbacks behind.
func (v *Viewport) Stop() {
	if v.state == stateIdle {
		return
	}
	v.cancelFrame()
	settle := v.anim.settle
	v.anim = nil
	v.state = stateIdle
	settle()
}

// panAnimatable reports whether the pixel offset to the target center fits
// within one viewport size; larger jumps are never animated.
func (v *Viewport) panAnimatable(center geo.LatLng) bool {
	offset := v.Project(center, v.zoom).Sub(v.Project(v.center, v.zoom))
	return math.Abs(offset.X) <= v.opts.Size.X && math.Abs(offset.Y) <= v.opts.Size.Y
}

func (v *Viewport) zoomAnimatable(center geo.LatLng, zoom float64) bool {
	if !v.opts.zoomAnimated() {
		return false
	}
	if math.Abs(zoom-v.zoom) > v.opts.ZoomAnimationThreshold {
		return false
	}
	// the offset test runs at the coarser zoom so big pans reset instead
	refZoom := math.Min(zoom, v.zoom)
	offset := v.Project(center, refZoom).Sub(v.Project(v.center, refZoom))
	return math.Abs(offset.X) <= v.opts.Size.X && math.Abs(offset.Y) <= v.opts.Size.Y
}

// resetView commits a view change without animation.
func (v *Viewport) resetView(center geo.LatLng, zoom float64) {
	zoomChanged := v.loaded && zoom != v.zoom
	v.moveTo(center, zoom, true)
	v.loaded = true

	data := ViewEvent{Center: v.center, Zoom: v.zoom}
	v.Events.Fire(event.Event{Type: ViewReset, Data: data})
	if zoomChanged {
		v.Events.Fire(event.Event{Type: ZoomEnd, Data: data})
	}
	v.Events.Fire(event.Event{Type: MoveEnd, Data: data})
}

// moveTo updates center, zoom and the derived pixel origin. Settled views
// get a rounded origin; animation frames keep sub-pixel precision.
func (v *Viewport) moveTo(center geo.LatLng, zoom float64, settled bool) {
	v.center = center
	v.zoom = zoom
	v.pixelOrigin = v.newPixelOrigin(center, zoom)
	if settled {
		v.pixelOrigin = v.pixelOrigin.Round()
	}
}

// startAnimation arms the rendering-clock loop for one transition. Only
// one animation exists at a time; callers must Stop first.
func (v *Viewport) startAnimation(state animState, duration time.Duration, frame func(progress float64), settle func()) {
	v.state = state
	v.anim = &animation{duration: duration, frame: frame, settle: settle}
	v.armFrame()
}

func (v *Viewport) armFrame() {
	v.frameToken = v.clock.RequestFrame(v.onFrame)
	v.frameArmed = true
}

func (v *Viewport) cancelFrame() {
	if v.frameArmed {
		v.clock.CancelFrame(v.frameToken)
		v.frameArmed = false
	}
}

func (v *Viewport) onFrame(now time.Time) {
	v.frameArmed = false
	anim := v.anim
	if anim == nil {
		return
	}
	if !anim.started {
		anim.started = true
		anim.start = now
	}
	progress := 1.0
	if anim.duration > 0 {
		progress = mathhelp.Clamp(float64(now.Sub(anim.start))/float64(anim.duration), 0, 1)
	}
	if progress < 1 {
		anim.frame(progress)
		v.armFrame()
		return
	}
	v.anim = nil
	v.state = stateIdle
	anim.settle()
}

// easeOut is the pan easing curve; the exponent comes from EaseLinearity.
func (v *Viewport) easeOut(t float64) float64 {
	power := 1 / math.Max(v.opts.EaseLinearity, 0.2)
	return 1 - math.Pow(1-t, power)
}

func (v *Viewport) startPanAnimation(target geo.LatLng) {
	from := v.Project(v.center, v.zoom)
	to := v.Project(target, v.zoom)
	zoom := v.zoom

	v.startAnimation(statePanning, v.opts.PanDuration,
		func(progress float64) {
			p := from.Add(to.Sub(from).MulBy(v.easeOut(progress)))
			v.moveTo(v.Unproject(p, zoom), zoom, false)
			v.Events.Fire(event.Event{Type: Move, Data: ViewEvent{Center: v.center, Zoom: zoom}})
		},
		func() {
			v.moveTo(target, zoom, true)
			v.Events.Fire(event.Event{Type: MoveEnd, Data: ViewEvent{Center: v.center, Zoom: zoom}})
		})
}

func (v *Viewport) startZoomAnimation(center geo.LatLng, zoom float64) {
	startZoom := v.zoom

	v.Events.Fire(event.Event{Type: ZoomStart, Data: ViewEvent{Center: center, Zoom: zoom}})
	v.startAnimation(stateZooming, v.opts.ZoomDuration,
		func(progress float64) {
			animZoom := startZoom + (zoom-startZoom)*v.easeOut(progress)
			v.Events.Fire(event.Event{Type: ZoomAnim, Data: ZoomAnimEvent{
				Center: center,
				Zoom:   animZoom,
				Scale:  v.ZoomScale(animZoom, startZoom),
			}})
		},
		func() {
			// the new zoom commits only now; tile ranges were stable
			// for the whole animation
			v.moveTo(center, zoom, true)
			data := ViewEvent{Center: v.center, Zoom: v.zoom}
			v.Events.Fire(event.Event{Type: ViewReset, Data: data})
			v.Events.Fire(event.Event{Type: ZoomEnd, Data: data})
			v.Events.Fire(event.Event{Type: MoveEnd, Data: data})
		})
}
