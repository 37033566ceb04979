package view

import (
	"math"
	"time"

	"github.com/kaart/tegel/event"
	"github.com/kaart/tegel/geo"
)

// FlyTo animates to a target with a curved flight path that zooms out
// over long distances and back in on arrival. Center and zoom move
// together each frame, so tiles keep loading along the way.
//
// The path follows van Wijk & Nuij, "Smooth and efficient zooming and
// panning": movement along the pixel line between start and target is
// coupled to zoom through a hyperbolic arc with curvature rho.
func (v *Viewport) FlyTo(center geo.LatLng, zoom float64) {
	zoom = v.clampZoom(zoom)
	center = v.limitCenter(v.opts.CRS.WrapLatLng(center), zoom)
	v.Stop()

	if !v.loaded {
		v.resetView(center, zoom)
		return
	}

	size := v.opts.Size
	startZoom := v.zoom
	from := v.Project(v.center, startZoom)
	to := v.Project(center, startZoom)

	w0 := math.Max(size.X, size.Y)
	w1 := w0 / v.ZoomScale(zoom, startZoom)
	u1 := to.DistanceTo(from)
	if u1 == 0 {
		// straight vertical flight; the hyperbolic form degenerates
		u1 = 1e-9
	}

	rho := v.opts.FlyRho
	rho2 := rho * rho

	r := func(i int) float64 {
		w := w0
		if i == 1 {
			w = w1
		}
		b := (w1*w1 - w0*w0 + float64(1-2*i)*rho2*rho2*u1*u1) /
			(2 * w * rho2 * u1)
		sq := math.Sqrt(b*b+1) - b
		if sq < 1e-9 {
			// log would explode on cancellation noise
			return -18
		}
		return math.Log(sq)
	}

	r0 := r(0)
	// u is the pixel distance travelled at flight parameter s, w the
	// visible span; together they give center and zoom per frame.
	u := func(s float64) float64 {
		return w0 * (math.Cosh(r0)*math.Tanh(r0+rho*s) - math.Sinh(r0)) / rho2
	}
	w := func(s float64) float64 {
		return w0 * math.Cosh(r0) / math.Cosh(r0+rho*s)
	}

	sEnd := (r(1) - r0) / rho

	duration := v.opts.FlyDuration
	if duration == 0 {
		duration = time.Duration(1000*sEnd*0.8) * time.Millisecond
		if duration < 0 {
			duration = 250 * time.Millisecond
		}
	}

	v.Events.Fire(event.Event{Type: ZoomStart, Data: ViewEvent{Center: center, Zoom: zoom}})
	v.startAnimation(stateFlying, duration,
		func(progress float64) {
			s := v.easeOut(progress) * sEnd
			frameZoom := v.ScaleZoom(w0/w(s), startZoom)
			frameCenter := v.Unproject(from.Add(to.Sub(from).MulBy(u(s)/u1)), startZoom)
			v.moveTo(frameCenter, frameZoom, false)
			data := ViewEvent{Center: v.center, Zoom: v.zoom}
			v.Events.Fire(event.Event{Type: Move, Data: data})
			v.Events.Fire(event.Event{Type: ZoomAnim, Data: ZoomAnimEvent{
				Center: frameCenter,
				Zoom:   frameZoom,
				Scale:  v.ZoomScale(frameZoom, startZoom),
			}})
		},
		func() {
			v.moveTo(center, zoom, true)
			data := ViewEvent{Center: v.center, Zoom: v.zoom}
			v.Events.Fire(event.Event{Type: ViewReset, Data: data})
			v.Events.Fire(event.Event{Type: ZoomEnd, Data: data})
			v.Events.Fire(event.Event{Type: MoveEnd, Data: data})
		})
}
