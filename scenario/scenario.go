// Package scenario replays a scripted camera path against a tile grid
// and reports what the grid did: tiles requested, pruned, still in
// flight. It drives the engine on a manual clock, so runs are
// deterministic and need no display.
package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	log "github.com/sirupsen/logrus"

	"github.com/kaart/tegel/crs"
	"github.com/kaart/tegel/event"
	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/plane"
	"github.com/kaart/tegel/tilegrid"
	"github.com/kaart/tegel/view"
)

// Step is one scripted camera operation.
type Step struct {
	// Op is one of setview, panby, zoomto, flyto, wait.
	Op   string  `mapstructure:"op"`
	Lat  float64 `mapstructure:"lat"`
	Lng  float64 `mapstructure:"lng"`
	Zoom float64 `mapstructure:"zoom"`
	Dx   float64 `mapstructure:"dx"`
	Dy   float64 `mapstructure:"dy"`
	// Ms is the wait duration for op=wait.
	Ms int `mapstructure:"ms"`
}

// StepReport summarizes the grid after one step settled.
type StepReport struct {
	Step     Step
	Center   geo.LatLng
	Zoom     float64
	Tiles    int
	Active   int
	Loading  int
	Requests int
	Unloads  int
	Errors   int
}

type Report struct {
	Steps []StepReport
}

// String renders one line per step, truncated to a terminal width.
func (r Report) String() string {
	var b strings.Builder
	for i, s := range r.Steps {
		line := fmt.Sprintf("%2d %-8s center=%s zoom=%.2f tiles=%d active=%d loading=%d requests=%d unloads=%d errors=%d",
			i+1, s.Step.Op, s.Center, s.Zoom, s.Tiles, s.Active, s.Loading, s.Requests, s.Unloads, s.Errors)
		b.WriteString(truncate.StringWithTail(line, 120, "…"))
		b.WriteByte('\n')
	}
	return b.String()
}

// Runner owns the engine loop for one scripted run. Completions posted
// by asynchronous sources are replayed between clock steps, so source
// callbacks always run interleaved with the engine, never concurrently.
type Runner struct {
	clock *view.ManualClock
	vp    *view.Viewport
	grid  *tilegrid.Grid
	posts chan func()

	requests int
	unloads  int
	errors   int
}

func NewRunner(opts view.Options, cfg tilegrid.Config, source func(post func(func())) (tilegrid.Source, error)) (*Runner, error) {
	r := &Runner{
		clock: view.NewManualClock(time.Now()),
		posts: make(chan func(), 1024),
	}
	vp, err := view.NewViewport(r.clock, opts)
	if err != nil {
		return nil, err
	}
	r.vp = vp

	src, err := source(r.Post)
	if err != nil {
		return nil, err
	}
	grid, err := tilegrid.NewGrid(vp, src, cfg)
	if err != nil {
		return nil, err
	}
	r.grid = grid

	grid.Events.On(tilegrid.TileLoadStart, func(event.Event) { r.requests++ })
	grid.Events.On(tilegrid.TileUnload, func(event.Event) { r.unloads++ })
	grid.Events.On(tilegrid.TileError, func(e event.Event) {
		r.errors++
		data := e.Data.(tilegrid.TileEvent)
		log.WithError(data.Err).WithField("tile", data.Key.String()).Warn("tile failed")
	})
	return r, nil
}

// Post schedules a source completion on the engine loop.
func (r *Runner) Post(f func()) {
	r.posts <- f
}

func (r *Runner) Viewport() *view.Viewport { return r.vp }
func (r *Runner) Grid() *tilegrid.Grid     { return r.grid }

// Run executes the steps in order, settling the engine after each one.
func (r *Runner) Run(steps []Step) (Report, error) {
	var report Report
	for _, step := range steps {
		err := r.apply(step)
		if err != nil {
			return report, err
		}
		r.settle()
		if err := r.grid.Err(); err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, StepReport{
			Step:     step,
			Center:   r.vp.Center(),
			Zoom:     r.vp.Zoom(),
			Tiles:    r.grid.TileCount(),
			Active:   r.grid.ActiveCount(),
			Loading:  r.grid.LoadingCount(),
			Requests: r.requests,
			Unloads:  r.unloads,
			Errors:   r.errors,
		})
	}
	return report, nil
}

func (r *Runner) apply(step Step) error {
	switch strings.ToLower(step.Op) {
	case "setview":
		r.vp.SetView(geo.LL(step.Lat, step.Lng), step.Zoom)
	case "panby":
		r.vp.PanBy(plane.Pt(step.Dx, step.Dy))
	case "zoomto":
		r.vp.ZoomTo(step.Zoom)
	case "flyto":
		r.vp.FlyTo(geo.LL(step.Lat, step.Lng), step.Zoom)
	case "wait":
		r.stepFor(time.Duration(step.Ms) * time.Millisecond)
	case "":
		return fmt.Errorf("scenario: step without an op")
	default:
		return fmt.Errorf("scenario: unknown op %q", step.Op)
	}
	return nil
}

const frameInterval = 16 * time.Millisecond

// settle pumps frames and completions until the view stops animating and
// no tile requests are outstanding. Sources that never complete (dead
// servers) are bounded by the iteration cap, not waited on forever.
func (r *Runner) settle() {
	for i := 0; i < 4096; i++ {
		busy := r.drainPosts()
		if r.clock.Pending() > 0 {
			r.clock.Step(frameInterval)
			busy = true
		}
		if !busy && !r.vp.Animating() && r.grid.LoadingCount() == 0 {
			return
		}
		if !busy && r.clock.Pending() == 0 && r.grid.LoadingCount() > 0 {
			// nothing to pump; give a slow source a moment
			select {
			case f := <-r.posts:
				f()
			case <-time.After(250 * time.Millisecond):
				log.WithField("loading", r.grid.LoadingCount()).
					Warn("giving up waiting for tile completions")
				return
			}
		}
	}
}

func (r *Runner) stepFor(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += frameInterval {
		r.clock.Step(frameInterval)
		r.drainPosts()
	}
}

func (r *Runner) drainPosts() bool {
	any := false
	for {
		select {
		case f := <-r.posts:
			f()
			any = true
		default:
			return any
		}
	}
}

// ViewOptions builds viewport options from scenario settings, loading
// the CRS by its embedded definition name.
func ViewOptions(crsName string, width, height float64, minZoom, maxZoom float64) (view.Options, error) {
	c, err := crs.LoadEmbeddedDefinition(crsName)
	if err != nil {
		return view.Options{}, err
	}
	return view.Options{
		CRS:     c,
		Size:    plane.Pt(width, height),
		MinZoom: minZoom,
		MaxZoom: maxZoom,
	}, nil
}
