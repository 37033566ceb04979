package view

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/kaart/tegel/crs"
	"github.com/kaart/tegel/geo"
	"github.com/kaart/tegel/plane"
)

// Options configures a Viewport. Build one with plain literals; NewViewport
// fills the defaults and validates.
type Options struct {
	CRS *crs.CRS `validate:"required"`
	// Size is the viewport size in pixels.
	Size plane.Point `validate:"required"`

	MinZoom float64 `validate:"gte=0"`
	MaxZoom float64 `default:"18" validate:"gtefield=MinZoom"`
	// ZoomSnap is the step settled zooms are snapped to, 0 for free zoom.
	ZoomSnap float64 `default:"1" validate:"gte=0"`
	// MaxBounds restricts where the view center can go; the viewport is
	// kept inside the projected rectangle.
	MaxBounds *geo.LatLngBounds

	// ZoomAnimation enables animated zoom transitions up to
	// ZoomAnimationThreshold levels of difference.
	ZoomAnimation          *bool         `default:"true"`
	ZoomAnimationThreshold float64       `default:"4" validate:"gt=0"`
	ZoomDuration           time.Duration `default:"250ms" validate:"gt=0"`

	PanDuration time.Duration `default:"250ms" validate:"gt=0"`
	// EaseLinearity tunes the pan ease-out curve; the exponent is
	// 1/max(EaseLinearity, 0.2).
	EaseLinearity float64 `default:"0.25" validate:"gt=0"`

	// FlyDuration fixes the fly-to duration; 0 derives it from the
	// flight path length.
	FlyDuration time.Duration `validate:"gte=0"`
	// FlyRho is the fly-to damping constant.
	FlyRho float64 `default:"1.42" validate:"gt=0"`
}

func (o *Options) complete() error {
	err := defaults.Set(o)
	if err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	err = validate.Struct(o)
	if err != nil {
		return fmt.Errorf("invalid viewport options: %w", err)
	}
	return nil
}

func (o *Options) zoomAnimated() bool {
	return o.ZoomAnimation == nil || *o.ZoomAnimation
}
