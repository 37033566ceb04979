package tilegrid

import (
	"errors"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/kaart/tegel/geo"
)

// Config tunes one tile grid. The zero value is usable after defaults
// are applied; zoom limits default to the viewport's.
type Config struct {
	// TileSize is the edge length of one tile in pixels.
	TileSize float64 `default:"256" validate:"gt=0"`
	// MinZoom/MaxZoom restrict which levels this grid loads tiles for.
	// Unset means: follow the viewport.
	MinZoom *float64 `validate:"omitempty,gte=0"`
	MaxZoom *float64 `validate:"omitempty,gte=0"`
	// MinNativeZoom/MaxNativeZoom restrict which levels the source is
	// asked for; outside them tiles are scaled from the nearest native
	// level by the renderer, not re-requested.
	MinNativeZoom *float64 `validate:"omitempty,gte=0"`
	MaxNativeZoom *float64 `validate:"omitempty,gte=0"`
	// KeepBuffer is the ring of extra tiles around the visible range
	// that survives pruning.
	KeepBuffer int `default:"2" validate:"gte=0"`
	// UpdateWhenZooming requests tiles for intermediate (fractional)
	// zooms during an animated zoom. Off by default: the committed zoom
	// drives requests and frames only scale visually.
	UpdateWhenZooming bool
	// UpdateInterval throttles how often a moving view recomputes its
	// tile range.
	UpdateInterval time.Duration `default:"200ms" validate:"gte=0"`
	// FadeDuration is how long a freshly loaded tile fades in. An
	// explicit zero disables fading; tiles become active immediately.
	FadeDuration *time.Duration `default:"200ms"`
	// NoWrap disables horizontal wrapping even when the CRS wraps;
	// tiles outside the single world are neither requested nor shown.
	NoWrap bool
	// Bounds restricts tile loading to a geographic area.
	Bounds *geo.LatLngBounds
	// RetainUp/RetainDown bound how far the pruner walks for a loaded
	// ancestor (up) or loaded children (down) to cover a missing tile.
	RetainUp   int `default:"5" validate:"gte=0"`
	RetainDown int `default:"2" validate:"gte=0"`
}

func (c *Config) complete() error {
	err := defaults.Set(c)
	if err != nil {
		return err
	}
	err = validator.New().Struct(c)
	if err != nil {
		return err
	}
	if *c.FadeDuration < 0 {
		return errors.New("tilegrid: negative fade duration")
	}
	return nil
}

func (c *Config) fade() time.Duration {
	return *c.FadeDuration
}
