// Package urltile loads tiles over HTTP from a {z}/{x}/{y} URL
// template. Fetches run on their own goroutines; completions are handed
// back to the engine's goroutine through the configured Post function.
// Fetched tiles are kept in an in-memory cache so revisited areas do not
// hit the network again.
package urltile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/kaart/tegel/mathhelp"
	"github.com/kaart/tegel/tilegrid"
)

type Config struct {
	// URL is the tile URL template. Placeholders: {z} {x} {y} {s} {r}.
	URL string `validate:"required"`
	// Subdomains fill {s}, spread per tile so neighbouring tiles hit
	// different hosts.
	Subdomains []string `default:"[\"a\",\"b\",\"c\"]"`
	// Retina fills {r} with @2x when set.
	Retina bool
	// TMS flips the y coordinate for servers counting rows from the
	// south.
	TMS bool
	// ZoomOffset shifts the {z} value sent to the server.
	ZoomOffset int
	// Post schedules a function on the engine's goroutine. Required:
	// tile completions must not run concurrently with the grid.
	Post func(func()) `validate:"required"`

	// CacheBytes bounds the in-memory tile cache.
	CacheBytes int64 `default:"67108864" validate:"gt=0"`
	// Timeout bounds one tile fetch.
	Timeout time.Duration `default:"10s" validate:"gt=0"`

	// Client overrides the HTTP client, for tests and custom transports.
	Client *http.Client
}

// TileData is the fetched tile payload. Release is a no-op; the cache
// owns the bytes.
type TileData struct {
	Bytes []byte
}

func (TileData) Release() {}

// Source loads tiles from a URL template. Safe to share between grids
// that post to the same goroutine.
type Source struct {
	cfg    Config
	client *http.Client
	cache  *ristretto.Cache[string, []byte]
}

func New(cfg Config) (*Source, error) {
	err := defaults.Set(&cfg)
	if err != nil {
		return nil, err
	}
	err = validator.New().Struct(&cfg)
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.CacheBytes / 1024 * 10,
		MaxCost:     cfg.CacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Source{cfg: cfg, client: client, cache: cache}, nil
}

// Close releases the cache.
func (s *Source) Close() {
	s.cache.Close()
}

// TileURL expands the template for one tile.
func (s *Source) TileURL(key tilegrid.TileKey) string {
	y := key.Y
	if s.cfg.TMS {
		y = int(mathhelp.Pow2(uint(key.Z))) - 1 - y
	}
	retina := ""
	if s.cfg.Retina {
		retina = "@2x"
	}
	sub := ""
	if len(s.cfg.Subdomains) > 0 {
		sub = s.cfg.Subdomains[mathhelp.EuclidianMod(key.X+key.Y, len(s.cfg.Subdomains))]
	}
	return strings.NewReplacer(
		"{z}", strconv.Itoa(key.Z+s.cfg.ZoomOffset),
		"{x}", strconv.Itoa(key.X),
		"{y}", strconv.Itoa(y),
		"{s}", sub,
		"{r}", retina,
	).Replace(s.cfg.URL)
}

// Load implements tilegrid.Source. The fetch runs on its own goroutine;
// done is invoked via Post. Abort cancels the request, though a
// response that already arrived is still delivered and cached.
func (s *Source) Load(key tilegrid.TileKey, done func(tilegrid.Handle, error)) (abort func()) {
	url := s.TileURL(key)
	if data, ok := s.cache.Get(url); ok {
		s.cfg.Post(func() { done(TileData{Bytes: data}, nil) })
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		data, err := s.fetch(ctx, url)
		if err == nil {
			s.cache.Set(url, data, int64(len(data)))
			s.cache.Wait()
		} else {
			log.WithError(err).WithField("url", url).Debug("tile fetch failed")
		}
		s.cfg.Post(func() {
			cancel()
			if err != nil {
				done(nil, err)
				return
			}
			done(TileData{Bytes: data}, nil)
		})
	}()
	return cancel
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("urltile: %s returned %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
