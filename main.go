package main

import (
	"fmt"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/kaart/tegel/mapslicehelp"
	"github.com/kaart/tegel/scenario"
	"github.com/kaart/tegel/tilegrid"
	"github.com/kaart/tegel/urltile"
	"github.com/kaart/tegel/view"
)

const SCENARIO string = `scenario`
const VERBOSE string = `verbose`

func init() {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
}

func main() {
	app := cli.NewApp()
	app.Name = "tegel"
	app.Usage = "A headless slippy-map tile engine: replays camera scenarios against a tile source"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     SCENARIO,
			Aliases:  []string{"c"},
			Usage:    "Scenario TOML file with view settings, a tile source and camera steps",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(SCENARIO)},
		},
		&cli.BoolFlag{
			Name:     VERBOSE,
			Aliases:  []string{"v"},
			Usage:    "Log every tile request and completion",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(VERBOSE)},
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.Bool(VERBOSE) {
			log.SetLevel(log.DebugLevel)
		}
		opts, cfg, source, steps, err := loadScenario(c.String(SCENARIO))
		if err != nil {
			return err
		}
		runner, err := scenario.NewRunner(opts, cfg, source)
		if err != nil {
			return err
		}
		report, err := runner.Run(steps)
		fmt.Print(report)
		if last := mapslicehelp.LastElement(report.Steps); last != nil {
			log.WithFields(log.Fields{
				"center": last.Center.String(),
				"zoom":   last.Zoom,
				"tiles":  last.Tiles,
			}).Info("scenario finished")
		}
		return err
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func loadScenario(path string) (view.Options, tilegrid.Config, func(post func(func())) (tilegrid.Source, error), []scenario.Step, error) {
	var opts view.Options
	var cfg tilegrid.Config

	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		return opts, cfg, nil, nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	viper.SetDefault("view.crs", "WebMercatorQuad")
	viper.SetDefault("view.width", 800)
	viper.SetDefault("view.height", 600)
	viper.SetDefault("view.minzoom", 0)
	viper.SetDefault("view.maxzoom", 19)

	opts, err = scenario.ViewOptions(
		viper.GetString("view.crs"),
		viper.GetFloat64("view.width"), viper.GetFloat64("view.height"),
		viper.GetFloat64("view.minzoom"), viper.GetFloat64("view.maxzoom"),
	)
	if err != nil {
		return opts, cfg, nil, nil, err
	}

	cfg.NoWrap = viper.GetBool("grid.nowrap")
	if viper.IsSet("grid.tilesize") {
		cfg.TileSize = viper.GetFloat64("grid.tilesize")
	}
	if viper.IsSet("grid.keepbuffer") {
		buf := viper.GetInt("grid.keepbuffer")
		cfg.KeepBuffer = buf
	}

	var steps []scenario.Step
	err = viper.UnmarshalKey("steps", &steps)
	if err != nil {
		return opts, cfg, nil, nil, err
	}
	if len(steps) == 0 {
		return opts, cfg, nil, nil, fmt.Errorf("scenario %s has no steps", path)
	}

	url := viper.GetString("source.url")
	source := func(post func(func())) (tilegrid.Source, error) {
		if url == "" {
			// no server configured: every tile completes empty, which
			// still exercises the full grid lifecycle
			return tilegrid.SourceFunc(func(key tilegrid.TileKey, done func(tilegrid.Handle, error)) func() {
				post(func() { done(tilegrid.NopHandle{}, nil) })
				return func() {}
			}), nil
		}
		ucfg := urltile.Config{
			URL:    url,
			TMS:    viper.GetBool("source.tms"),
			Retina: viper.GetBool("source.retina"),
			Post:   post,
		}
		if subs := viper.GetStringSlice("source.subdomains"); len(subs) > 0 {
			ucfg.Subdomains = subs
		}
		return urltile.New(ucfg)
	}
	return opts, cfg, source, steps, nil
}
