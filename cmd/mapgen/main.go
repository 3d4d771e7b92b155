// Command mapgen builds and queries a tiled road network from GPS fixes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli"

	"github.com/IvanBrykalov/mapgen/cache"
	"github.com/IvanBrykalov/mapgen/config"
	"github.com/IvanBrykalov/mapgen/store"
	_ "github.com/IvanBrykalov/mapgen/store/ldbstore"
	_ "github.com/IvanBrykalov/mapgen/store/memstore"
	_ "github.com/IvanBrykalov/mapgen/store/pebblestore"
	_ "github.com/IvanBrykalov/mapgen/store/sqlstore"
	"github.com/IvanBrykalov/mapgen/tile"
)

type metadata struct {
	config *config.Config
	log    *log.Logger
	w      io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "mapgen"
	app.Usage = "build a road network from GPS fixes"
	app.Version = version

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Value:  "",
			Usage:  " configuration `FILE` (yaml, toml or json)",
			EnvVar: "MAPGEN_CONFIG",
		},
		cli.StringFlag{
			Name:  "driver, d",
			Value: "",
			Usage: " override the store `DRIVER` [memory|leveldb|pebble|sqlite]",
		},
		cli.StringFlag{
			Name:  "location, l",
			Value: "",
			Usage: " override the store `PATH`",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " debug logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "bench",
			Usage: "feed synthetic vehicle traces into the network",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "vehicles, n",
					Value: 8,
					Usage: " concurrent vehicles `COUNT`",
				},
				cli.DurationFlag{
					Name:  "duration, t",
					Value: 0,
					Usage: " stop after `DURATION` (0 = until all steps are done)",
				},
				cli.IntFlag{
					Name:  "steps, s",
					Value: 10_000,
					Usage: " fixes per vehicle `COUNT`",
				},
				cli.Float64Flag{
					Name:  "rate, r",
					Value: 0,
					Usage: " max fixes per second over all vehicles `RATE` (0 = unlimited)",
				},
				cli.StringFlag{
					Name:  "http",
					Value: "",
					Usage: " serve Prometheus metrics at `ADDR` (e.g. :8080)",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: " random `SEED`",
				},
			},
			Action: runBench,
		},
		{
			Name:      "query",
			Usage:     "list nodes near a position",
			ArgsUsage: "LON LAT",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "radius, r",
					Value: 100,
					Usage: " search radius in `METERS`",
				},
			},
			Action: runQuery,
		},
		{
			Name:   "ids",
			Usage:  "list the stored tiles",
			Action: runIDs,
		},
		{
			Name:   "drivers",
			Usage:  "list the available store drivers",
			Action: runDrivers,
		},
	}

	app.Before = func(c *cli.Context) error {
		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}
		if d := c.GlobalString("driver"); d != "" {
			cfg.Store.Driver = d
		}
		if l := c.GlobalString("location"); l != "" {
			cfg.Store.Location = l
		}
		if c.GlobalBool("verbose") {
			cfg.Log.Level = "debug"
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		c.App.Metadata["config"] = &metadata{
			config: cfg,
			log:    cfg.Log.Logger(c.App.ErrWriter),
			w:      c.App.Writer,
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

// openTiles opens the configured store and the tile cache over it. Closing
// the returned cache writes back pending tiles; the store is closed after.
func openTiles(m *metadata, metrics cache.Metrics) (*tile.Cache, func() error, error) {
	blobs, err := store.Open(m.config.Store.Driver, m.config.Store.Location)
	if err != nil {
		return nil, nil, err
	}
	grid, err := tile.NewGrid(m.config.Tiles.Size)
	if err != nil {
		blobs.Close()
		return nil, nil, err
	}
	opt := config.CacheOptions[tile.TileID, *tile.Tile](m.config.Cache, m.log, metrics)
	tiles := tile.NewCache(grid, m.config.Tiles.MaxDepth, tile.NewStore(blobs), opt)
	closer := func() error {
		err := tiles.Close()
		if cerr := blobs.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return tiles, closer, nil
}
