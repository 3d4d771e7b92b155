package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/urfave/cli"

	"github.com/IvanBrykalov/mapgen/store"
)

func runQuery(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	if c.NArg() != 2 {
		return fmt.Errorf("expected LON LAT, got %d arguments", c.NArg())
	}
	lon, err := strconv.ParseFloat(c.Args().Get(0), 64)
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(c.Args().Get(1), 64)
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}

	tiles, closer, err := openTiles(m, nil)
	if err != nil {
		return err
	}
	defer closer()

	near, err := tiles.NodesNear(context.Background(), orb.Point{lon, lat}, c.Float64("radius"))
	if err != nil {
		return err
	}
	for _, n := range near {
		fmt.Fprintf(m.w, "%d/%d\t%.6f,%.6f\theading=%.0f\tweight=%d\tedges=%d\t%.1fm\n",
			n.Ref.Tile, n.Ref.Node, n.Node.Pos.Lon(), n.Node.Pos.Lat(),
			n.Node.Heading, n.Node.Weight, len(n.Node.Edges), n.Distance)
	}
	m.log.Debug("query done", "nodes", len(near))
	return nil
}

func runIDs(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	ctx := context.Background()

	blobs, err := store.Open(m.config.Store.Driver, m.config.Store.Location)
	if err != nil {
		return err
	}
	defer blobs.Close()

	ids, err := blobs.IDs(ctx)
	if err != nil {
		return err
	}
	sizer, _ := blobs.(store.Sizer)
	var total int64
	for _, id := range ids {
		if sizer == nil {
			fmt.Fprintln(m.w, id)
			continue
		}
		n, err := sizer.Size(ctx, id)
		if err != nil {
			return err
		}
		total += n
		fmt.Fprintf(m.w, "%d\t%s\n", id, humanize.IBytes(uint64(n)))
	}
	if sizer != nil {
		fmt.Fprintf(m.w, "%d tiles, %s\n", len(ids), humanize.IBytes(uint64(total)))
	}
	return nil
}

func runDrivers(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	for _, d := range store.Drivers() {
		fmt.Fprintln(m.w, d)
	}
	return nil
}
