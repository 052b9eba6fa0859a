package main

import (
	"context"
	"flag"
	"fmt"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/dataset"
	"github.com/born-ml/colorize/internal/imgproc"
)

func runPrepare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	binsPath := fs.String("bins", "pts_in_hull.npy", "ab bin centers, a [K, 2] .npy array")
	in := fs.String("in", "", "directory of color images")
	out := fs.String("out", "", "dataset directory to create")
	size := fs.Int("size", 256, "square output size, 0 keeps the original size")
	workers := fs.Int("workers", 0, "parallel conversions (0: one per CPU)")
	debug := fs.Int("debug", 1, "debug logging level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("prepare: -in and -out are required")
	}
	log.SetDebugVisible(*debug)

	bins, err := imgproc.LoadBinTable(*binsPath)
	if err != nil {
		return err
	}
	n, err := dataset.Prepare(ctx, *in, *out, bins, dataset.PrepareOptions{
		Width:   *size,
		Height:  *size,
		Workers: *workers,
	})
	if err != nil {
		return err
	}
	log.Infof("%d images from %s written to %s", n, *in, *out)
	return nil
}
