package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/imgproc"
)

func runColorize(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("colorize", flag.ExitOnError)
	configPath := fs.String("config", "run.toml", "run configuration")
	weights := fs.String("weights", "", "saved .safetensors weights")
	binsPath := fs.String("bins", "pts_in_hull.npy", "ab bin centers, a [313, 2] .npy array")
	in := fs.String("in", "", "input image")
	out := fs.String("out", "colorized.png", "output PNG")
	temperature := fs.Float64("temperature", imgproc.AnnealTemperature, "annealed-mean temperature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("colorize: -in is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	bins, err := imgproc.LoadBinTable(*binsPath)
	if err != nil {
		return err
	}
	net, backend, err := loadNetwork(*weights, cfg.Model)
	if err != nil {
		return err
	}
	img, err := imgproc.Load(*in)
	if err != nil {
		return err
	}
	rgb, err := colorizer.Colorize(net, bins, img, cfg.Data.Width, cfg.Data.Height, *temperature, backend)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, rgb); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("wrote", *out)
	return nil
}
