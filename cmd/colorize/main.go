// Command colorize trains and runs the image colorization network.
//
// Usage:
//
//	colorize train    -config run.toml
//	colorize eval     -config run.toml -weights out/colorizer_best.safetensors
//	colorize colorize -config run.toml -weights out/colorizer_best.safetensors -bins pts_in_hull.npy -in gray.png -out color.png
//	colorize prepare  -bins pts_in_hull.npy -in photos/ -out data/train -size 256
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/autodiff"
	"github.com/born-ml/colorize/internal/backend/cpu"
)

const version = "v0.1.0"

// Backend is the CPU backend with gradient recording.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"train", "train a network and save the best snapshot", runTrain},
	{"eval", "evaluate saved weights on the evaluation data", runEval},
	{"colorize", "colorize a grayscale image", runColorize},
	{"prepare", "build a gray/bucket dataset from color images", runPrepare},
}

func usage() {
	fmt.Fprintf(os.Stderr, "colorize %s\n\nCommands:\n", version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "version", "show version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Printf("colorize %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, c := range commands {
		if c.name == os.Args[1] {
			log.ErrFatal(c.run(ctx, os.Args[2:]), c.name)
			return
		}
	}
	usage()
	os.Exit(2)
}
