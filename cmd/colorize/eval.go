package main

import (
	"context"
	"flag"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/train"
)

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", "run.toml", "run configuration")
	weights := fs.String("weights", "", "saved .safetensors weights")
	dir := fs.String("data", "", "evaluation data directory (default: data.eval_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.Data.EvalDir
	}
	net, backend, err := loadNetwork(*weights, cfg.Model)
	if err != nil {
		return err
	}
	criterion, err := nn.BuildCriterion[Backend](cfg.Criterion.Name, cfg.Criterion.Args)
	if err != nil {
		return err
	}
	loader, err := newLoader(*dir, cfg.Data, cfg.Data.EvalBatchSize, false, cfg.Seed)
	if err != nil {
		return err
	}

	loss, err := train.Evaluate[Backend](ctx, net, criterion, loader, backend)
	if err != nil {
		return err
	}
	log.Infof("%s on %s: %s = %.6g per example", *weights, *dir, criterion.Name(), loss)
	return nil
}
