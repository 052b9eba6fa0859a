package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/dashboard"
	"github.com/born-ml/colorize/internal/metrics"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/optim"
	"github.com/born-ml/colorize/internal/serialization"
	"github.com/born-ml/colorize/internal/train"
)

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "run.toml", "run configuration")
	epochs := fs.Int("epochs", 0, "override the configured number of epochs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}

	net, backend, err := newNetwork(cfg.Model)
	if err != nil {
		return err
	}
	optimizer, err := optim.Build(cfg.Optimizer.Name, cfg.Optimizer.Args, net.Parameters())
	if err != nil {
		return err
	}
	criterion, err := nn.BuildCriterion[Backend](cfg.Criterion.Name, cfg.Criterion.Args)
	if err != nil {
		return err
	}
	trainLoader, err := newLoader(cfg.Data.TrainDir, cfg.Data, cfg.Data.BatchSize, cfg.Data.Shuffle, cfg.Seed)
	if err != nil {
		return err
	}
	evalLoader, err := newLoader(cfg.Data.EvalDir, cfg.Data, cfg.Data.EvalBatchSize, false, cfg.Seed)
	if err != nil {
		return err
	}

	logger := metrics.NewLogger()
	if cfg.Dashboard.Addr != "" {
		go func() {
			if err := dashboard.New(cfg.Name, logger).ListenAndServe(ctx, cfg.Dashboard.Addr); err != nil {
				log.Error("dashboard:", err)
			}
		}()
	}

	log.Infof("training %s: %d epochs, %d train / %d eval batches, %s, %s",
		cfg.Name, cfg.Epochs, trainLoader.Len(), evalLoader.Len(), cfg.Optimizer.Name, criterion.Name())
	result, trainErr := train.Train[Backend](ctx, net, optimizer, criterion, trainLoader, evalLoader, backend,
		train.Options{Epochs: cfg.Epochs, Logger: logger, Progress: os.Stderr})

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return errors.Join(trainErr, err)
	}
	if plotPath, err := logger.SavePlot(cfg.OutputDir, cfg.Name); err == nil {
		log.Info("loss plot:", plotPath)
	} else if !errors.Is(err, metrics.ErrEmpty) {
		log.Warn("loss plot:", err)
	}
	if result != nil && result.BestModel != nil {
		if err := saveBest(cfg.OutputDir, cfg.Name, cfg.Model, result); err != nil {
			return errors.Join(trainErr, err)
		}
	}
	if trainErr != nil {
		return trainErr
	}

	if s, err := logger.TrainSummary(); err == nil {
		log.Info("train loss:", s)
	}
	if s, err := logger.EvalSummary(); err == nil {
		log.Info("eval loss:", s)
	}
	if result.BestModel == nil {
		log.Warn("no epoch produced a finite evaluation loss, nothing saved")
	}
	return nil
}

// saveBest writes <dir>/<name>_best.safetensors with the network config
// and the best evaluation loss as metadata.
func saveBest(dir, name string, model colorizer.Config, result *train.Result) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(model); err != nil {
		return err
	}
	path := filepath.Join(dir, name+"_best.safetensors")
	meta := map[string]string{
		"eval_loss":  strconv.FormatFloat(result.BestEvalLoss, 'g', -1, 64),
		"epoch":      strconv.Itoa(result.BestEpoch),
		modelMetaKey: sb.String(),
	}
	if err := serialization.WriteFile(path, result.BestModel, meta); err != nil {
		return err
	}
	log.Infof("best model (epoch %d, eval loss %.5g): %s", result.BestEpoch, result.BestEvalLoss, path)
	return nil
}
