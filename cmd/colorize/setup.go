package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/autodiff"
	"github.com/born-ml/colorize/internal/backend/cpu"
	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/config"
	"github.com/born-ml/colorize/internal/dataset"
	"github.com/born-ml/colorize/internal/serialization"
)

// modelMetaKey holds the TOML encoded network config in saved weights.
const modelMetaKey = "model"

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.SetDebugVisible(cfg.LogLevel)
	return cfg, nil
}

func newNetwork(cfg colorizer.Config) (*colorizer.Network[Backend], Backend, error) {
	backend := autodiff.New(cpu.New())
	net, err := colorizer.NewNetwork(cfg, backend)
	if err != nil {
		return nil, nil, err
	}
	log.Lvlf2("network: %d parameters\n%s", net.NumParameters(), net)
	return net, backend, nil
}

// loadNetwork builds a network from saved weights. The network config stored
// with the weights takes precedence over cfg.
func loadNetwork(path string, cfg colorizer.Config) (*colorizer.Network[Backend], Backend, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if meta, ok := f.Metadata[modelMetaKey]; ok {
		if _, err := toml.Decode(meta, &cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: model metadata: %w", path, err)
		}
	}
	net, backend, err := newNetwork(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := net.LoadStateDict(f.Tensors); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Lvlf1("loaded %s (%s)", path, f.Metadata["eval_loss"])
	return net, backend, nil
}

func newLoader(dir string, data config.Data, batchSize int, shuffle bool, seed int64) (*dataset.Loader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory not set", config.ErrInvalid)
	}
	src, err := dataset.NewFolderSource(dir, dataset.FolderOptions{
		GrayPrefix:   data.GrayPrefix,
		BucketPrefix: data.BucketPrefix,
		Width:        data.Width,
		Height:       data.Height,
	})
	if err != nil {
		return nil, err
	}
	return dataset.NewLoader(src, dataset.LoaderConfig{
		BatchSize: batchSize,
		Shuffle:   shuffle,
		Workers:   data.Workers,
		Seed:      seed,
	})
}
