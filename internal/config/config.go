// Package config loads the TOML run configuration shared by the
// colorize subcommands.
//
// A minimal file:
//
//	name = "colorizer"
//	output_dir = "out"
//	epochs = 20
//
//	[data]
//	train_dir = "data/train"
//	eval_dir = "data/eval"
//	batch_size = 8
//
//	[model]
//	dropout_layers = [0, 0, 0, 0, 0.2, 0.2, 0, 0, 0, 0]
//	channel_multiplier = 1
//
//	[optimizer]
//	name = "Adam"
//	[optimizer.args]
//	lr = 3e-4
//
//	[criterion]
//	name = "MultinomialCrossEntropyLoss"
package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/kwargs"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/optim"
)

// ErrInvalid is returned for configurations that fail validation.
var ErrInvalid = errors.New("invalid config")

// Config is a complete run configuration.
type Config struct {
	// Name prefixes the output files (<name>_best.safetensors, <name>_loss.png).
	Name      string `toml:"name"`
	OutputDir string `toml:"output_dir"`
	Seed      int64  `toml:"seed"`
	Epochs    int    `toml:"epochs"`
	// LogLevel is the onet/log debug visibility (0 to 5).
	LogLevel int `toml:"log_level"`

	Data      Data             `toml:"data"`
	Model     colorizer.Config `toml:"model"`
	Optimizer Component        `toml:"optimizer"`
	Criterion Component        `toml:"criterion"`
	Dashboard Dashboard        `toml:"dashboard"`
}

// Data describes the training and evaluation folders.
type Data struct {
	TrainDir      string `toml:"train_dir"`
	EvalDir       string `toml:"eval_dir"`
	BatchSize     int    `toml:"batch_size"`
	EvalBatchSize int    `toml:"eval_batch_size"`
	// Workers loading samples in parallel, 0 for one per CPU.
	Workers      int    `toml:"workers"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	Shuffle      bool   `toml:"shuffle"`
	GrayPrefix   string `toml:"gray_prefix"`
	BucketPrefix string `toml:"bucket_prefix"`
}

// Component selects a factory entry by name with keyword arguments.
type Component struct {
	Name string      `toml:"name"`
	Args kwargs.Args `toml:"args"`
}

// Dashboard configures the optional HTTP dashboard. An empty Addr disables it.
type Dashboard struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used for keys absent from a file.
func Default() Config {
	return Config{
		Name:      "colorizer",
		OutputDir: "out",
		Epochs:    10,
		LogLevel:  1,
		Data: Data{
			BatchSize:     8,
			EvalBatchSize: 8,
			Width:         256,
			Height:        256,
			Shuffle:       true,
			GrayPrefix:    "gray",
			BucketPrefix:  "bucket",
		},
		Model:     colorizer.DefaultConfig(),
		Optimizer: Component{Name: "Adam"},
		Criterion: Component{Name: "MultinomialCrossEntropyLoss"},
	}
}

// Load reads the TOML file at path over Default and validates the result.
// Unknown keys are rejected. The model seed follows the top-level seed
// unless [model] sets its own.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			// Keyword arguments are checked by the factories.
			if len(k) > 1 && (k[0] == "optimizer" || k[0] == "criterion") && k[1] == "args" {
				continue
			}
			keys = append(keys, k.String())
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			return nil, fmt.Errorf("config %s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
		}
	}
	if !md.IsDefined("model", "seed") {
		cfg.Model.Seed = cfg.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fields shared by every subcommand. Data directories
// are checked by the subcommands that need them.
func (c *Config) Validate() error {
	if c.Name == "" || strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("%w: name %q must be a non-empty file name", ErrInvalid, c.Name)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is empty", ErrInvalid)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be >= 1, got %d", ErrInvalid, c.Epochs)
	}
	if c.LogLevel < 0 || c.LogLevel > 5 {
		return fmt.Errorf("%w: log_level must be in [0, 5], got %d", ErrInvalid, c.LogLevel)
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if !slices.Contains(optim.Names(), c.Optimizer.Name) {
		return fmt.Errorf("%w: optimizer %q (known: %s)", ErrInvalid, c.Optimizer.Name, strings.Join(optim.Names(), ", "))
	}
	if !slices.Contains(nn.CriterionNames(), c.Criterion.Name) {
		return fmt.Errorf("%w: criterion %q (known: %s)", ErrInvalid, c.Criterion.Name, strings.Join(nn.CriterionNames(), ", "))
	}
	return nil
}

func (d *Data) validate() error {
	if d.BatchSize < 1 || d.EvalBatchSize < 1 {
		return fmt.Errorf("%w: batch sizes must be >= 1, got %d and %d", ErrInvalid, d.BatchSize, d.EvalBatchSize)
	}
	if d.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, d.Workers)
	}
	if err := colorizer.CheckInput([]int{1, 1, d.Height, d.Width}); err != nil {
		return fmt.Errorf("%w: data size %dx%d: %w", ErrInvalid, d.Width, d.Height, err)
	}
	if d.GrayPrefix == "" || d.BucketPrefix == "" {
		return fmt.Errorf("%w: gray_prefix and bucket_prefix must be set", ErrInvalid)
	}
	return nil
}
