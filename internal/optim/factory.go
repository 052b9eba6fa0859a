package optim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/colorize/internal/kwargs"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// ErrUnknownOptimizer is returned by Build for unsupported names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Names lists the names accepted by Build, sorted.
func Names() []string {
	names := []string{"SGD", "Adam"}
	sort.Strings(names)
	return names
}

// Build constructs an optimizer by name over params.
//
// Accepted arguments (PyTorch names):
//   - SGD: lr, momentum, dampening, weight_decay, nesterov
//   - Adam: lr, betas (two numbers), eps, weight_decay
func Build[B tensor.Backend](name string, args kwargs.Args, params []*nn.Parameter[B]) (Optimizer, error) {
	constructors := map[string]func(kwargs.Args) (Optimizer, error){
		"SGD": func(args kwargs.Args) (Optimizer, error) {
			cfg, err := sgdConfig(args)
			if err != nil {
				return nil, err
			}
			return NewSGD(params, cfg), nil
		},
		"Adam": func(args kwargs.Args) (Optimizer, error) {
			cfg, err := adamConfig(args)
			if err != nil {
				return nil, err
			}
			return NewAdam(params, cfg), nil
		},
	}

	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownOptimizer, name, strings.Join(Names(), ", "))
	}
	opt, err := build(args)
	if err != nil {
		return nil, fmt.Errorf("optimizer %s: %w", name, err)
	}
	return opt, nil
}

func sgdConfig(args kwargs.Args) (SGDConfig, error) {
	if err := args.Check("lr", "momentum", "dampening", "weight_decay", "nesterov"); err != nil {
		return SGDConfig{}, err
	}
	lr, err := positive(args, "lr", 0.01)
	if err != nil {
		return SGDConfig{}, err
	}
	momentum, err := nonNegative(args, "momentum", 0)
	if err != nil {
		return SGDConfig{}, err
	}
	dampening, err := nonNegative(args, "dampening", 0)
	if err != nil {
		return SGDConfig{}, err
	}
	decay, err := nonNegative(args, "weight_decay", 0)
	if err != nil {
		return SGDConfig{}, err
	}
	nesterov, err := args.Bool("nesterov", false)
	if err != nil {
		return SGDConfig{}, err
	}
	if nesterov && (momentum == 0 || dampening != 0) {
		return SGDConfig{}, fmt.Errorf("%w: nesterov requires momentum > 0 and zero dampening", kwargs.ErrBadArgument)
	}
	return SGDConfig{LR: lr, Momentum: momentum, Dampening: dampening, WeightDecay: decay, Nesterov: nesterov}, nil
}

func adamConfig(args kwargs.Args) (AdamConfig, error) {
	if err := args.Check("lr", "betas", "eps", "weight_decay"); err != nil {
		return AdamConfig{}, err
	}
	lr, err := positive(args, "lr", 0.001)
	if err != nil {
		return AdamConfig{}, err
	}
	betas, err := args.Floats("betas", 2, []float64{0.9, 0.999})
	if err != nil {
		return AdamConfig{}, err
	}
	for i, b := range betas {
		if b < 0 || b >= 1 {
			return AdamConfig{}, fmt.Errorf("%w: betas[%d] must be in [0, 1), got %g", kwargs.ErrBadArgument, i, b)
		}
	}
	eps, err := positive(args, "eps", 1e-8)
	if err != nil {
		return AdamConfig{}, err
	}
	decay, err := nonNegative(args, "weight_decay", 0)
	if err != nil {
		return AdamConfig{}, err
	}
	return AdamConfig{
		LR:          lr,
		Betas:       [2]float32{float32(betas[0]), float32(betas[1])},
		Eps:         eps,
		WeightDecay: decay,
	}, nil
}

func positive(args kwargs.Args, key string, def float64) (float32, error) {
	v, err := args.Float(key, def)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %g", kwargs.ErrBadArgument, key, v)
	}
	return float32(v), nil
}

func nonNegative(args kwargs.Args, key string, def float64) (float32, error) {
	v, err := args.Float(key, def)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s must be non-negative, got %g", kwargs.ErrBadArgument, key, v)
	}
	return float32(v), nil
}
