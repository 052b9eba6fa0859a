package nn

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/colorize/internal/autodiff/ops"
	"github.com/born-ml/colorize/internal/kwargs"
	"github.com/born-ml/colorize/internal/tensor"
)

// ErrUnknownCriterion is returned by BuildCriterion for unsupported names.
var ErrUnknownCriterion = errors.New("unknown criterion")

// DefaultMultinomialEps keeps log away from zero probabilities.
const DefaultMultinomialEps = 1e-8

// CriterionNames lists the names accepted by BuildCriterion, sorted.
func CriterionNames() []string {
	names := []string{"CrossEntropyLoss", "MultinomialCrossEntropyLoss"}
	sort.Strings(names)
	return names
}

// BuildCriterion constructs a criterion by name from keyword arguments.
//
// Accepted arguments:
//   - reduction: "mean" (default) or "sum"
//   - eps: MultinomialCrossEntropyLoss only, default 1e-8
func BuildCriterion[B tensor.Backend](name string, args kwargs.Args) (Criterion[B], error) {
	constructors := map[string]func(kwargs.Args) (Criterion[B], error){
		"CrossEntropyLoss": func(args kwargs.Args) (Criterion[B], error) {
			if err := args.Check("reduction"); err != nil {
				return nil, err
			}
			reduction, err := parseReduction(args)
			if err != nil {
				return nil, err
			}
			return NewCrossEntropyLoss[B](reduction), nil
		},
		"MultinomialCrossEntropyLoss": func(args kwargs.Args) (Criterion[B], error) {
			if err := args.Check("reduction", "eps"); err != nil {
				return nil, err
			}
			reduction, err := parseReduction(args)
			if err != nil {
				return nil, err
			}
			eps, err := args.Float("eps", DefaultMultinomialEps)
			if err != nil {
				return nil, err
			}
			if eps < 0 {
				return nil, fmt.Errorf("%w: eps must be non-negative, got %g", kwargs.ErrBadArgument, eps)
			}
			return NewMultinomialCrossEntropyLoss[B](reduction, float32(eps)), nil
		},
	}

	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownCriterion, name, strings.Join(CriterionNames(), ", "))
	}
	c, err := build(args)
	if err != nil {
		return nil, fmt.Errorf("criterion %s: %w", name, err)
	}
	return c, nil
}

func parseReduction(args kwargs.Args) (ops.Reduction, error) {
	s, err := args.String("reduction", "mean")
	if err != nil {
		return 0, err
	}
	switch s {
	case "mean":
		return ops.ReductionMean, nil
	case "sum":
		return ops.ReductionSum, nil
	default:
		return 0, fmt.Errorf("%w: reduction must be \"mean\" or \"sum\", got %q", kwargs.ErrBadArgument, s)
	}
}
