package nn

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/colorize/internal/tensor"
)

// ErrStateMismatch is returned when a state dictionary does not fit a module.
var ErrStateMismatch = errors.New("state dict mismatch")

// CloneStateDict returns a deep copy of sd, detached from the module it was
// taken from. Later training steps do not affect the copy.
func CloneStateDict(sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(sd))
	for name, raw := range sd {
		out[name] = raw.Clone()
	}
	return out
}

// LoadState copies every tensor of src into the live tensors of dst.
// Keys must match exactly and shapes and dtypes must agree.
func LoadState(dst, src map[string]*tensor.RawTensor) error {
	var missing, unexpected []string
	for name := range dst {
		if _, ok := src[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range src {
		if _, ok := dst[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return fmt.Errorf("%w: missing [%s], unexpected [%s]", ErrStateMismatch,
			strings.Join(missing, ", "), strings.Join(unexpected, ", "))
	}

	for name, raw := range dst {
		if err := raw.CopyFrom(src[name]); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStateMismatch, name, err)
		}
	}
	return nil
}

// PrefixState adds prefix + "." to every key of sd and merges it into out.
func PrefixState(out map[string]*tensor.RawTensor, prefix string, sd map[string]*tensor.RawTensor) {
	for name, raw := range sd {
		out[prefix+"."+name] = raw
	}
}
