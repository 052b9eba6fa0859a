package cpu

import (
	"fmt"

	"github.com/born-ml/colorize/internal/tensor"
)

// Reshape returns a copy of t with a new shape.
// The number of elements must be preserved.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible sizes %v (%d) -> %v (%d)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}

	result := tensor.MustNewRaw(newShape, t.DType(), cpu.device)
	copy(result.Data(), t.Data())
	return result
}
