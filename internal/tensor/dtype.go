// Package tensor provides the core tensor types used by the colorization network.
package tensor

// DType is a constraint for supported tensor data types.
// Network activations and parameters are float32, class labels are int64.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType maps a safetensors-style dtype tag back to a DataType.
func ParseDataType(tag string) (DataType, bool) {
	switch tag {
	case "F32":
		return Float32, true
	case "F64":
		return Float64, true
	case "I32":
		return Int32, true
	case "I64":
		return Int64, true
	default:
		return 0, false
	}
}

// Tag returns the safetensors dtype tag ("F32", "I64", ...).
func (dt DataType) Tag() string {
	switch dt {
	case Float32:
		return "F32"
	case Float64:
		return "F64"
	case Int32:
		return "I32"
	case Int64:
		return "I64"
	default:
		return "UNKNOWN"
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	default:
		panic("unsupported type")
	}
}
