// types.go - Datentypen und Konstanten fuer ML-Operationen
// Dieses Modul definiert grundlegende Typen wie DType und Reduce.
package ml

// DType represents the data type of tensor elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeI32
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeI32:
		return "i32"
	default:
		return "other"
	}
}

// Reduce selects how Scatter combines rows that land on the same index.
type Reduce int

const (
	ReduceSum Reduce = iota
	ReduceMean
	ReduceMax
)

// ParseReduce maps the pooling names used in experiment configs
// ("add", "sum", "mean", "max") to a Reduce.
func ParseReduce(s string) (Reduce, bool) {
	switch s {
	case "add", "sum":
		return ReduceSum, true
	case "mean":
		return ReduceMean, true
	case "max":
		return ReduceMax, true
	default:
		return ReduceSum, false
	}
}
