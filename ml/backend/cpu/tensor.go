// tensor.go - Tensor-Struktur und Basis-Accessoren
// Enthaelt: Tensor, Dim(), Shape(), DType(), Cast(), Bytes(), Floats(), Ints()

package cpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/x448/float16"

	"github.com/graphgps/gps/ml"
)

var (
	_ ml.Tensor  = (*Tensor)(nil)
	_ ml.Context = (*Context)(nil)
)

// Tensor is a dense row-major tensor of rank 1 or 2. Float tensors keep
// their values as float64 so gonum can operate on them directly; F16
// tensors hold values already rounded to half precision.
type Tensor struct {
	dtype ml.DType
	shape []int

	f []float64
	i []int32
}

func (t *Tensor) String() string {
	return fmt.Sprintf("cpu.Tensor(%v, %v)", t.dtype, t.shape)
}

func (t *Tensor) Dim(n int) int {
	if n >= len(t.shape) {
		return 1
	}
	return t.shape[n]
}

func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

func (t *Tensor) DType() ml.DType {
	return t.dtype
}

// rc returns the matrix view of t. A rank 1 tensor is a row vector.
func (t *Tensor) rc() (int, int) {
	if len(t.shape) == 1 {
		return 1, t.shape[0]
	}
	return t.shape[0], t.shape[1]
}

// column returns the gather/scatter view of t. A rank 1 tensor is a
// column so that indexing selects single elements.
func (t *Tensor) column() (int, int) {
	if len(t.shape) == 1 {
		return t.shape[0], 1
	}
	return t.shape[0], t.shape[1]
}

func (t *Tensor) isInt() bool {
	return t.dtype == ml.DTypeI32
}

func (t *Tensor) mustFloat(op string) {
	if t.isInt() {
		panic(fmt.Sprintf("cpu: %s is not defined for %v tensors", op, t.dtype))
	}
}

func (t *Tensor) floats64() []float64 {
	if t.isInt() {
		f := make([]float64, len(t.i))
		for i, v := range t.i {
			f[i] = float64(v)
		}
		return f
	}
	return t.f
}

func (t *Tensor) Cast(ctx ml.Context, dtype ml.DType) ml.Tensor {
	switch dtype {
	case ml.DTypeI32:
		if t.isInt() {
			return t.Duplicate(ctx)
		}
		v := make([]int32, len(t.f))
		for i, f := range t.f {
			v[i] = int32(f)
		}
		return &Tensor{dtype: dtype, shape: slices.Clone(t.shape), i: v}
	case ml.DTypeF16:
		f := slices.Clone(t.floats64())
		for i, v := range f {
			f[i] = float64(float16.Fromfloat32(float32(v)).Float32())
		}
		return &Tensor{dtype: dtype, shape: slices.Clone(t.shape), f: f}
	case ml.DTypeF32:
		return &Tensor{dtype: dtype, shape: slices.Clone(t.shape), f: slices.Clone(t.floats64())}
	default:
		panic(fmt.Sprintf("cpu: unsupported dtype %v", dtype))
	}
}

// Bytes encodes the tensor little-endian in its own dtype.
func (t *Tensor) Bytes() []byte {
	switch t.dtype {
	case ml.DTypeI32:
		b := make([]byte, 4*len(t.i))
		for i, v := range t.i {
			binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
		}
		return b
	case ml.DTypeF16:
		b := make([]byte, 2*len(t.f))
		for i, v := range t.f {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(float32(v)).Bits())
		}
		return b
	default:
		b := make([]byte, 4*len(t.f))
		for i, v := range t.f {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(float32(v)))
		}
		return b
	}
}

func (t *Tensor) Floats() []float32 {
	f := t.floats64()
	s := make([]float32, len(f))
	for i, v := range f {
		s[i] = float32(v)
	}
	return s
}

func (t *Tensor) Ints() []int32 {
	if t.isInt() {
		return slices.Clone(t.i)
	}
	s := make([]int32, len(t.f))
	for i, v := range t.f {
		s[i] = int32(v)
	}
	return s
}

func (t *Tensor) Duplicate(ctx ml.Context) ml.Tensor {
	return &Tensor{dtype: t.dtype, shape: slices.Clone(t.shape), f: slices.Clone(t.f), i: slices.Clone(t.i)}
}

func newFloat(shape []int, f []float64) *Tensor {
	return &Tensor{dtype: ml.DTypeF32, shape: shape, f: f}
}

func cast(t ml.Tensor) *Tensor {
	if t == nil {
		panic("cpu: nil tensor")
	}
	return t.(*Tensor)
}
