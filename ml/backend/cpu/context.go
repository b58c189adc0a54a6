// context.go - Tensor-Erstellungsmethoden fuer Context
// Enthaelt: Zeros(), FromBytes(), FromFloats(), FromInts(), Arange(), Uniform()

package cpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/graphgps/gps/ml"
)

// Context creates tensors owned by a Backend.
type Context struct {
	b *Backend
}

func (c *Context) Close() {}

func checkShape(shape []int) {
	if len(shape) < 1 || len(shape) > 2 {
		panic(fmt.Sprintf("cpu: unsupported number of dimensions %d", len(shape)))
	}

	for _, dim := range shape {
		if dim < 0 {
			panic("cpu: invalid shape")
		}
	}
}

// Zeros erstellt einen mit Nullen gefuellten Tensor
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	checkShape(shape)
	if dtype == ml.DTypeI32 {
		return &Tensor{dtype: dtype, shape: shape, i: make([]int32, numel(shape))}
	}
	return &Tensor{dtype: floatType(dtype), shape: shape, f: make([]float64, numel(shape))}
}

// FromFloats erstellt einen F32-Tensor aus einem float32-Slice
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	checkShape(shape)
	if len(s) != numel(shape) {
		panic(fmt.Sprintf("cpu: %d values do not fill shape %v", len(s), shape))
	}

	f := make([]float64, len(s))
	for i, v := range s {
		f[i] = float64(v)
	}
	return &Tensor{dtype: ml.DTypeF32, shape: shape, f: f}
}

// FromInts erstellt einen I32-Tensor aus einem int32-Slice
func (c *Context) FromInts(s []int32, shape ...int) ml.Tensor {
	checkShape(shape)
	if len(s) != numel(shape) {
		panic(fmt.Sprintf("cpu: %d values do not fill shape %v", len(s), shape))
	}
	return &Tensor{dtype: ml.DTypeI32, shape: shape, i: append([]int32(nil), s...)}
}

// FromBytes dekodiert little-endian F32-, F16- oder I32-Daten
func (c *Context) FromBytes(dtype ml.DType, s []byte, shape ...int) ml.Tensor {
	checkShape(shape)
	n := numel(shape)

	switch dtype {
	case ml.DTypeF32:
		if len(s) != 4*n {
			panic(fmt.Sprintf("cpu: %d bytes do not fill f32 shape %v", len(s), shape))
		}
		f := make([]float64, n)
		for i := range f {
			f[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(s[4*i:])))
		}
		return &Tensor{dtype: ml.DTypeF32, shape: shape, f: f}
	case ml.DTypeF16:
		if len(s) != 2*n {
			panic(fmt.Sprintf("cpu: %d bytes do not fill f16 shape %v", len(s), shape))
		}
		f := make([]float64, n)
		for i := range f {
			f[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(s[2*i:])).Float32())
		}
		return &Tensor{dtype: ml.DTypeF16, shape: shape, f: f}
	case ml.DTypeI32:
		if len(s) != 4*n {
			panic(fmt.Sprintf("cpu: %d bytes do not fill i32 shape %v", len(s), shape))
		}
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(binary.LittleEndian.Uint32(s[4*i:]))
		}
		return &Tensor{dtype: ml.DTypeI32, shape: shape, i: v}
	default:
		panic(fmt.Sprintf("cpu: unsupported dtype %v", dtype))
	}
}

// Arange erstellt einen 1D-Tensor mit Werten in [start, stop)
func (c *Context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	if step == 0 {
		panic("cpu: arange step must not be zero")
	}

	n := int(math.Ceil(float64((stop - start) / step)))
	if n < 0 {
		n = 0
	}

	if dtype == ml.DTypeI32 {
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(start + float32(i)*step)
		}
		return &Tensor{dtype: ml.DTypeI32, shape: []int{n}, i: v}
	}

	f := make([]float64, n)
	for i := range f {
		f[i] = float64(start + float32(i)*step)
	}
	return &Tensor{dtype: floatType(dtype), shape: []int{n}, f: f}
}

// Uniform erstellt einen Tensor mit gleichverteilten Zufallswerten
func (c *Context) Uniform(low, high float32, shape ...int) ml.Tensor {
	checkShape(shape)
	return &Tensor{
		dtype: ml.DTypeF32,
		shape: shape,
		f:     c.b.uniform(numel(shape), float64(low), float64(high)),
	}
}

func floatType(dtype ml.DType) ml.DType {
	if dtype == ml.DTypeF16 {
		return ml.DTypeF16
	}
	return ml.DTypeF32
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
