// checkpoint_tensor.go - Wandelt PyTorch-Tensoren in ml.Tensor
// Enthaelt: materialize, storageValues, transposed, strided

package convert

import (
	"fmt"
	"slices"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/pdevine/tensor"

	"github.com/graphgps/gps/ml"
)

// materialize copies pt into a contiguous tensor. Scalars become shape (1).
// Half precision tensors keep their dtype, other floats load as F32 and
// integer tensors as I32.
func materialize(ctx ml.Context, pt *pytorch.Tensor) (ml.Tensor, error) {
	shape := slices.Clone(pt.Size)
	switch len(shape) {
	case 0:
		shape = []int{1}
	case 1, 2:
	default:
		return nil, fmt.Errorf("unsupported rank %d", len(shape))
	}

	n := 1
	for _, d := range shape {
		n *= d
	}

	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		f, err := gather(s.Data, pt, n)
		if err != nil {
			return nil, err
		}
		return ctx.FromFloats(f, shape...), nil
	case *pytorch.HalfStorage:
		f, err := gather(s.Data, pt, n)
		if err != nil {
			return nil, err
		}
		return ctx.FromFloats(f, shape...).Cast(ctx, ml.DTypeF16), nil
	case *pytorch.DoubleStorage:
		f, err := gather(s.Data, pt, n)
		if err != nil {
			return nil, err
		}
		return ctx.FromFloats(convertSlice[float32](f), shape...), nil
	case *pytorch.LongStorage:
		i, err := gather(s.Data, pt, n)
		if err != nil {
			return nil, err
		}
		return ctx.FromInts(convertSlice[int32](i), shape...), nil
	case *pytorch.IntStorage:
		i, err := gather(s.Data, pt, n)
		if err != nil {
			return nil, err
		}
		return ctx.FromInts(i, shape...), nil
	default:
		return nil, fmt.Errorf("unsupported storage %T", pt.Source)
	}
}

func convertSlice[T, S int32 | int64 | uint32 | float32 | float64](s []S) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = T(v)
	}
	return out
}

// gather reads the n elements of pt from data in row-major order.
func gather[T int32 | int64 | float32 | float64](data []T, pt *pytorch.Tensor, n int) ([]T, error) {
	off := pt.StorageOffset
	size, stride := pt.Size, pt.Stride

	if n == 0 {
		return []T{}, nil
	}

	last := off
	for i := range size {
		last += (size[i] - 1) * stride[i]
	}
	if off < 0 || last >= len(data) {
		return nil, fmt.Errorf("storage of %d elements too small for offset %d, size %v, stride %v", len(data), off, size, stride)
	}

	switch {
	case contiguous(size, stride):
		return slices.Clone(data[off : off+n]), nil
	case len(size) == 2 && stride[0] == 1 && stride[1] == size[0]:
		return transposed(data[off:off+n], size)
	default:
		return strided(data, off, size, stride, n), nil
	}
}

func contiguous(size, stride []int) bool {
	want := 1
	for i := len(size) - 1; i >= 0; i-- {
		if size[i] != 1 && stride[i] != want {
			return false
		}
		want *= size[i]
	}
	return true
}

// transposed materializes a column-major (r, c) view, the layout PyTorch
// leaves behind after .t().
func transposed[T int32 | int64 | float32 | float64](data []T, size []int) ([]T, error) {
	r, c := size[0], size[1]
	n := tensor.New(tensor.WithShape(c, r), tensor.WithBacking(slices.Clone(data)))
	if err := n.T(1, 0); err != nil {
		return nil, err
	}
	if err := n.Transpose(); err != nil {
		return nil, err
	}

	out, ok := n.Data().([]T)
	if !ok {
		return nil, fmt.Errorf("unexpected backing %T", n.Data())
	}
	return out, nil
}

// strided walks an arbitrary rank 1 or 2 view.
func strided[T int32 | int64 | float32 | float64](data []T, off int, size, stride []int, n int) []T {
	out := make([]T, 0, n)
	if len(size) == 1 {
		for i := range size[0] {
			out = append(out, data[off+i*stride[0]])
		}
		return out
	}

	for i := range size[0] {
		for j := range size[1] {
			out = append(out, data[off+i*stride[0]+j*stride[1]])
		}
	}
	return out
}
