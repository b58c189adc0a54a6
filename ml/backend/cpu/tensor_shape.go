// tensor_shape.go - Shape-Manipulation fuer Tensoren
// Enthaelt: Reshape, Slice, Concat

package cpu

import (
	"fmt"
	"slices"

	"github.com/graphgps/gps/ml"
)

// Reshape aendert die Form ohne die Daten umzuordnen
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	checkShape(shape)
	if numel(shape) != numel(t.shape) {
		panic(fmt.Sprintf("cpu: cannot reshape %v to %v", t.shape, shape))
	}

	out := t.Duplicate(ctx).(*Tensor)
	out.shape = slices.Clone(shape)
	return out
}

// Slice schneidet [low, high) entlang dim aus
func (t *Tensor) Slice(ctx ml.Context, dim, low, high int) ml.Tensor {
	if len(t.shape) == 1 {
		if dim != 0 || low < 0 || high > t.shape[0] || low > high {
			panic(fmt.Sprintf("cpu: invalid slice [%d:%d] of dim %d for %v", low, high, dim, t.shape))
		}
		return &Tensor{
			dtype: t.dtype,
			shape: []int{high - low},
			f:     cloneRange(t.f, low, high),
			i:     cloneRange(t.i, low, high),
		}
	}

	r, c := t.rc()
	switch dim {
	case 0:
		if low < 0 || high > r || low > high {
			panic(fmt.Sprintf("cpu: invalid slice [%d:%d] of dim 0 for %v", low, high, t.shape))
		}
		return &Tensor{
			dtype: t.dtype,
			shape: []int{high - low, c},
			f:     cloneRange(t.f, low*c, high*c),
			i:     cloneRange(t.i, low*c, high*c),
		}
	case 1:
		if low < 0 || high > c || low > high {
			panic(fmt.Sprintf("cpu: invalid slice [%d:%d] of dim 1 for %v", low, high, t.shape))
		}
		w := high - low
		out := &Tensor{dtype: t.dtype, shape: []int{r, w}}
		if t.isInt() {
			out.i = make([]int32, 0, r*w)
			for i := range r {
				out.i = append(out.i, t.i[i*c+low:i*c+high]...)
			}
		} else {
			out.f = make([]float64, 0, r*w)
			for i := range r {
				out.f = append(out.f, t.f[i*c+low:i*c+high]...)
			}
		}
		return out
	default:
		panic(fmt.Sprintf("cpu: invalid slice dimension %d", dim))
	}
}

// Concat verbindet zwei Tensoren entlang dim
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	o := cast(t2)
	if t.isInt() != o.isInt() {
		panic(fmt.Sprintf("cpu: cannot concat %v and %v", t.dtype, o.dtype))
	}

	dtype := t.dtype
	if dtype == ml.DTypeF16 && o.dtype != ml.DTypeF16 {
		dtype = ml.DTypeF32
	}

	if len(t.shape) == 1 && len(o.shape) == 1 {
		if dim != 0 {
			panic(fmt.Sprintf("cpu: invalid concat dimension %d for vectors", dim))
		}
		return &Tensor{
			dtype: dtype,
			shape: []int{t.shape[0] + o.shape[0]},
			f:     concatRows(t.f, o.f),
			i:     concatRows(t.i, o.i),
		}
	}

	r, c := t.column()
	r2, c2 := o.column()
	switch dim {
	case 0:
		if c != c2 {
			panic(fmt.Sprintf("cpu: concat shape mismatch %v and %v along dim 0", t.shape, o.shape))
		}
		return &Tensor{
			dtype: dtype,
			shape: []int{r + r2, c},
			f:     concatRows(t.f, o.f),
			i:     concatRows(t.i, o.i),
		}
	case 1:
		if r != r2 {
			panic(fmt.Sprintf("cpu: concat shape mismatch %v and %v along dim 1", t.shape, o.shape))
		}
		out := &Tensor{dtype: dtype, shape: []int{r, c + c2}}
		if t.isInt() {
			out.i = make([]int32, 0, r*(c+c2))
			for i := range r {
				out.i = append(out.i, t.i[i*c:(i+1)*c]...)
				out.i = append(out.i, o.i[i*c2:(i+1)*c2]...)
			}
		} else {
			out.f = make([]float64, 0, r*(c+c2))
			for i := range r {
				out.f = append(out.f, t.f[i*c:(i+1)*c]...)
				out.f = append(out.f, o.f[i*c2:(i+1)*c2]...)
			}
		}
		return out
	default:
		panic(fmt.Sprintf("cpu: invalid concat dimension %d", dim))
	}
}

func cloneRange[S ~[]E, E any](s S, low, high int) S {
	if s == nil {
		return nil
	}
	return slices.Clone(s[low:high])
}

func concatRows[S ~[]E, E any](a, b S) S {
	if a == nil && b == nil {
		return nil
	}
	return slices.Concat(a, b)
}
