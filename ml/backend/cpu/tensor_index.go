// tensor_index.go - Index-basierte Operationen fuer Tensoren
// Enthaelt: Rows (Gather), Scatter (Sum/Mean/Max)

package cpu

import (
	"fmt"
	"math"

	"github.com/graphgps/gps/ml"
)

func indices(idxs ml.Tensor, n int) []int32 {
	ix := cast(idxs)
	if !ix.isInt() {
		panic(fmt.Sprintf("cpu: indices must be i32, got %v", ix.dtype))
	}

	for _, v := range ix.i {
		if v < 0 || int(v) >= n {
			panic(fmt.Sprintf("cpu: index %d out of range [0, %d)", v, n))
		}
	}
	return ix.i
}

// Rows sammelt Zeilen von t anhand der Indizes
func (t *Tensor) Rows(ctx ml.Context, idxs ml.Tensor) ml.Tensor {
	r, c := t.column()
	ix := indices(idxs, r)

	shape := []int{len(ix), c}
	if len(t.shape) == 1 {
		shape = []int{len(ix)}
	}

	if t.isInt() {
		out := make([]int32, 0, len(ix)*c)
		for _, i := range ix {
			out = append(out, t.i[int(i)*c:int(i+1)*c]...)
		}
		return &Tensor{dtype: ml.DTypeI32, shape: shape, i: out}
	}

	out := make([]float64, 0, len(ix)*c)
	for _, i := range ix {
		out = append(out, t.f[int(i)*c:int(i+1)*c]...)
	}
	return &Tensor{dtype: t.dtype, shape: shape, f: out}
}

// Scatter fasst Zeile i von t in Zeile idxs[i] eines (n, cols)-Ergebnisses zusammen
func (t *Tensor) Scatter(ctx ml.Context, idxs ml.Tensor, n int, reduce ml.Reduce) ml.Tensor {
	t.mustFloat("scatter")
	r, c := t.column()
	ix := indices(idxs, n)
	if len(ix) != r {
		panic(fmt.Sprintf("cpu: scatter has %d indices for %d rows", len(ix), r))
	}

	shape := []int{n, c}
	if len(t.shape) == 1 {
		shape = []int{n}
	}

	out := make([]float64, n*c)
	count := make([]int, n)
	if reduce == ml.ReduceMax {
		for i := range out {
			out[i] = math.Inf(-1)
		}
	}

	for row, dst := range ix {
		count[dst]++
		src := t.f[row*c : (row+1)*c]
		acc := out[int(dst)*c : int(dst+1)*c]
		for j, v := range src {
			if reduce == ml.ReduceMax {
				acc[j] = max(acc[j], v)
			} else {
				acc[j] += v
			}
		}
	}

	for i, k := range count {
		acc := out[i*c : (i+1)*c]
		switch {
		case k == 0:
			clear(acc)
		case reduce == ml.ReduceMean:
			for j := range acc {
				acc[j] /= float64(k)
			}
		}
	}

	return newFloat(shape, out)
}
