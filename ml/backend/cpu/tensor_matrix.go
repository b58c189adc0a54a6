// tensor_matrix.go - Matrix-Operationen fuer Tensoren
// Enthaelt: Mulmat, Transpose

package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/graphgps/gps/ml"
)

// Mulmat berechnet t2 · tᵀ, t ist eine (out, in) Gewichtsmatrix
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	x := cast(t2)
	t.mustFloat("mulmat")
	x.mustFloat("mulmat")

	out, in := t.rc()
	n, k := x.rc()
	if k != in {
		panic(fmt.Sprintf("cpu: mulmat shape mismatch %v x %v", x.shape, t.shape))
	}

	shape := []int{n, out}
	if len(x.shape) == 1 {
		shape = []int{out}
	}

	// gonum lehnt Matrizen mit Nulldimension ab
	if n == 0 || out == 0 || in == 0 {
		return newFloat(shape, make([]float64, n*out))
	}

	var res mat.Dense
	res.Mul(mat.NewDense(n, in, x.f), mat.NewDense(out, in, t.f).T())
	return newFloat(shape, res.RawMatrix().Data)
}

// Transpose vertauscht Zeilen und Spalten
func (t *Tensor) Transpose(ctx ml.Context) ml.Tensor {
	r, c := t.rc()
	if t.isInt() {
		v := make([]int32, len(t.i))
		for i := range r {
			for j := range c {
				v[j*r+i] = t.i[i*c+j]
			}
		}
		return &Tensor{dtype: ml.DTypeI32, shape: []int{c, r}, i: v}
	}

	if r == 0 || c == 0 {
		return newFloat([]int{c, r}, nil)
	}

	var res mat.Dense
	res.CloneFrom(mat.NewDense(r, c, t.f).T())
	return newFloat([]int{c, r}, res.RawMatrix().Data)
}
