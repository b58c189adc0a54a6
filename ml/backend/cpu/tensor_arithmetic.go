// tensor_arithmetic.go - Basis-Arithmetik-Operationen fuer Tensoren
// Enthaelt: Add, Sub, Mul, Div, Scale, SumRows

package cpu

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/graphgps/gps/ml"
)

// broadcast wendet op elementweise an und erweitert t2 nach den Regeln von ml.Tensor
func (t *Tensor) broadcast(t2 ml.Tensor, same func(dst, a, b []float64) []float64, op func(a, b float64) float64) ml.Tensor {
	o := cast(t2)
	t.mustFloat("arithmetic")
	o.mustFloat("arithmetic")

	r, c := t.rc()
	r2, c2 := o.rc()
	out := make([]float64, len(t.f))

	switch {
	case r2 == r && c2 == c:
		same(out, t.f, o.f)
	case r2 == 1 && c2 == c:
		for i := range r {
			for j := range c {
				out[i*c+j] = op(t.f[i*c+j], o.f[j])
			}
		}
	case r2 == r && c2 == 1:
		for i := range r {
			for j := range c {
				out[i*c+j] = op(t.f[i*c+j], o.f[i])
			}
		}
	case r2 == 1 && c2 == 1:
		for i, v := range t.f {
			out[i] = op(v, o.f[0])
		}
	default:
		panic(fmt.Sprintf("cpu: cannot broadcast %v to %v", o.shape, t.shape))
	}

	return newFloat(slices.Clone(t.shape), out)
}

// Add addiert zwei Tensoren elementweise
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.broadcast(t2, floats.AddTo, func(a, b float64) float64 { return a + b })
}

// Sub subtrahiert zwei Tensoren elementweise
func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.broadcast(t2, floats.SubTo, func(a, b float64) float64 { return a - b })
}

// Mul multipliziert zwei Tensoren elementweise
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.broadcast(t2, floats.MulTo, func(a, b float64) float64 { return a * b })
}

// Div dividiert zwei Tensoren elementweise
func (t *Tensor) Div(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.broadcast(t2, floats.DivTo, func(a, b float64) float64 { return a / b })
}

// Scale skaliert den Tensor mit einem Skalarwert
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	t.mustFloat("scale")
	out := make([]float64, len(t.f))
	floats.ScaleTo(out, s, t.f)
	return newFloat(slices.Clone(t.shape), out)
}

// SumRows summiert jede Zeile zu einem (rows, 1)-Tensor
func (t *Tensor) SumRows(ctx ml.Context) ml.Tensor {
	t.mustFloat("sum")
	r, c := t.rc()
	out := make([]float64, r)
	for i := range r {
		out[i] = floats.Sum(t.f[i*c : (i+1)*c])
	}
	return newFloat([]int{r, 1}, out)
}
