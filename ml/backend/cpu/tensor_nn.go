// tensor_nn.go - Neuronale-Netzwerk-Operationen fuer Tensoren
// Enthaelt: Softmax, LayerNorm, Exp, Sqrt, Clamp, RELU, GELU, Sigmoid

package cpu

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/graphgps/gps/ml"
)

func (t *Tensor) unary(op string, fn func(float64) float64) ml.Tensor {
	t.mustFloat(op)
	out := make([]float64, len(t.f))
	for i, v := range t.f {
		out[i] = fn(v)
	}
	return newFloat(slices.Clone(t.shape), out)
}

// Softmax normalisiert jede Zeile. Zeilen, die nur -Inf enthalten, werden zu Null.
func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	t.mustFloat("softmax")
	r, c := t.rc()
	out := make([]float64, len(t.f))
	for i := range r {
		row := t.f[i*c : (i+1)*c]
		dst := out[i*c : (i+1)*c]
		if len(row) == 0 {
			continue
		}

		m := floats.Max(row)
		if math.IsInf(m, -1) {
			continue
		}

		for j, v := range row {
			dst[j] = math.Exp(v - m)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}
	return newFloat(slices.Clone(t.shape), out)
}

// LayerNorm normalisiert jede Zeile auf Mittelwert 0 und Varianz 1.
// weight und bias sind optional.
func (t *Tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	t.mustFloat("layer norm")
	r, c := t.rc()
	out := make([]float64, len(t.f))
	for i := range r {
		row := t.f[i*c : (i+1)*c]
		dst := out[i*c : (i+1)*c]
		if len(row) == 0 {
			continue
		}

		mean := floats.Sum(row) / float64(c)
		var variance float64
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(c)

		inv := 1 / math.Sqrt(variance+float64(eps))
		for j, v := range row {
			dst[j] = (v - mean) * inv
		}
	}

	var res ml.Tensor = newFloat(slices.Clone(t.shape), out)
	if weight != nil {
		res = res.Mul(ctx, weight)
	}
	if bias != nil {
		res = res.Add(ctx, bias)
	}
	return res
}

func (t *Tensor) Exp(ctx ml.Context) ml.Tensor {
	return t.unary("exp", math.Exp)
}

func (t *Tensor) Sqrt(ctx ml.Context) ml.Tensor {
	return t.unary("sqrt", math.Sqrt)
}

func (t *Tensor) Clamp(ctx ml.Context, low, high float32) ml.Tensor {
	return t.unary("clamp", func(v float64) float64 {
		return min(max(v, float64(low)), float64(high))
	})
}

func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.unary("relu", func(v float64) float64 {
		return max(v, 0)
	})
}

// GELU verwendet die exakte Form mit der Fehlerfunktion
func (t *Tensor) GELU(ctx ml.Context) ml.Tensor {
	return t.unary("gelu", func(v float64) float64 {
		return 0.5 * v * (1 + math.Erf(v/math.Sqrt2))
	})
}

func (t *Tensor) Sigmoid(ctx ml.Context) ml.Tensor {
	return t.unary("sigmoid", func(v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	})
}
