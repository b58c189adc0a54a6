// Package nn - Grundbausteine neuronaler Netze ueber ml.Tensor
//
// Alle Module arbeiten im Inferenzmodus. Parameter werden beim Erstellen
// mit denselben Verteilungen wie in PyTorch initialisiert und koennen
// danach aus einem Checkpoint ersetzt werden (siehe model.Load).
package nn

import (
	"math"

	"github.com/graphgps/gps/ml"
)

// Linear is a fully connected layer y = x·Wᵀ + b with W of shape (out, in).
type Linear struct {
	Weight ml.Tensor `gps:"weight"`
	Bias   ml.Tensor `gps:"bias"`
}

// NewLinear initialises W and b from U(-1/√in, 1/√in).
func NewLinear(ctx ml.Context, in, out int, bias bool) *Linear {
	bound := float32(0)
	if in > 0 {
		bound = float32(1 / math.Sqrt(float64(in)))
	}

	m := Linear{Weight: ctx.Uniform(-bound, bound, out, in)}
	if bias {
		m.Bias = ctx.Uniform(-bound, bound, out)
	}
	return &m
}

// NewXavierLinear initialises W with Glorot uniform and b with zeros.
func NewXavierLinear(ctx ml.Context, in, out int, bias bool) *Linear {
	bound := float32(0)
	if in+out > 0 {
		bound = float32(math.Sqrt(6 / float64(in+out)))
	}

	m := Linear{Weight: ctx.Uniform(-bound, bound, out, in)}
	if bias {
		m.Bias = ctx.Zeros(ml.DTypeF32, out)
	}
	return &m
}

func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = m.Weight.Mulmat(ctx, t)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}
	return t
}

// In returns the input width.
func (m *Linear) In() int {
	return m.Weight.Dim(1)
}

// Out returns the output width.
func (m *Linear) Out() int {
	return m.Weight.Dim(0)
}
