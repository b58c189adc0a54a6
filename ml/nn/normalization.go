// normalization.go - Normalisierungsschichten
// Enthaelt: LayerNorm, BatchNorm (Inferenz), GraphLayerNorm
package nn

import (
	"github.com/graphgps/gps/ml"
)

type LayerNorm struct {
	Weight ml.Tensor `gps:"weight"`
	Bias   ml.Tensor `gps:"bias"`
}

func NewLayerNorm(ctx ml.Context, dim int) *LayerNorm {
	return &LayerNorm{Weight: ones(ctx, dim), Bias: ctx.Zeros(ml.DTypeF32, dim)}
}

func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}

// BatchNorm normalises with running statistics as BatchNorm1d does in
// evaluation mode.
type BatchNorm struct {
	Weight      ml.Tensor `gps:"weight"`
	Bias        ml.Tensor `gps:"bias"`
	RunningMean ml.Tensor `gps:"running_mean"`
	RunningVar  ml.Tensor `gps:"running_var"`

	Eps float32
}

func NewBatchNorm(ctx ml.Context, dim int) *BatchNorm {
	return &BatchNorm{
		Weight:      ones(ctx, dim),
		Bias:        ctx.Zeros(ml.DTypeF32, dim),
		RunningMean: ctx.Zeros(ml.DTypeF32, dim),
		RunningVar:  ones(ctx, dim),
		Eps:         1e-5,
	}
}

func (m *BatchNorm) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	std := m.RunningVar.Add(ctx, ctx.FromFloats([]float32{m.Eps}, 1)).Sqrt(ctx)
	t = t.Sub(ctx, m.RunningMean).Div(ctx, std)
	if m.Weight != nil {
		t = t.Mul(ctx, m.Weight)
	}
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}
	return t
}

// GraphLayerNorm normalises each graph of a batch over all of its nodes
// and features at once.
type GraphLayerNorm struct {
	Weight ml.Tensor `gps:"weight"`
	Bias   ml.Tensor `gps:"bias"`

	Eps float32
}

func NewGraphLayerNorm(ctx ml.Context, dim int) *GraphLayerNorm {
	return &GraphLayerNorm{Weight: ones(ctx, dim), Bias: ctx.Zeros(ml.DTypeF32, dim), Eps: 1e-5}
}

// Forward normalises x (N, dim). batch assigns every row to one of
// numGraphs graphs.
func (m *GraphLayerNorm) Forward(ctx ml.Context, x, batch ml.Tensor, numGraphs int) ml.Tensor {
	inv := 1 / float64(x.Dim(1))

	mean := x.Scatter(ctx, batch, numGraphs, ml.ReduceMean).SumRows(ctx).Scale(ctx, inv)
	x = x.Sub(ctx, mean.Rows(ctx, batch))

	variance := x.Mul(ctx, x).Scatter(ctx, batch, numGraphs, ml.ReduceMean).SumRows(ctx).Scale(ctx, inv)
	std := variance.Add(ctx, ctx.FromFloats([]float32{m.Eps}, 1)).Sqrt(ctx)
	x = x.Div(ctx, std.Rows(ctx, batch))

	if m.Weight != nil {
		x = x.Mul(ctx, m.Weight)
	}
	if m.Bias != nil {
		x = x.Add(ctx, m.Bias)
	}
	return x
}

func ones(ctx ml.Context, n int) ml.Tensor {
	f := make([]float32, n)
	for i := range f {
		f[i] = 1
	}
	return ctx.FromFloats(f, n)
}

// Normalizer normalises the rows of a tensor.
type Normalizer interface {
	Normalize(ml.Context, ml.Tensor) ml.Tensor
}

func (m *LayerNorm) Normalize(ctx ml.Context, t ml.Tensor) ml.Tensor {
	return m.Forward(ctx, t, 1e-5)
}

func (m *BatchNorm) Normalize(ctx ml.Context, t ml.Tensor) ml.Tensor {
	return m.Forward(ctx, t)
}

// NewNorm builds the normalisation named by a "raw_norm_type" option:
// "batchnorm" or "layernorm". Any other value means no normalisation and
// yields nil.
func NewNorm(ctx ml.Context, kind string, dim int) Normalizer {
	switch kind {
	case "batchnorm":
		return NewBatchNorm(ctx, dim)
	case "layernorm":
		return NewLayerNorm(ctx, dim)
	default:
		return nil
	}
}
