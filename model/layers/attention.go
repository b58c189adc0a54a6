// Modul: attention.go
// Beschreibung: Globale Attention-Schichten
// Hauptstrukturen:
//   - Transformer: Multi-Head-Self-Attention innerhalb jedes Graphen
//   - Exphormer: duenn besetzte Attention ueber Expander- und virtuelle Kanten

package layers

import (
	"fmt"
	"math"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

// Transformer entspricht torch.nn.MultiheadAttention mit gepackter
// Eingangsprojektion. Knoten sehen nur Knoten desselben Graphen.
type Transformer struct {
	InProjWeight ml.Tensor  `gps:"in_proj_weight"`
	InProjBias   ml.Tensor  `gps:"in_proj_bias"`
	OutProj      *nn.Linear `gps:"out_proj"`

	numHeads int
}

func NewTransformer(ctx ml.Context, dim, numHeads int) *Transformer {
	in := nn.NewXavierLinear(ctx, dim, 3*dim, true)
	out := nn.NewLinear(ctx, dim, dim, true)
	out.Bias = ctx.Zeros(ml.DTypeF32, dim)

	return &Transformer{
		InProjWeight: in.Weight,
		InProjBias:   in.Bias,
		OutProj:      out,
		numHeads:     numHeads,
	}
}

func (m *Transformer) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	dim := h.Dim(1)
	if dim != m.OutProj.In() {
		return nil, fmt.Errorf("%w: attention expects width %d, got %d", model.ErrDimMismatch, m.OutProj.In(), dim)
	}

	qkv := (&nn.Linear{Weight: m.InProjWeight, Bias: m.InProjBias}).Forward(ctx, h)
	q := qkv.Slice(ctx, 1, 0, dim)
	k := qkv.Slice(ctx, 1, dim, 2*dim)
	v := qkv.Slice(ctx, 1, 2*dim, 3*dim)

	headDim := dim / m.numHeads
	scale := 1 / math.Sqrt(float64(headDim))

	var out ml.Tensor
	for g := range batch.NumGraphs() {
		lo, hi := batch.Ptr[g], batch.Ptr[g+1]
		if lo == hi {
			continue
		}

		qg, kg, vg := q.Slice(ctx, 0, lo, hi), k.Slice(ctx, 0, lo, hi), v.Slice(ctx, 0, lo, hi)

		var heads ml.Tensor
		for i := range m.numHeads {
			qh := qg.Slice(ctx, 1, i*headDim, (i+1)*headDim)
			kh := kg.Slice(ctx, 1, i*headDim, (i+1)*headDim)
			vh := vg.Slice(ctx, 1, i*headDim, (i+1)*headDim)

			attn := kh.Mulmat(ctx, qh).Scale(ctx, scale).Softmax(ctx)
			heads = concat(ctx, heads, vh.Transpose(ctx).Mulmat(ctx, attn), 1)
		}
		out = concat(ctx, out, heads, 0)
	}

	if out == nil {
		return ctx.Zeros(ml.DTypeF32, 0, dim), nil
	}
	return m.OutProj.Forward(ctx, out), nil
}

// Exphormer berechnet Attention nur entlang von expander_edge_index. Mit
// virtuellen Knoten werden deren Zustaende aus virt_h angehaengt und
// anschliessend aktualisiert zurueckgeschrieben.
type Exphormer struct {
	Q *nn.Linear `gps:"Q"`
	K *nn.Linear `gps:"K"`
	E *nn.Linear `gps:"E"`
	V *nn.Linear `gps:"V"`

	numHeads     int
	useVirtNodes bool
}

func NewExphormer(ctx ml.Context, dim, dimEdge, numHeads int, useVirtNodes bool) *Exphormer {
	return &Exphormer{
		Q:            nn.NewLinear(ctx, dim, dim, false),
		K:            nn.NewLinear(ctx, dim, dim, false),
		E:            nn.NewLinear(ctx, dimEdge, dim, false),
		V:            nn.NewLinear(ctx, dim, dim, false),
		numHeads:     numHeads,
		useVirtNodes: useVirtNodes,
	}
}

func (m *Exphormer) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	index, err := batch.Get("expander_edge_index")
	if err != nil {
		return nil, err
	}

	attr, err := batch.Get("expander_edge_attr")
	if err != nil {
		return nil, err
	}

	if attr.Dim(1) != m.E.In() {
		return nil, fmt.Errorf("%w: expander_edge_attr has width %d, expected %d", model.ErrDimMismatch, attr.Dim(1), m.E.In())
	}

	n := h.Dim(0)
	if m.useVirtNodes {
		virt, err := batch.Get("virt_h")
		if err != nil {
			return nil, err
		}
		h = h.Concat(ctx, virt, 0)
	}

	total := h.Dim(0)
	src, dst := graph.Endpoints(index)
	for i := range src {
		if int(src[i]) >= total || int(dst[i]) >= total {
			return nil, fmt.Errorf("expander edge %d (%d, %d) out of range for %d nodes", i, src[i], dst[i], total)
		}
	}
	srcIdx, dstIdx := ctx.FromInts(src, len(src)), ctx.FromInts(dst, len(dst))

	headDim := m.Q.Out() / m.numHeads
	score := m.K.Forward(ctx, h).Rows(ctx, srcIdx).
		Mul(ctx, m.Q.Forward(ctx, h).Rows(ctx, dstIdx)).
		Scale(ctx, 1/math.Sqrt(float64(headDim))).
		Mul(ctx, m.E.Forward(ctx, attr))
	values := m.V.Forward(ctx, h).Rows(ctx, srcIdx)

	eps := ctx.FromFloats([]float32{1e-6}, 1)

	var out ml.Tensor
	for i := range m.numHeads {
		s := score.Slice(ctx, 1, i*headDim, (i+1)*headDim).SumRows(ctx).Clamp(ctx, -5, 5).Exp(ctx)
		wV := values.Slice(ctx, 1, i*headDim, (i+1)*headDim).Mul(ctx, s).Scatter(ctx, dstIdx, total, ml.ReduceSum)
		z := s.Scatter(ctx, dstIdx, total, ml.ReduceSum).Add(ctx, eps)
		out = concat(ctx, out, wV.Div(ctx, z), 1)
	}

	if m.useVirtNodes {
		batch.Set("virt_h", out.Slice(ctx, 0, n, total))
		out = out.Slice(ctx, 0, 0, n)
	}
	return out, nil
}

func concat(ctx ml.Context, a, b ml.Tensor, dim int) ml.Tensor {
	if a == nil {
		return b
	}
	return a.Concat(ctx, b, dim)
}
