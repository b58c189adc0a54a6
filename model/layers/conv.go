// Modul: conv.go
// Beschreibung: Lokale Message-Passing-Schichten
// Hauptstrukturen:
//   - GCN: symmetrisch normalisierte Graph-Faltung mit Selbstschleifen
//   - GIN / GINE: Graph Isomorphism Network, GINE mit Kantenmerkmalen
//   - GatedGCN: Residual Gated Graph ConvNet, aktualisiert auch edge_attr

package layers

import (
	"fmt"
	"math"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

// GCN ist eine GCNConv-Schicht: D^-1/2 (A+I) D^-1/2 h W + b
type GCN struct {
	Lin  *nn.Linear `gps:"lin"`
	Bias ml.Tensor  `gps:"bias"`
}

func NewGCN(ctx ml.Context, dim int) *GCN {
	return &GCN{
		Lin:  nn.NewXavierLinear(ctx, dim, dim, false),
		Bias: ctx.Zeros(ml.DTypeF32, dim),
	}
}

func (m *GCN) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	n := h.Dim(0)
	index, _ := graph.AddSelfLoops(ctx, batch.EdgeIndex, nil, n, 1)
	src, dst := graph.Endpoints(index)

	deg := graph.Degree(dst, n)
	norm := make([]float32, len(src))
	for i := range src {
		norm[i] = float32(1 / math.Sqrt(deg[src[i]]*deg[dst[i]]))
	}

	h = m.Lin.Forward(ctx, h)
	msg := h.Rows(ctx, ctx.FromInts(src, len(src))).Mul(ctx, ctx.FromFloats(norm, len(norm), 1))
	h = msg.Scatter(ctx, ctx.FromInts(dst, len(dst)), n, ml.ReduceSum)
	if m.Bias != nil {
		h = h.Add(ctx, m.Bias)
	}
	return h, nil
}

// mlp ist das zweischichtige Netz Linear-ReLU-Linear von GIN und GINE
type mlp struct {
	L1 *nn.Linear `gps:"0"`
	L2 *nn.Linear `gps:"2"`
}

func newMLP(ctx ml.Context, dim int) *mlp {
	return &mlp{L1: nn.NewLinear(ctx, dim, dim, true), L2: nn.NewLinear(ctx, dim, dim, true)}
}

func (m *mlp) Forward(ctx ml.Context, h ml.Tensor) ml.Tensor {
	return m.L2.Forward(ctx, m.L1.Forward(ctx, h).RELU(ctx))
}

// GIN berechnet nn((1+eps)·h_i + Σ_j h_j)
type GIN struct {
	NN  *mlp      `gps:"nn"`
	Eps ml.Tensor `gps:"eps"`
}

func NewGIN(ctx ml.Context, dim int) *GIN {
	return &GIN{NN: newMLP(ctx, dim), Eps: ctx.Zeros(ml.DTypeF32, 1)}
}

func (m *GIN) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	src, dst := graph.Endpoints(batch.EdgeIndex)
	aggr := h.Rows(ctx, ctx.FromInts(src, len(src))).Scatter(ctx, ctx.FromInts(dst, len(dst)), h.Dim(0), ml.ReduceSum)
	return m.NN.Forward(ctx, selfWeighted(ctx, h, m.Eps).Add(ctx, aggr)), nil
}

// GINE berechnet nn((1+eps)·h_i + Σ_j relu(h_j + e_ji))
type GINE struct {
	NN  *mlp      `gps:"nn"`
	Eps ml.Tensor `gps:"eps"`
}

func NewGINE(ctx ml.Context, dim int) *GINE {
	return &GINE{NN: newMLP(ctx, dim), Eps: ctx.Zeros(ml.DTypeF32, 1)}
}

func (m *GINE) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	attr, err := batch.Get(graph.KeyEdgeAttr)
	if err != nil {
		return nil, err
	}

	if attr.Dim(1) != h.Dim(1) {
		return nil, fmt.Errorf("%w: GINE needs edge_attr of width %d, got %d", model.ErrDimMismatch, h.Dim(1), attr.Dim(1))
	}

	src, dst := graph.Endpoints(batch.EdgeIndex)
	msg := h.Rows(ctx, ctx.FromInts(src, len(src))).Add(ctx, attr).RELU(ctx)
	aggr := msg.Scatter(ctx, ctx.FromInts(dst, len(dst)), h.Dim(0), ml.ReduceSum)
	return m.NN.Forward(ctx, selfWeighted(ctx, h, m.Eps).Add(ctx, aggr)), nil
}

func selfWeighted(ctx ml.Context, h, eps ml.Tensor) ml.Tensor {
	if eps == nil {
		return h
	}
	return h.Add(ctx, h.Mul(ctx, eps))
}

// GatedGCN ist die Residual-Gated-Graph-ConvNet-Schicht. Sie schreibt die
// neuen Kantenmerkmale nach batch.EdgeAttr und addiert die Residuen selbst.
type GatedGCN struct {
	A *nn.Linear `gps:"A"`
	B *nn.Linear `gps:"B"`
	C *nn.Linear `gps:"C"`
	D *nn.Linear `gps:"D"`
	E *nn.Linear `gps:"E"`

	BNNodeX *nn.BatchNorm `gps:"bn_node_x"`
	BNEdgeE *nn.BatchNorm `gps:"bn_edge_e"`

	act nn.Activation
}

func NewGatedGCN(ctx ml.Context, dim int, act nn.Activation) *GatedGCN {
	return &GatedGCN{
		A:       nn.NewLinear(ctx, dim, dim, true),
		B:       nn.NewLinear(ctx, dim, dim, true),
		C:       nn.NewLinear(ctx, dim, dim, true),
		D:       nn.NewLinear(ctx, dim, dim, true),
		E:       nn.NewLinear(ctx, dim, dim, true),
		BNNodeX: nn.NewBatchNorm(ctx, dim),
		BNEdgeE: nn.NewBatchNorm(ctx, dim),
		act:     act,
	}
}

func (m *GatedGCN) Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error) {
	e, err := batch.Get(graph.KeyEdgeAttr)
	if err != nil {
		return nil, err
	}

	if e.Dim(1) != m.C.In() {
		return nil, fmt.Errorf("%w: GatedGCN needs edge_attr of width %d, got %d", model.ErrDimMismatch, m.C.In(), e.Dim(1))
	}

	src, dst := graph.Endpoints(batch.EdgeIndex)
	srcIdx, dstIdx := ctx.FromInts(src, len(src)), ctx.FromInts(dst, len(dst))
	n := h.Dim(0)

	// e_ij = D h_i + E h_j + C e_ij mit i als Ziel und j als Quelle
	eij := m.D.Forward(ctx, h).Rows(ctx, dstIdx).
		Add(ctx, m.E.Forward(ctx, h).Rows(ctx, srcIdx)).
		Add(ctx, m.C.Forward(ctx, e))
	sigma := eij.Sigmoid(ctx)

	num := sigma.Mul(ctx, m.B.Forward(ctx, h).Rows(ctx, srcIdx)).Scatter(ctx, dstIdx, n, ml.ReduceSum)
	den := sigma.Scatter(ctx, dstIdx, n, ml.ReduceSum).Add(ctx, ctx.FromFloats([]float32{1e-6}, 1))
	x := m.A.Forward(ctx, h).Add(ctx, num.Div(ctx, den))

	x = m.act(ctx, m.BNNodeX.Forward(ctx, x))
	eij = m.act(ctx, m.BNEdgeE.Forward(ctx, eij))

	batch.EdgeAttr = e.Add(ctx, eij)
	return h.Add(ctx, x), nil
}
