// Modul: heads.go
// Beschreibung: Vorhersage-Koepfe, die Batch.Pred setzen
// Hauptstrukturen:
//   - MLP: GraphGym-MLP aus GeneralMultiLayer und abschliessender Linearschicht
//   - Node: Vorhersage je Knoten
//   - Graph: Pooling je Graph (mean/add/max) und MLP
//   - SANGraph: Pooling und MLP mit halbierter Breite je Schicht

package heads

import (
	"fmt"
	"iter"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
	"github.com/graphgps/gps/model/layers"
)

func init() {
	model.RegisterHead("node", func(ctx ml.Context, c fs.Config, dimIn, dimOut int) (model.Module, error) {
		mlp, err := newMLPFromConfig(ctx, c, dimIn, dimOut)
		if err != nil {
			return nil, err
		}
		return &Node{LayerPostMP: mlp}, nil
	})

	model.RegisterHead("graph", func(ctx ml.Context, c fs.Config, dimIn, dimOut int) (model.Module, error) {
		pooling, err := poolingFromConfig(c)
		if err != nil {
			return nil, err
		}

		mlp, err := newMLPFromConfig(ctx, c, dimIn, dimOut)
		if err != nil {
			return nil, err
		}
		return &Graph{LayerPostMP: mlp, pooling: pooling}, nil
	})

	model.RegisterHead("san_graph", func(ctx ml.Context, c fs.Config, dimIn, dimOut int) (model.Module, error) {
		pooling, err := poolingFromConfig(c)
		if err != nil {
			return nil, err
		}
		return NewSANGraph(ctx, dimIn, dimOut, int(c.Uint("gnn.layers_post_mp", 1)), pooling)
	})
}

func poolingFromConfig(c fs.Config) (ml.Reduce, error) {
	name := c.String("model.graph_pooling", "mean")
	pooling, ok := ml.ParseReduce(name)
	if !ok {
		return 0, fmt.Errorf("unknown graph pooling %q", name)
	}
	return pooling, nil
}

func newMLPFromConfig(ctx ml.Context, c fs.Config, dimIn, dimOut int) (*MLP, error) {
	act, err := nn.ActivationByName(c.String("gnn.act", "relu"))
	if err != nil {
		return nil, err
	}

	return NewMLP(ctx, MLPOptions{
		NumLayers: int(c.Uint("gnn.layers_post_mp", 1)),
		DimIn:     dimIn,
		DimOut:    dimOut,
		DimInner:  int(c.Uint("gnn.dim_inner", uint32(dimIn))),
		BatchNorm: c.Bool("gnn.batchnorm"),
		Act:       act,
	}), nil
}

// MLPOptions configures MLP.
type MLPOptions struct {
	NumLayers               int
	DimIn, DimOut, DimInner int
	BatchNorm               bool
	Act                     nn.Activation
}

// MLP is GraphGym's MLP: NumLayers-1 general layers of width DimInner
// followed by a plain linear layer to DimOut.
type MLP struct {
	hidden *layers.GeneralMultiLayer
	out    linear
}

type linear struct {
	Model *nn.Linear `gps:"model"`
}

func (l *linear) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	batch.X = l.Model.Forward(ctx, batch.X)
	return batch, nil
}

func NewMLP(ctx ml.Context, opts MLPOptions) *MLP {
	var m MLP
	in := opts.DimIn
	if opts.NumLayers > 1 {
		m.hidden = layers.NewGeneralMultiLayer(ctx, opts.NumLayers-1, opts.DimIn, opts.DimInner, opts.DimInner, true, opts.BatchNorm, opts.Act)
		in = opts.DimInner
	}
	m.out.Model = nn.NewLinear(ctx, in, opts.DimOut, true)
	return &m
}

func (m *MLP) Children() iter.Seq2[string, model.Module] {
	return func(yield func(string, model.Module) bool) {
		if m.hidden == nil {
			yield("model.0", &m.out)
			return
		}

		if yield("model.0", m.hidden) {
			yield("model.1", &m.out)
		}
	}
}

// In returns the expected input width.
func (m *MLP) In() int {
	if m.hidden != nil {
		return m.hidden.In()
	}
	return m.out.Model.In()
}

func (m *MLP) Apply(ctx ml.Context, x ml.Tensor) (ml.Tensor, error) {
	if x.Dim(1) != m.In() {
		return nil, fmt.Errorf("%w: head expects %d features, got %d", model.ErrDimMismatch, m.In(), x.Dim(1))
	}

	if m.hidden != nil {
		x = m.hidden.Apply(ctx, x)
	}
	return m.out.Model.Forward(ctx, x), nil
}

// Node sagt fuer jeden Knoten eine Zeile voraus
type Node struct {
	LayerPostMP *MLP `gps:"layer_post_mp"`
}

func (m *Node) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	batch.Pred, err = m.LayerPostMP.Apply(ctx, x)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// Graph fasst die Knoten jedes Graphen zusammen und sagt eine Zeile je
// Graph voraus
type Graph struct {
	LayerPostMP *MLP `gps:"layer_post_mp"`

	pooling ml.Reduce
}

func (m *Graph) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	emb, err := pool(ctx, batch, m.pooling)
	if err != nil {
		return nil, err
	}

	batch.Pred, err = m.LayerPostMP.Apply(ctx, emb)
	if err != nil {
		return nil, err
	}
	batch.Set("graph_feature", batch.Pred)
	return batch, nil
}

// SANGraph halbiert die Breite in jeder der L versteckten Schichten
type SANGraph struct {
	FCLayers []*nn.Linear `gps:"FC_layers"`

	pooling ml.Reduce
}

func NewSANGraph(ctx ml.Context, dimIn, dimOut, numLayers int, pooling ml.Reduce) (*SANGraph, error) {
	if dimIn>>numLayers == 0 {
		return nil, fmt.Errorf("%w: %d layers halve width %d to zero", model.ErrDimMismatch, numLayers, dimIn)
	}

	m := SANGraph{pooling: pooling}
	for l := range numLayers {
		m.FCLayers = append(m.FCLayers, nn.NewLinear(ctx, dimIn>>l, dimIn>>(l+1), true))
	}
	m.FCLayers = append(m.FCLayers, nn.NewLinear(ctx, dimIn>>numLayers, dimOut, true))
	return &m, nil
}

func (m *SANGraph) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	x, err := pool(ctx, batch, m.pooling)
	if err != nil {
		return nil, err
	}

	if in := m.FCLayers[0].In(); x.Dim(1) != in {
		return nil, fmt.Errorf("%w: head expects %d features, got %d", model.ErrDimMismatch, in, x.Dim(1))
	}

	last := len(m.FCLayers) - 1
	for _, fc := range m.FCLayers[:last] {
		x = fc.Forward(ctx, x).RELU(ctx)
	}

	batch.Pred = m.FCLayers[last].Forward(ctx, x)
	return batch, nil
}

func pool(ctx ml.Context, batch *graph.Batch, reduce ml.Reduce) (ml.Tensor, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	ids, err := batch.Get(graph.KeyBatch)
	if err != nil {
		return nil, err
	}
	return x.Scatter(ctx, ids, batch.NumGraphs(), reduce), nil
}
