// Modul: premp.go
// Beschreibung: GraphGym-Linearschichten vor dem Message Passing
// Hauptstrukturen:
//   - GeneralLayer: Linear, optional BatchNorm, optional Aktivierung
//   - GeneralMultiLayer: Folge von GeneralLayer ("Layer_<i>")
//   - GNNPreMP: wendet GeneralMultiLayer auf die Knotenmerkmale an

package layers

import (
	"fmt"
	"iter"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

type linear struct {
	Model *nn.Linear `gps:"model"`
}

// GeneralLayer is a linear layer followed by an optional batch norm and
// activation. The linear bias is dropped when the batch norm is present.
type GeneralLayer struct {
	Layer linear        `gps:"layer"`
	BN    *nn.BatchNorm `gps:"post_layer.0"`

	act nn.Activation
}

// NewGeneralLayer erstellt eine Schicht in→out. act darf nil sein.
func NewGeneralLayer(ctx ml.Context, in, out int, batchNorm bool, act nn.Activation) *GeneralLayer {
	l := GeneralLayer{
		Layer: linear{Model: nn.NewLinear(ctx, in, out, !batchNorm)},
		act:   act,
	}
	if batchNorm {
		l.BN = nn.NewBatchNorm(ctx, out)
	}
	return &l
}

func (l *GeneralLayer) Apply(ctx ml.Context, x ml.Tensor) ml.Tensor {
	x = l.Layer.Model.Forward(ctx, x)
	if l.BN != nil {
		x = l.BN.Forward(ctx, x)
	}
	if l.act != nil {
		x = l.act(ctx, x)
	}
	return x
}

func (l *GeneralLayer) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	return applyX(ctx, batch, l.Layer.Model.In(), l.Apply)
}

// GeneralMultiLayer stapelt n GeneralLayer. Alle ausser der letzten haben
// eine Aktivierung, die letzte nur bei finalAct.
type GeneralMultiLayer struct {
	layers []*GeneralLayer
}

func NewGeneralMultiLayer(ctx ml.Context, n, dimIn, dimOut, dimInner int, finalAct, batchNorm bool, act nn.Activation) *GeneralMultiLayer {
	var m GeneralMultiLayer
	for i := range n {
		in, out := dimInner, dimInner
		if i == 0 {
			in = dimIn
		}

		layerAct := act
		if i == n-1 {
			out = dimOut
			if !finalAct {
				layerAct = nil
			}
		}

		m.layers = append(m.layers, NewGeneralLayer(ctx, in, out, batchNorm, layerAct))
	}
	return &m
}

func (m *GeneralMultiLayer) Children() iter.Seq2[string, model.Module] {
	return func(yield func(string, model.Module) bool) {
		for i, l := range m.layers {
			if !yield(fmt.Sprintf("Layer_%d", i), l) {
				return
			}
		}
	}
}

// In returns the input width of the first layer.
func (m *GeneralMultiLayer) In() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[0].Layer.Model.In()
}

func (m *GeneralMultiLayer) Apply(ctx ml.Context, x ml.Tensor) ml.Tensor {
	for _, l := range m.layers {
		x = l.Apply(ctx, x)
	}
	return x
}

func (m *GeneralMultiLayer) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	return applyX(ctx, batch, m.In(), m.Apply)
}

// GNNPreMP projiziert die Knotenmerkmale vor den Graph-Schichten auf
// gnn.dim_inner
type GNNPreMP struct {
	Model *GeneralMultiLayer `gps:"model"`
}

func NewGNNPreMP(ctx ml.Context, dimIn, dimOut, numLayers int, batchNorm bool, act nn.Activation) *GNNPreMP {
	return &GNNPreMP{Model: NewGeneralMultiLayer(ctx, numLayers, dimIn, dimOut, dimOut, true, batchNorm, act)}
}

func (m *GNNPreMP) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	return applyX(ctx, batch, m.Model.In(), m.Model.Apply)
}

func applyX(ctx ml.Context, batch *graph.Batch, in int, fn func(ml.Context, ml.Tensor) ml.Tensor) (*graph.Batch, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	if x.Dim(1) != in {
		return nil, fmt.Errorf("%w: x has %d features, layer expects %d", model.ErrDimMismatch, x.Dim(1), in)
	}

	batch.X = fn(ctx, x)
	return batch, nil
}
