// Modul: layer.go
// Beschreibung: Schichten, die lokale und globale Modelle kombinieren
// Hauptstrukturen:
//   - Model: Interface fuer eine lokale oder globale Teilschicht
//   - NewModel: erstellt die Teilschicht zu einem Typnamen
//   - MultiLayer: Summe mehrerer Modelle plus Feed-Forward-Block
//   - SingleLayer: genau ein Modell ohne Feed-Forward-Block

package layers

import (
	"errors"
	"fmt"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
)

var ErrUnsupportedLayer = errors.New("unsupported layer type")

// Model is a local message passing or global attention model. It returns
// the new node states for h without the residual connection, except for
// GatedGCN which adds its residuals itself.
type Model interface {
	Forward(ctx ml.Context, h ml.Tensor, batch *graph.Batch) (ml.Tensor, error)
}

// NewModel erstellt die Teilschicht fuer typ. "None" liefert nil.
func NewModel(ctx ml.Context, typ string, opts *Options) (Model, error) {
	switch typ {
	case "None":
		return nil, nil
	case "GCN":
		return NewGCN(ctx, opts.DimHidden), nil
	case "GIN":
		return NewGIN(ctx, opts.DimHidden), nil
	case "GINE":
		return NewGINE(ctx, opts.DimHidden), nil
	case "GatedGCN", "CustomGatedGCN":
		return NewGatedGCN(ctx, opts.DimHidden, opts.Act), nil
	case "Transformer":
		return NewTransformer(ctx, opts.DimHidden, opts.NumHeads), nil
	case "Exphormer":
		return NewExphormer(ctx, opts.DimHidden, opts.DimEdge, opts.NumHeads, opts.NumVirtNode > 0), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLayer, typ)
	}
}

func hasResidual(m Model) bool {
	_, ok := m.(*GatedGCN)
	return ok
}

// Norm normalisiert die Knotenzustaende eines Batches
type Norm interface {
	Normalize(ctx ml.Context, h ml.Tensor, batch *graph.Batch) ml.Tensor
}

type layerNorm struct {
	*nn.GraphLayerNorm
}

func (n *layerNorm) Normalize(ctx ml.Context, h ml.Tensor, batch *graph.Batch) ml.Tensor {
	return n.Forward(ctx, h, batch.Batch, batch.NumGraphs())
}

type batchNorm struct {
	*nn.BatchNorm
}

func (n *batchNorm) Normalize(ctx ml.Context, h ml.Tensor, _ *graph.Batch) ml.Tensor {
	return n.Forward(ctx, h)
}

// newNorm liefert BatchNorm, wenn gt.batch_norm gesetzt ist, sonst die
// graphweise LayerNorm bei gt.layer_norm und andernfalls nil.
func newNorm(ctx ml.Context, opts *Options) Norm {
	switch {
	case opts.BatchNorm:
		return &batchNorm{nn.NewBatchNorm(ctx, opts.DimHidden)}
	case opts.LayerNorm:
		return &layerNorm{nn.NewGraphLayerNorm(ctx, opts.DimHidden)}
	default:
		return nil
	}
}

// MultiLayer fuehrt mehrere Modelle parallel auf derselben Eingabe aus,
// summiert ihre normalisierten Ausgaben und wendet einen Feed-Forward-Block
// mit doppelter Breite an.
type MultiLayer struct {
	Models []Model `gps:"models"`
	Norms  []Norm  `gps:"norms"`

	FFLinear1 *nn.Linear `gps:"ff_linear1"`
	FFLinear2 *nn.Linear `gps:"ff_linear2"`
	Norm2     Norm       `gps:"norm2"`

	types []string
}

func NewMultiLayer(ctx ml.Context, types []string, opts *Options) (*MultiLayer, error) {
	l := MultiLayer{
		FFLinear1: nn.NewLinear(ctx, opts.DimHidden, 2*opts.DimHidden, true),
		FFLinear2: nn.NewLinear(ctx, 2*opts.DimHidden, opts.DimHidden, true),
		Norm2:     newNorm(ctx, opts),
	}

	for _, typ := range types {
		m, err := NewModel(ctx, typ, opts)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}

		l.Models = append(l.Models, m)
		l.Norms = append(l.Norms, newNorm(ctx, opts))
		l.types = append(l.types, typ)
	}
	return &l, nil
}

// Types returns the model types of the layer without "None" entries.
func (l *MultiLayer) Types() []string {
	return l.types
}

func (l *MultiLayer) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	h, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	var sum ml.Tensor
	for i, m := range l.Models {
		out, err := m.Forward(ctx, h, batch)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.types[i], err)
		}

		if !hasResidual(m) {
			out = h.Add(ctx, out)
		}
		if l.Norms[i] != nil {
			out = l.Norms[i].Normalize(ctx, out, batch)
		}

		if sum == nil {
			sum = out
		} else {
			sum = sum.Add(ctx, out)
		}
	}

	if sum == nil {
		sum = h
	}

	h = sum.Add(ctx, l.FFLinear2.Forward(ctx, l.FFLinear1.Forward(ctx, sum).RELU(ctx)))
	if l.Norm2 != nil {
		h = l.Norm2.Normalize(ctx, h, batch)
	}

	batch.X = h
	return batch, nil
}

// SingleLayer fuehrt ein Modell mit Residuum und Normalisierung aus
type SingleLayer struct {
	Model Model `gps:"model"`
	Norm  Norm  `gps:"norm"`

	typ string
}

func NewSingleLayer(ctx ml.Context, typ string, opts *Options) (*SingleLayer, error) {
	m, err := NewModel(ctx, typ, opts)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: a single layer needs a model, got %q", ErrUnsupportedLayer, typ)
	}
	return &SingleLayer{Model: m, Norm: newNorm(ctx, opts), typ: typ}, nil
}

func (l *SingleLayer) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	h, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	out, err := l.Model.Forward(ctx, h, batch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.typ, err)
	}

	if !hasResidual(l.Model) {
		out = h.Add(ctx, out)
	}
	if l.Norm != nil {
		out = l.Norm.Normalize(ctx, out, batch)
	}

	batch.X = out
	return batch, nil
}
