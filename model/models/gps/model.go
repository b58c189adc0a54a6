// Modul: model.go
// Beschreibung: Graph-Transformer-Netzwerke MultiModel und SingleModel
// Hauptstrukturen:
//   - Model: Encoder, optionales pre_mp, Schichtstapel und Vorhersage-Kopf
//   - NewMultiModel: Schichten kombinieren mehrere Typen und haben einen FFN-Block
//   - NewSingleModel: Schichten mit genau einem Typ ohne FFN-Block

package gps

import (
	"fmt"
	"strings"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
	"github.com/graphgps/gps/model/encoders"
	"github.com/graphgps/gps/model/layers"
)

// Model runs encoder, pre_mp, layers and post_mp in that order.
type Model struct {
	Encoder *encoders.FeatureEncoder `gps:"encoder"`
	PreMP   *layers.GNNPreMP         `gps:"pre_mp"`
	Layers  []model.Module           `gps:"layers"`
	PostMP  model.Module             `gps:"post_mp"`

	name string
}

type newLayerFunc func(ctx ml.Context, layerType string, opts *layers.Options) (model.Module, error)

// NewMultiModel erstellt ein MultiModel. gt.layer_type nennt die Typen
// jeder Schicht, getrennt durch "+".
func NewMultiModel(ctx ml.Context, c fs.Config, dimIn, dimOut int) (model.Module, error) {
	return newModel(ctx, c, dimIn, dimOut, "MultiModel", func(ctx ml.Context, layerType string, opts *layers.Options) (model.Module, error) {
		return layers.NewMultiLayer(ctx, strings.Split(layerType, "+"), opts)
	})
}

// NewSingleModel erstellt ein SingleModel mit gt.layer_type als einzigem
// Schichttyp.
func NewSingleModel(ctx ml.Context, c fs.Config, dimIn, dimOut int) (model.Module, error) {
	return newModel(ctx, c, dimIn, dimOut, "SingleModel", func(ctx ml.Context, layerType string, opts *layers.Options) (model.Module, error) {
		return layers.NewSingleLayer(ctx, layerType, opts)
	})
}

func newModel(ctx ml.Context, c fs.Config, dimIn, dimOut int, name string, newLayer newLayerFunc) (model.Module, error) {
	encoder, err := encoders.NewFeatureEncoder(ctx, c, dimIn)
	if err != nil {
		return nil, fmt.Errorf("%s: encoder: %w", name, err)
	}

	m := Model{Encoder: encoder, name: name}
	dimIn = encoder.DimIn()

	dimInner := int(c.Uint("gnn.dim_inner"))
	if n := int(c.Uint("gnn.layers_pre_mp")); n > 0 {
		act, err := nn.ActivationByName(c.String("gnn.act", "relu"))
		if err != nil {
			return nil, err
		}

		m.PreMP = layers.NewGNNPreMP(ctx, dimIn, dimInner, n, c.Bool("gnn.batchnorm"), act)
		dimIn = dimInner
	}

	if dimHidden := int(c.Uint("gt.dim_hidden")); dimHidden != dimInner || dimInner != dimIn {
		return nil, fmt.Errorf("%s: %w: gt.dim_hidden %d, gnn.dim_inner %d, input %d", name, model.ErrDimMismatch, dimHidden, dimInner, dimIn)
	}

	opts, err := layers.NewOptions(c, encoders.DimEdge(c))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	layerType := c.String("gt.layer_type")
	if layerType == "" {
		return nil, fmt.Errorf("%s: %w: empty gt.layer_type", name, layers.ErrUnsupportedLayer)
	}

	for i := range int(c.Uint("gt.layers")) {
		l, err := newLayer(ctx, layerType, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: layer %d: %w", name, i, err)
		}
		m.Layers = append(m.Layers, l)
	}

	m.PostMP, err = model.NewHead(ctx, c, c.String("gnn.head"), dimInner, dimOut)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &m, nil
}

func (m *Model) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	batch, err := m.Encoder.Forward(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	if m.PreMP != nil {
		if batch, err = m.PreMP.Forward(ctx, batch); err != nil {
			return nil, fmt.Errorf("pre_mp: %w", err)
		}
	}

	for i, l := range m.Layers {
		if batch, err = l.Forward(ctx, batch); err != nil {
			return nil, fmt.Errorf("layers.%d: %w", i, err)
		}
	}

	if batch, err = m.PostMP.Forward(ctx, batch); err != nil {
		return nil, fmt.Errorf("post_mp: %w", err)
	}
	return batch, nil
}

// Name returns the registered network name.
func (m *Model) Name() string {
	return m.name
}

// DimIn returns the node feature width after the feature encoder.
func (m *Model) DimIn() int {
	return m.Encoder.DimIn()
}

func init() {
	model.Register("MultiModel", NewMultiModel)
	model.Register("SingleModel", NewSingleModel)
}
