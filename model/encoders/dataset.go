// Modul: dataset.go
// Beschreibung: Encoder fuer die Rohmerkmale eines Datensatzes
// Hauptstrukturen:
//   - LinearNode / LinearEdge: lineare Projektion von x bzw. edge_attr
//   - TypeDictNode / TypeDictEdge: Embedding ganzzahliger Typen
//   - DummyEdge: ein gemeinsames gelerntes Merkmal fuer alle Kanten
//   - BatchNorm1dNode / BatchNorm1dEdge: BatchNorm auf x bzw. edge_attr

package encoders

import (
	"errors"
	"fmt"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

func init() {
	model.RegisterNodeEncoder("LinearNode", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		return &LinearNode{Encoder: nn.NewLinear(ctx, int(c.Uint("share.dim_in", 1)), dim, true)}, nil
	})

	model.RegisterNodeEncoder("TypeDictNode", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		n := int(c.Uint("dataset.node_encoder_num_types"))
		if n < 1 {
			return nil, fmt.Errorf("invalid dataset.node_encoder_num_types %d", n)
		}
		return &TypeDictNode{Encoder: nn.NewEmbedding(ctx, n, dim)}, nil
	})

	model.RegisterEdgeEncoder("LinearEdge", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		return &LinearEdge{Encoder: nn.NewLinear(ctx, int(c.Uint("dataset.edge_dim", 1)), dim, true)}, nil
	})

	model.RegisterEdgeEncoder("TypeDictEdge", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		n := int(c.Uint("dataset.edge_encoder_num_types"))
		if n < 1 {
			return nil, fmt.Errorf("invalid dataset.edge_encoder_num_types %d", n)
		}
		return &TypeDictEdge{Encoder: nn.NewEmbedding(ctx, n, dim)}, nil
	})

	model.RegisterEdgeEncoder("DummyEdge", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		return &DummyEdge{Encoder: nn.NewEmbedding(ctx, 1, dim)}, nil
	})
}

// LinearNode projects x to the hidden width.
type LinearNode struct {
	Encoder *nn.Linear `gps:"encoder"`
}

func (m *LinearNode) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	if x.Dim(1) != m.Encoder.In() {
		return nil, fmt.Errorf("%w: x has %d features, encoder expects %d", model.ErrDimMismatch, x.Dim(1), m.Encoder.In())
	}

	batch.X = m.Encoder.Forward(ctx, x)
	return batch, nil
}

// TypeDictNode embeds the integer type stored in the first column of x.
type TypeDictNode struct {
	Encoder *nn.Embedding `gps:"encoder"`
}

func (m *TypeDictNode) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}

	ids, err := typeIDs(ctx, x, m.Encoder.Weight.Dim(0))
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}

	batch.X = m.Encoder.Forward(ctx, ids)
	return batch, nil
}

// LinearEdge projects edge_attr to the edge width.
type LinearEdge struct {
	Encoder *nn.Linear `gps:"encoder"`
}

func (m *LinearEdge) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	attr, err := batch.Get(graph.KeyEdgeAttr)
	if err != nil {
		return nil, err
	}

	in, total := m.Encoder.In(), attr.Dim(0)*attr.Dim(1)
	if in == 0 || total%in != 0 {
		return nil, fmt.Errorf("%w: edge_attr of shape %v cannot be viewed as rows of %d", model.ErrDimMismatch, attr.Shape(), in)
	}

	batch.EdgeAttr = m.Encoder.Forward(ctx, attr.Reshape(ctx, total/in, in))
	return batch, nil
}

// TypeDictEdge embeds the integer type stored in the first column of
// edge_attr.
type TypeDictEdge struct {
	Encoder *nn.Embedding `gps:"encoder"`
}

func (m *TypeDictEdge) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	attr, err := batch.Get(graph.KeyEdgeAttr)
	if err != nil {
		return nil, err
	}

	ids, err := typeIDs(ctx, attr, m.Encoder.Weight.Dim(0))
	if err != nil {
		return nil, fmt.Errorf("edge_attr: %w", err)
	}

	batch.EdgeAttr = m.Encoder.Forward(ctx, ids)
	return batch, nil
}

// DummyEdge gives every edge the same learned attribute.
type DummyEdge struct {
	Encoder *nn.Embedding `gps:"encoder"`
}

func (m *DummyEdge) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	batch.EdgeAttr = m.Encoder.Forward(ctx, ctx.Zeros(ml.DTypeI32, batch.NumEdges()))
	return batch, nil
}

// BatchNorm1dNode normalises x.
type BatchNorm1dNode struct {
	BN *nn.BatchNorm `gps:"bn"`
}

func NewBatchNorm1dNode(ctx ml.Context, dim int) *BatchNorm1dNode {
	return &BatchNorm1dNode{BN: nn.NewBatchNorm(ctx, dim)}
}

func (m *BatchNorm1dNode) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	x, err := batch.Get(graph.KeyX)
	if err != nil {
		return nil, err
	}
	if w := m.BN.RunningMean.Dim(0); x.Dim(1) != w {
		return nil, fmt.Errorf("%w: batch norm over %d features, x has %d", model.ErrDimMismatch, w, x.Dim(1))
	}
	batch.X = m.BN.Forward(ctx, x)
	return batch, nil
}

// BatchNorm1dEdge normalises edge_attr.
type BatchNorm1dEdge struct {
	BN *nn.BatchNorm `gps:"bn"`
}

func NewBatchNorm1dEdge(ctx ml.Context, dim int) *BatchNorm1dEdge {
	return &BatchNorm1dEdge{BN: nn.NewBatchNorm(ctx, dim)}
}

func (m *BatchNorm1dEdge) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	attr, err := batch.Get(graph.KeyEdgeAttr)
	if err != nil {
		return nil, err
	}
	batch.EdgeAttr = m.BN.Forward(ctx, attr)
	return batch, nil
}

var errTypeID = errors.New("invalid type id")

// typeIDs reads the first column of t as integer ids below n.
func typeIDs(ctx ml.Context, t ml.Tensor, n int) (ml.Tensor, error) {
	if len(t.Shape()) == 2 {
		t = t.Slice(ctx, 1, 0, 1)
	}

	ids := t.Ints()
	for i, v := range ids {
		if v < 0 || int(v) >= n {
			return nil, fmt.Errorf("%w %d in row %d, expected [0, %d)", errTypeID, v, i, n)
		}
	}
	return ctx.FromInts(ids, len(ids)), nil
}
