// Modul: arrwp.go
// Beschreibung: Lineare Encoder fuer Random-Walk Positional Encodings
// Hauptstrukturen:
//   - ARRWPLinearNodeEncoder: projiziert node_<name> und addiert auf x
//   - ARRWPLinearEdgeEncoder: projiziert edge_<name>_val und fuegt die
//     Kanten mit edge_index zusammen

package encoders

import (
	"fmt"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

// ARRWPLinearNodeEncoder adds a linear projection of the node encoding
// "node_<name>" to x, or sets x when the batch has no node features.
type ARRWPLinearNodeEncoder struct {
	FC   *nn.Linear    `gps:"fc"`
	Norm nn.Normalizer `gps:"norm"`

	name string
}

// NewARRWPLinearNodeEncoder projects in features to emb. normType is
// "batchnorm", "layernorm" or anything else for none.
func NewARRWPLinearNodeEncoder(ctx ml.Context, in, emb int, normType string, bias bool, name string) *ARRWPLinearNodeEncoder {
	return &ARRWPLinearNodeEncoder{
		FC:   nn.NewXavierLinear(ctx, in, emb, bias),
		Norm: nn.NewNorm(ctx, normType, emb),
		name: name,
	}
}

// Key returns the name of the batch tensor the encoder reads.
func (m *ARRWPLinearNodeEncoder) Key() string {
	return "node_" + m.name
}

func (m *ARRWPLinearNodeEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	pe, err := batch.Get(m.Key())
	if err != nil {
		return nil, err
	}

	pe = m.FC.Forward(ctx, pe)
	if batch.X != nil {
		if err := sameShape("x", batch.X, m.Key(), pe); err != nil {
			return nil, err
		}
		batch.X = batch.X.Add(ctx, pe)
	} else {
		batch.X = pe
	}

	if m.Norm != nil {
		// Die normalisierte Projektion wird nicht in x uebernommen
		pe = m.Norm.Normalize(ctx, pe)
		logutil.Trace("normalized node encoding", "name", m.name, "shape", pe.Shape())
	}

	return batch, nil
}

// ARRWPLinearEdgeEncoder projects "edge_<name>_val", appends the edges of
// "edge_<name>_index" to edge_index and merges duplicate edges by summing
// their attributes.
type ARRWPLinearEdgeEncoder struct {
	FC   *nn.Linear    `gps:"fc"`
	Norm nn.Normalizer `gps:"norm"`

	name string
}

func NewARRWPLinearEdgeEncoder(ctx ml.Context, in, emb int, normType string, bias bool, name string) *ARRWPLinearEdgeEncoder {
	return &ARRWPLinearEdgeEncoder{
		FC:   nn.NewXavierLinear(ctx, in, emb, bias),
		Norm: nn.NewNorm(ctx, normType, emb),
		name: name,
	}
}

// Keys returns the names of the index and value tensors the encoder reads.
func (m *ARRWPLinearEdgeEncoder) Keys() (index, val string) {
	return "edge_" + m.name + "_index", "edge_" + m.name + "_val"
}

func (m *ARRWPLinearEdgeEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	indexKey, valKey := m.Keys()
	index, err := batch.Get(indexKey)
	if err != nil {
		return nil, err
	}

	val, err := batch.Get(valKey)
	if err != nil {
		return nil, err
	}

	edgeIndex, err := batch.Get(graph.KeyEdgeIndex)
	if err != nil {
		return nil, err
	}

	val = m.FC.Forward(ctx, val)

	edgeAttr := batch.EdgeAttr
	if edgeAttr == nil {
		edgeAttr = ctx.Zeros(ml.DTypeF32, edgeIndex.Dim(1), val.Dim(1))
	} else if edgeAttr.Dim(1) != val.Dim(1) {
		return nil, fmt.Errorf("%w: edge_attr has %d features, %s projects to %d", model.ErrDimMismatch, edgeAttr.Dim(1), valKey, val.Dim(1))
	}

	edgeIndex, edgeAttr, err = graph.Coalesce(ctx,
		edgeIndex.Concat(ctx, index, 1),
		edgeAttr.Concat(ctx, val, 0),
		batch.NumNodes(),
	)
	if err != nil {
		return nil, err
	}

	if m.Norm != nil {
		edgeAttr = m.Norm.Normalize(ctx, edgeAttr)
	}

	batch.EdgeIndex, batch.EdgeAttr = edgeIndex, edgeAttr
	return batch, nil
}

func sameShape(name string, t ml.Tensor, otherName string, other ml.Tensor) error {
	if t.Dim(0) != other.Dim(0) || t.Dim(1) != other.Dim(1) {
		return fmt.Errorf("%w: %s has shape %v, %s has shape %v", model.ErrDimMismatch, name, t.Shape(), otherName, other.Shape())
	}
	return nil
}
