// Modul: rrwp.go
// Beschreibung: Encoder fuer relative Random-Walk-Wahrscheinlichkeiten (RRWP)
// Hauptstrukturen:
//   - RRWPLinearNodeEncoder: Diagonale der Walk-Matrizen als Knotenmerkmal
//   - RRWPLinearEdgeEncoder: Walk-Wahrscheinlichkeiten als Kantenmerkmal,
//     optional auf den vollstaendigen Graphen aufgefuellt

package encoders

import (
	"fmt"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

func init() {
	model.RegisterNodeEncoder("rrwp_linear", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		return NewRRWPLinearNodeEncoder(ctx, int(c.Uint("posenc_RRWPE.ksteps", 21)), dim, false, ""), nil
	})

	model.RegisterEdgeEncoder("rrwp_linear", func(ctx ml.Context, c fs.Config, dim int) (model.Module, error) {
		return NewRRWPLinearEdgeEncoder(ctx, int(c.Uint("posenc_RRWPE.ksteps", 21)), dim, RRWPEdgeOptions{
			PadToFullGraph: c.Bool("posenc_RRWPE.full_graph"),
			FillValue:      c.Float("posenc_RRWPE.pad_value"),
		}), nil
	})
}

// RRWPLinearNodeEncoder adds a projection of "rrwp" to x.
type RRWPLinearNodeEncoder struct {
	FC   *nn.Linear    `gps:"fc"`
	Norm nn.Normalizer `gps:"norm"`
}

func NewRRWPLinearNodeEncoder(ctx ml.Context, in, emb int, bias bool, normType string) *RRWPLinearNodeEncoder {
	return &RRWPLinearNodeEncoder{
		FC:   nn.NewXavierLinear(ctx, in, emb, bias),
		Norm: nn.NewNorm(ctx, normType, emb),
	}
}

func (m *RRWPLinearNodeEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	rrwp, err := batch.Get("rrwp")
	if err != nil {
		return nil, err
	}

	rrwp = m.FC.Forward(ctx, rrwp)
	if m.Norm != nil {
		rrwp = m.Norm.Normalize(ctx, rrwp)
	}

	if batch.X != nil {
		if err := sameShape("x", batch.X, "rrwp", rrwp); err != nil {
			return nil, err
		}
		batch.X = batch.X.Add(ctx, rrwp)
	} else {
		batch.X = rrwp
	}
	return batch, nil
}

// RRWPEdgeOptions configures RRWPLinearEdgeEncoder.
type RRWPEdgeOptions struct {
	// PadToFullGraph adds every intra-graph node pair as an edge. Pairs
	// without an attribute get FillValue in every feature.
	PadToFullGraph bool
	FillValue      float32

	// Overwrite replaces edge_index and edge_attr by the RRWP edges instead
	// of merging both.
	Overwrite bool

	Bias     bool
	NormType string
}

// RRWPLinearEdgeEncoder projects "rrwp_val" and merges the edges of
// "rrwp_index" with edge_index. Self loops are added before merging so that
// every node carries its return probabilities.
type RRWPLinearEdgeEncoder struct {
	FC      *nn.Linear    `gps:"fc"`
	Norm    nn.Normalizer `gps:"norm"`
	Padding ml.Tensor     `gps:"padding"`

	opts RRWPEdgeOptions
}

func NewRRWPLinearEdgeEncoder(ctx ml.Context, in, emb int, opts RRWPEdgeOptions) *RRWPLinearEdgeEncoder {
	padding := make([]float32, emb)
	for i := range padding {
		padding[i] = opts.FillValue
	}

	return &RRWPLinearEdgeEncoder{
		FC:      nn.NewXavierLinear(ctx, in, emb, opts.Bias),
		Norm:    nn.NewNorm(ctx, opts.NormType, emb),
		Padding: ctx.FromFloats(padding, 1, emb),
		opts:    opts,
	}
}

func (m *RRWPLinearEdgeEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	rrwpIndex, err := batch.Get("rrwp_index")
	if err != nil {
		return nil, err
	}

	rrwpVal, err := batch.Get("rrwp_val")
	if err != nil {
		return nil, err
	}

	rrwpVal = m.FC.Forward(ctx, rrwpVal)
	n := batch.NumNodes()

	var index, attr ml.Tensor
	if m.opts.Overwrite {
		index, attr = rrwpIndex, rrwpVal
	} else {
		edgeIndex, err := batch.Get(graph.KeyEdgeIndex)
		if err != nil {
			return nil, err
		}

		edgeAttr := batch.EdgeAttr
		if edgeAttr == nil {
			edgeAttr = ctx.Zeros(ml.DTypeF32, edgeIndex.Dim(1), rrwpVal.Dim(1))
		} else if edgeAttr.Dim(1) != rrwpVal.Dim(1) {
			return nil, fmt.Errorf("%w: edge_attr has %d features, rrwp_val projects to %d", model.ErrDimMismatch, edgeAttr.Dim(1), rrwpVal.Dim(1))
		}

		edgeIndex, edgeAttr = graph.AddSelfLoops(ctx, edgeIndex, edgeAttr, n, 0)
		index, attr, err = graph.Coalesce(ctx, edgeIndex.Concat(ctx, rrwpIndex, 1), edgeAttr.Concat(ctx, rrwpVal, 0), n)
		if err != nil {
			return nil, err
		}
	}

	if m.opts.PadToFullGraph {
		full := graph.FullEdgeIndex(ctx, batch.Ptr)
		pad := m.Padding.Rows(ctx, ctx.Zeros(ml.DTypeI32, full.Dim(1)))

		index, attr, err = graph.Coalesce(ctx, index.Concat(ctx, full, 1), attr.Concat(ctx, pad, 0), n)
		if err != nil {
			return nil, err
		}
	}

	if m.Norm != nil {
		attr = m.Norm.Normalize(ctx, attr)
	}

	batch.EdgeIndex, batch.EdgeAttr = index, attr
	return batch, nil
}
