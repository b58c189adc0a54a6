package encoders

import (
	"fmt"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
	"github.com/graphgps/gps/model"
)

// EREdgeEncoder embeds the effective resistance "er_edge" of every edge.
// With useEdgeAttr the embedding is appended to edge_attr, otherwise it
// replaces it.
type EREdgeEncoder struct {
	Encoder *nn.Linear `gps:"edge_encoder"`

	useEdgeAttr bool
}

func NewEREdgeEncoder(ctx ml.Context, emb int, useEdgeAttr bool) *EREdgeEncoder {
	return &EREdgeEncoder{
		Encoder:     nn.NewLinear(ctx, 1, emb, true),
		useEdgeAttr: useEdgeAttr,
	}
}

func (m *EREdgeEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	er, err := batch.Get("er_edge")
	if err != nil {
		return nil, err
	}

	if er.Dim(0) != batch.NumEdges() {
		return nil, fmt.Errorf("er_edge has %d rows for %d edges", er.Dim(0), batch.NumEdges())
	}

	er = m.Encoder.Forward(ctx, er.Reshape(ctx, er.Dim(0), 1))
	if m.useEdgeAttr {
		attr, err := batch.Get(graph.KeyEdgeAttr)
		if err != nil {
			return nil, err
		}
		if len(attr.Shape()) == 1 {
			attr = attr.Reshape(ctx, attr.Dim(0), 1)
		}
		batch.EdgeAttr = attr.Concat(ctx, er, 1)
	} else {
		batch.EdgeAttr = er
	}
	return batch, nil
}

var _ model.Module = (*EREdgeEncoder)(nil)
