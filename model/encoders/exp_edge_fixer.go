// Modul: exp_edge_fixer.go
// Beschreibung: Baut die Kantenmenge fuer Expander-Attention
// Hauptstrukturen:
//   - ExpanderEdgeFixer: fasst edge_index, Expander-Kanten und Kanten zu
//     virtuellen Knoten in expander_edge_index / expander_edge_attr zusammen

package encoders

import (
	"errors"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/nn"
)

// ExpanderEdgeOptions configures ExpanderEdgeFixer.
type ExpanderEdgeOptions struct {
	// AddEdgeIndex keeps the original edges.
	AddEdgeIndex bool

	// UseExpEdges adds the precomputed "expander_edges".
	UseExpEdges bool

	// NumVirtNode connects every node of a graph with that many virtual
	// nodes in both directions.
	NumVirtNode int

	DimHidden, DimEdge int
}

// ExpanderEdgeFixer writes "expander_edge_index" and "expander_edge_attr"
// for the Exphormer layer. With virtual nodes it also sets "virt_h", the
// hidden states of the virtual nodes ordered by virtual node, then graph.
// Virtual node v of graph g has index N + v·G + g.
type ExpanderEdgeFixer struct {
	ExpEdgeAttr    *nn.Embedding `gps:"exp_edge_attr"`
	VirtNodeEmb    *nn.Embedding `gps:"virt_node_emb"`
	VirtEdgeOutEmb *nn.Embedding `gps:"virt_edge_out_emb"`
	VirtEdgeInEmb  *nn.Embedding `gps:"virt_edge_in_emb"`

	opts ExpanderEdgeOptions
}

func NewExpanderEdgeFixer(ctx ml.Context, opts ExpanderEdgeOptions) *ExpanderEdgeFixer {
	m := ExpanderEdgeFixer{
		ExpEdgeAttr: nn.NewEmbedding(ctx, 1, opts.DimEdge),
		opts:        opts,
	}

	if opts.NumVirtNode > 0 {
		m.VirtNodeEmb = nn.NewEmbedding(ctx, opts.NumVirtNode, opts.DimHidden)
		m.VirtEdgeOutEmb = nn.NewEmbedding(ctx, opts.NumVirtNode, opts.DimEdge)
		m.VirtEdgeInEmb = nn.NewEmbedding(ctx, opts.NumVirtNode, opts.DimEdge)
	}
	return &m
}

func (m *ExpanderEdgeFixer) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	var indices, attrs []ml.Tensor

	if m.opts.AddEdgeIndex {
		index, err := batch.Get(graph.KeyEdgeIndex)
		if err != nil {
			return nil, err
		}

		attr, err := batch.Get(graph.KeyEdgeAttr)
		if err != nil {
			return nil, err
		}

		indices = append(indices, index)
		attrs = append(attrs, attr)
	}

	if m.opts.UseExpEdges {
		exp, err := batch.Get("expander_edges")
		if err != nil {
			return nil, err
		}

		indices = append(indices, exp)
		attrs = append(attrs, m.ExpEdgeAttr.Forward(ctx, ctx.Zeros(ml.DTypeI32, exp.Dim(1))))
	}

	if m.opts.NumVirtNode > 0 {
		n, g := batch.NumNodes(), batch.NumGraphs()
		assign := batch.Batch.Ints()

		var virtH ml.Tensor
		for v := range m.opts.NumVirtNode {
			h := m.VirtNodeEmb.Forward(ctx, constIDs(ctx, g, v))
			if virtH == nil {
				virtH = h
			} else {
				virtH = virtH.Concat(ctx, h, 0)
			}

			nodes := make([]int32, n)
			virt := make([]int32, n)
			for i, b := range assign {
				nodes[i] = int32(i)
				virt[i] = int32(n+v*g) + b
			}

			indices = append(indices, graph.EdgeIndex(ctx, nodes, virt))
			attrs = append(attrs, m.VirtEdgeInEmb.Forward(ctx, constIDs(ctx, n, v)))

			indices = append(indices, graph.EdgeIndex(ctx, virt, nodes))
			attrs = append(attrs, m.VirtEdgeOutEmb.Forward(ctx, constIDs(ctx, n, v)))
		}
		batch.Set("virt_h", virtH)
	}

	if len(indices) == 0 {
		return nil, errors.New("expander edges: no edge set enabled")
	}

	index, attr := indices[0], attrs[0]
	for i := 1; i < len(indices); i++ {
		index = index.Concat(ctx, indices[i], 1)
		attr = attr.Concat(ctx, attrs[i], 0)
	}

	batch.Set("expander_edge_index", index)
	batch.Set("expander_edge_attr", attr)
	return batch, nil
}

func constIDs(ctx ml.Context, n, id int) ml.Tensor {
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(id)
	}
	return ctx.FromInts(ids, n)
}
