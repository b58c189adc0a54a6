package encoders

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
)

func TestExpanderEdgeFixer(t *testing.T) {
	ctx := setup(t)

	d1 := &graph.Data{NumNodes: 2}
	d1.EdgeIndex = graph.EdgeIndex(ctx, []int32{0}, []int32{1})
	d1.EdgeAttr = ctx.Zeros(ml.DTypeF32, 1, 4)
	d1.Set("expander_edges", graph.EdgeIndex(ctx, []int32{1}, []int32{0}))

	d2 := &graph.Data{NumNodes: 1}
	d2.EdgeIndex = graph.EdgeIndex(ctx, nil, nil)
	d2.EdgeAttr = ctx.Zeros(ml.DTypeF32, 0, 4)
	d2.Set("expander_edges", graph.EdgeIndex(ctx, nil, nil))

	b, err := graph.Collate(ctx, []*graph.Data{d1, d2})
	require.NoError(t, err)

	m := NewExpanderEdgeFixer(ctx, ExpanderEdgeOptions{
		AddEdgeIndex: true,
		UseExpEdges:  true,
		NumVirtNode:  1,
		DimHidden:    3,
		DimEdge:      4,
	})

	out, err := m.Forward(ctx, b)
	require.NoError(t, err)

	index, err := out.Get("expander_edge_index")
	require.NoError(t, err)

	// edge_index, Expander-Kante, Knoten -> virtuell, virtuell -> Knoten.
	// Virtuelle Knoten: 3 (Graph 0) und 4 (Graph 1).
	want := []int32{
		0, 1, 0, 1, 2, 3, 3, 4,
		1, 0, 3, 3, 4, 0, 1, 2,
	}
	if diff := cmp.Diff(want, index.Ints()); diff != "" {
		t.Errorf("expander_edge_index mismatch (-want +got):\n%s", diff)
	}

	attr, err := out.Get("expander_edge_attr")
	require.NoError(t, err)
	assert.Equal(t, []int{8, 4}, attr.Shape())

	virt, err := out.Get("virt_h")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, virt.Shape())
}

func TestExpanderEdgeFixerErrors(t *testing.T) {
	ctx := setup(t)

	_, err := NewExpanderEdgeFixer(ctx, ExpanderEdgeOptions{DimEdge: 2}).Forward(ctx, path(t, ctx))
	assert.Error(t, err, "ohne Kantenmenge")

	_, err = NewExpanderEdgeFixer(ctx, ExpanderEdgeOptions{AddEdgeIndex: true, DimEdge: 2}).Forward(ctx, path(t, ctx))
	assert.ErrorIs(t, err, graph.ErrMissingTensor, "edge_attr fehlt")

	_, err = NewExpanderEdgeFixer(ctx, ExpanderEdgeOptions{UseExpEdges: true, DimEdge: 2}).Forward(ctx, path(t, ctx))
	assert.ErrorIs(t, err, graph.ErrMissingTensor, "expander_edges fehlt")
}
