package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/backend/cpu"
)

func setup(t *testing.T) ml.Context {
	t.Helper()
	b, err := cpu.New(ml.BackendParams{})
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)
	return ctx
}

func TestGetMissing(t *testing.T) {
	var b Batch
	_, err := b.Get("node_rwse")
	require.ErrorIs(t, err, ErrMissingTensor)
	assert.Contains(t, err.Error(), "node_rwse")

	_, err = b.Get(KeyBatch)
	assert.ErrorIs(t, err, ErrMissingTensor)

	ctx := setup(t)
	b.Set("node_rwse", ctx.Zeros(ml.DTypeF32, 2, 2))
	b.Set(KeyX, ctx.Zeros(ml.DTypeF32, 2, 1))
	assert.True(t, b.Has("node_rwse"))
	assert.Equal(t, []string{"node_rwse", "x"}, b.Names())

	b.Set("node_rwse", nil)
	assert.False(t, b.Has("node_rwse"))
}

func TestCollate(t *testing.T) {
	ctx := setup(t)

	g1 := &Data{NumNodes: 2}
	g1.X = ctx.FromFloats([]float32{1, 2}, 2, 1)
	g1.EdgeIndex = EdgeIndex(ctx, []int32{0, 1}, []int32{1, 0})
	g1.Set("rrwp_index", EdgeIndex(ctx, []int32{0}, []int32{0}))
	g1.Set("expander_edges", EdgeIndex(ctx, []int32{1}, []int32{0}))

	g2 := &Data{NumNodes: 3}
	g2.X = ctx.FromFloats([]float32{3, 4, 5}, 3, 1)
	g2.EdgeIndex = EdgeIndex(ctx, []int32{0, 2}, []int32{2, 1})
	g2.Set("rrwp_index", EdgeIndex(ctx, []int32{2}, []int32{2}))
	g2.Set("expander_edges", EdgeIndex(ctx, []int32{0}, []int32{1}))

	b, err := Collate(ctx, []*Data{g1, g2})
	require.NoError(t, err)

	assert.Equal(t, 2, b.NumGraphs())
	assert.Equal(t, 5, b.NumNodes())
	assert.Equal(t, 4, b.NumEdges())
	assert.Equal(t, []int{0, 2, 5}, b.Ptr)

	if diff := cmp.Diff([]int32{0, 0, 1, 1, 1}, b.Batch.Ints()); diff != "" {
		t.Errorf("batch vector mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5}, b.X.Floats()); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{0, 1, 2, 4, 1, 0, 4, 3}, b.EdgeIndex.Ints()); diff != "" {
		t.Errorf("edge_index mismatch (-want +got):\n%s", diff)
	}

	rrwp, err := b.Get("rrwp_index")
	require.NoError(t, err)
	if diff := cmp.Diff([]int32{0, 4, 0, 4}, rrwp.Ints()); diff != "" {
		t.Errorf("rrwp_index mismatch (-want +got):\n%s", diff)
	}

	exp, err := b.Get("expander_edges")
	require.NoError(t, err)
	if diff := cmp.Diff([]int32{1, 2, 0, 3}, exp.Ints()); diff != "" {
		t.Errorf("expander_edges mismatch (-want +got):\n%s", diff)
	}
}

func TestCollateErrors(t *testing.T) {
	ctx := setup(t)

	_, err := Collate(ctx, nil)
	assert.Error(t, err)

	g1 := &Data{NumNodes: 1}
	g1.Set("node_rwse", ctx.Zeros(ml.DTypeF32, 1, 2))
	g2 := &Data{NumNodes: 1}

	_, err = Collate(ctx, []*Data{g1, g2})
	assert.ErrorIs(t, err, ErrMissingTensor)
}

func TestCoalesce(t *testing.T) {
	ctx := setup(t)

	index := EdgeIndex(ctx, []int32{1, 0, 1, 0, 2}, []int32{0, 1, 0, 2, 2})
	attr := ctx.FromFloats([]float32{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
		5, 50,
	}, 5, 2)

	gotIndex, gotAttr, err := Coalesce(ctx, index, attr, 3)
	require.NoError(t, err)

	// (0,1) (0,2) (1,0)x2 (2,2)
	if diff := cmp.Diff([]int32{0, 0, 1, 2, 1, 2, 0, 2}, gotIndex.Ints()); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{2, 20, 4, 40, 4, 40, 5, 50}, gotAttr.Floats()); diff != "" {
		t.Errorf("attr mismatch (-want +got):\n%s", diff)
	}

	onlyIndex, noAttr, err := Coalesce(ctx, index, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, noAttr)
	assert.Equal(t, 4, onlyIndex.Dim(1))

	_, _, err = Coalesce(ctx, index, ctx.Zeros(ml.DTypeF32, 2, 2), 3)
	assert.Error(t, err, "Attributzeilen passen nicht zu den Kanten")
}

func TestAddSelfLoops(t *testing.T) {
	ctx := setup(t)

	index := EdgeIndex(ctx, []int32{0}, []int32{1})
	attr := ctx.FromFloats([]float32{7, 8}, 1, 2)

	gotIndex, gotAttr := AddSelfLoops(ctx, index, attr, 2, 0.5)
	if diff := cmp.Diff([]int32{0, 0, 1, 1, 0, 1}, gotIndex.Ints()); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{7, 8, 0.5, 0.5, 0.5, 0.5}, gotAttr.Floats()); diff != "" {
		t.Errorf("attr mismatch (-want +got):\n%s", diff)
	}

	// Die Quelle darf nicht veraendert werden
	if diff := cmp.Diff([]int32{0, 1}, index.Ints()); diff != "" {
		t.Errorf("input index modified (-want +got):\n%s", diff)
	}
}

func TestFullEdgeIndex(t *testing.T) {
	ctx := setup(t)

	got := FullEdgeIndex(ctx, []int{0, 2, 3})
	if diff := cmp.Diff([]int32{0, 0, 1, 1, 2, 0, 1, 0, 1, 2}, got.Ints()); diff != "" {
		t.Errorf("FullEdgeIndex() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode(t *testing.T) {
	ctx := setup(t)

	const in = `{"graphs": [
		{"x": [[1, 0], [0, 1], [1, 1]], "edge_index": [[0, 1], [1, 2]], "edge_attr": [[0.5], [1.5]], "y": [1],
		 "attrs": {"node_rwse": [[0.1], [0.2], [0.3]], "rrwp_index": [[0], [0]]}},
		{"num_nodes": 2, "edge_index": [[], []]}
	]}`

	graphs, err := Decode(ctx, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, graphs, 2)

	g := graphs[0]
	assert.Equal(t, 3, g.NumNodes)
	assert.Equal(t, 2, g.NumEdges())
	assert.Equal(t, []int{3, 2}, g.X.Shape())
	assert.Equal(t, []int{2, 1}, g.EdgeAttr.Shape())

	idx, err := g.Get("rrwp_index")
	require.NoError(t, err)
	assert.Equal(t, ml.DTypeI32, idx.DType())

	assert.Equal(t, 2, graphs[1].NumNodes)
	assert.Nil(t, graphs[1].X)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, graphs))

	again, err := Decode(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, g.Names(), again[0].Names())
	if diff := cmp.Diff(g.X.Floats(), again[0].X.Floats()); diff != "" {
		t.Errorf("x changed after encode (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	ctx := setup(t)

	cases := map[string]string{
		"ragged x":       `{"graphs": [{"x": [[1], [1, 2]], "edge_index": []}]}`,
		"edge count":     `{"graphs": [{"edge_index": [[0, 1], [1, 0]], "edge_attr": [[1]]}]}`,
		"bad index":      `{"graphs": [{"edge_index": [[0], [-1]]}]}`,
		"one row":        `{"graphs": [{"edge_index": [[0, 1]]}]}`,
		"node beyond x":  `{"graphs": [{"x": [[1]], "edge_index": [[0], [3]]}]}`,
		"invalid json":   `{"graphs": [`,
		"num_nodes vs x": `{"graphs": [{"num_nodes": 3, "x": [[1]], "edge_index": []}]}`,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(ctx, strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}
