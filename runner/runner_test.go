package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/backend/cpu"
	"github.com/graphgps/gps/model"

	_ "github.com/graphgps/gps/model/models"
)

const graphs = `{"graphs": [
  {"x": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "edge_index": [[0, 1, 2], [1, 2, 0]]},
  {"x": [[1, 1, 1], [0, 0, 0]], "edge_index": [[0, 1], [1, 0]]},
  {"x": [[0, 1, 0]], "edge_index": [[], []]}
]}`

func setup(t *testing.T, overrides ...string) (ml.Context, gym.KV, model.Module) {
	t.Helper()
	b, err := cpu.New(ml.BackendParams{Seed: 3})
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)

	kv := gym.Default()
	for _, o := range append([]string{
		"share.dim_in=3",
		"dataset.node_encoder=true",
		"dataset.node_encoder_name=LinearNode",
		"posenc_RWSE.enable=true",
		"posenc_RWSE.kernel.times=[1, 2, 3]",
		"gnn.dim_inner=8",
		"gt.dim_hidden=8",
		"gt.n_heads=2",
		"gt.layers=1",
		"gt.layer_type=GCN+Transformer",
	}, overrides...) {
		require.NoError(t, kv.Parse(o))
	}

	m, err := model.New(ctx, kv, 3, 2)
	require.NoError(t, err)
	return ctx, kv, m
}

func decode(t *testing.T, r *Runner) []*graph.Data {
	t.Helper()
	g, err := r.Decode(strings.NewReader(graphs))
	require.NoError(t, err)
	return g
}

func TestPredictGraphHead(t *testing.T) {
	ctx, kv, m := setup(t)
	r, err := New(ctx, kv, m, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.BatchSize())

	preds, err := r.Predict(context.Background(), decode(t, r))
	require.NoError(t, err)
	require.Len(t, preds, 3)
	for i, p := range preds {
		assert.Equal(t, i, p.Graph)
		assert.Equal(t, -1, p.Node)
		assert.Len(t, p.Values, 2)
	}

	// die Batch-Groesse aendert das Ergebnis nicht
	single, err := New(ctx, kv, m, 0, 1)
	require.NoError(t, err)
	again, err := single.Predict(context.Background(), decode(t, single))
	require.NoError(t, err)
	for i := range preds {
		assert.InDeltaSlice(t, preds[i].Values, again[i].Values, 1e-5)
	}
}

func TestPredictNodeHead(t *testing.T) {
	ctx, kv, m := setup(t, "gnn.head=node")
	r, err := New(ctx, kv, m, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 32, r.BatchSize(), "Default aus train.batch_size")

	preds, err := r.Predict(context.Background(), decode(t, r))
	require.NoError(t, err)
	require.Len(t, preds, 6)
	assert.Equal(t, Prediction{Graph: 1, Node: 1, Values: preds[4].Values}, preds[4])
	assert.Equal(t, Prediction{Graph: 2, Node: 0, Values: preds[5].Values}, preds[5])
}

func TestPredictErrors(t *testing.T) {
	ctx, kv, m := setup(t)

	_, err := New(ctx, kv, m, 0, -1)
	assert.Error(t, err)

	r, err := New(ctx, kv, m, 0, 1)
	require.NoError(t, err)

	_, err = r.Predict(context.Background(), nil)
	assert.ErrorContains(t, err, "no graphs")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Predict(cancelled, decode(t, r))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Rows(&graph.Batch{Ptr: []int{0, 1}}, 0, false)
	assert.ErrorIs(t, err, ErrNoPrediction)
}

func TestRowsSingleNodeGraphs(t *testing.T) {
	ctx, _, _ := setup(t)
	out := &graph.Batch{Ptr: []int{0, 1, 2}, Pred: ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)}

	nodes, err := Rows(out, 5, true)
	require.NoError(t, err)
	assert.Equal(t, []Prediction{
		{Graph: 5, Node: 0, Values: []float32{1, 2}},
		{Graph: 6, Node: 0, Values: []float32{3, 4}},
	}, nodes, "Knoten-Kopf bleibt knotenweise, auch bei einem Knoten je Graph")

	graphs, err := Rows(out, 5, false)
	require.NoError(t, err)
	assert.Equal(t, -1, graphs[0].Node)
	assert.Equal(t, 6, graphs[1].Graph)

	out.Ptr = []int{0, 3}
	_, err = Rows(out, 0, true)
	assert.ErrorContains(t, err, "2 rows for 3 nodes")
	_, err = Rows(out, 0, false)
	assert.ErrorContains(t, err, "2 rows for 1 graphs")
}

func TestPredictNodeHeadSingleNode(t *testing.T) {
	ctx, kv, m := setup(t, "gnn.head=node")
	r, err := New(ctx, kv, m, 0, 1)
	require.NoError(t, err)

	preds, err := r.Predict(context.Background(), decode(t, r))
	require.NoError(t, err)
	require.Len(t, preds, 6)
	last := preds[5]
	assert.Equal(t, 2, last.Graph)
	assert.Equal(t, 0, last.Node, "einzelner Knoten wird nicht als Graph-Vorhersage gemeldet")
}
