package posenc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/backend/cpu"
)

var approx = cmpopts.EquateApprox(0, 1e-5)

func setup(t *testing.T) ml.Context {
	t.Helper()
	b, err := cpu.New(ml.BackendParams{Seed: 1})
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)
	return ctx
}

// undirected baut einen Graphen mit beiden Richtungen jeder Kante
func undirected(ctx ml.Context, n int, edges ...[2]int32) *graph.Data {
	var src, dst []int32
	for _, e := range edges {
		src = append(src, e[0], e[1])
		dst = append(dst, e[1], e[0])
	}
	d := &graph.Data{NumNodes: n}
	d.EdgeIndex = graph.EdgeIndex(ctx, src, dst)
	return d
}

func get(t *testing.T, d *graph.Data, name string) ml.Tensor {
	t.Helper()
	v, err := d.Get(name)
	require.NoError(t, err)
	return v
}

func TestReturnProbabilities(t *testing.T) {
	ctx := setup(t)
	d := undirected(ctx, 2, [2]int32{0, 1})

	rw := ReturnProbabilities(ctx, d, []int{0, 1, 2, 3}, false)
	assert.Equal(t, []int{2, 4}, rw.Shape())
	if diff := cmp.Diff([]float32{1, 0, 1, 0, 1, 0, 1, 0}, rw.Floats(), approx); diff != "" {
		t.Errorf("RWSE mismatch (-want +got):\n%s", diff)
	}

	lazy := ReturnProbabilities(ctx, d, []int{1, 2}, true)
	if diff := cmp.Diff([]float32{.5, .5, .5, .5}, lazy.Floats(), approx); diff != "" {
		t.Errorf("RWPE mismatch (-want +got):\n%s", diff)
	}

	isolated := ReturnProbabilities(ctx, &graph.Data{NumNodes: 1}, []int{1}, false)
	assert.Equal(t, []float32{0}, isolated.Floats(), "ohne Kanten gibt es keine Rueckkehr")
}

func TestRRWP(t *testing.T) {
	ctx := setup(t)

	t.Run("pair", func(t *testing.T) {
		d := undirected(ctx, 2, [2]int32{0, 1})
		require.NoError(t, RRWP(ctx, d, RRWPOptions{Steps: 3, Identity: true}))

		if diff := cmp.Diff([]float32{1, 0, 1, 1, 0, 1}, get(t, d, "rrwp").Floats(), approx); diff != "" {
			t.Errorf("rrwp mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int32{0, 0, 1, 1, 0, 1, 0, 1}, get(t, d, "rrwp_index").Ints()); diff != "" {
			t.Errorf("rrwp_index mismatch (-want +got):\n%s", diff)
		}
		want := []float32{1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1}
		if diff := cmp.Diff(want, get(t, d, "rrwp_val").Floats(), approx); diff != "" {
			t.Errorf("rrwp_val mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("without identity", func(t *testing.T) {
		d := undirected(ctx, 2, [2]int32{0, 1})
		require.NoError(t, RRWP(ctx, d, RRWPOptions{Steps: 2}))
		if diff := cmp.Diff([]float32{0, 1, 0, 1}, get(t, d, "rrwp").Floats(), approx); diff != "" {
			t.Errorf("rrwp mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unreachable pairs", func(t *testing.T) {
		d := undirected(ctx, 3, [2]int32{0, 1})
		require.NoError(t, RRWP(ctx, d, RRWPOptions{Steps: 2, Identity: true}))
		// (0,0), (0,1), (1,0), (1,1), (2,2)
		assert.Equal(t, 5, get(t, d, "rrwp_index").Dim(1))

		require.NoError(t, RRWP(ctx, d, RRWPOptions{Steps: 2, Identity: true, FullGraph: true}))
		assert.Equal(t, 9, get(t, d, "rrwp_index").Dim(1))
		assert.Equal(t, []int{9, 2}, get(t, d, "rrwp_val").Shape())
	})

	assert.Error(t, RRWP(ctx, &graph.Data{NumNodes: 1}, RRWPOptions{}))
}

func TestARRWP(t *testing.T) {
	ctx := setup(t)
	d := undirected(ctx, 2, [2]int32{0, 1})

	// Mit genau einem Nachbarn ist jeder Walk deterministisch
	require.NoError(t, ARRWP(ctx, d, WalkOptions{Length: 4, Count: 8, Window: 3, Seed: 7}))

	if diff := cmp.Diff([]float32{1, 0, 1, 1, 0, 1}, get(t, d, "node_arrwp").Floats(), approx); diff != "" {
		t.Errorf("node_arrwp mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{0, 0, 1, 1, 0, 1, 0, 1}, get(t, d, "edge_arrwp_index").Ints()); diff != "" {
		t.Errorf("edge_arrwp_index mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{4, 3}, get(t, d, "edge_arrwp_val").Shape())

	err := ARRWP(ctx, d, WalkOptions{Length: 2, Count: 1, Window: 4})
	assert.ErrorContains(t, err, "exceeds walk_length")
}

func TestSampledReturnProbabilities(t *testing.T) {
	ctx := setup(t)

	d := undirected(ctx, 3, [2]int32{0, 1})
	require.NoError(t, SampledReturnProbabilities(ctx, d, "node_arwse", WalkOptions{Length: 2, Count: 4, Window: 2}))
	// Knoten 2 ist isoliert und bleibt stehen
	if diff := cmp.Diff([]float32{0, 1, 0, 1, 1, 1}, get(t, d, "node_arwse").Floats(), approx); diff != "" {
		t.Errorf("node_arwse mismatch (-want +got):\n%s", diff)
	}

	triangle := undirected(ctx, 3, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{2, 0})
	opts := WalkOptions{Length: 8, Count: 64, Window: 8, Lazy: true, Seed: 3}
	require.NoError(t, SampledReturnProbabilities(ctx, triangle, "node_arwpe", opts))
	first := get(t, triangle, "node_arwpe").Floats()

	require.NoError(t, SampledReturnProbabilities(ctx, triangle, "node_arwpe", opts))
	if diff := cmp.Diff(first, get(t, triangle, "node_arwpe").Floats()); diff != "" {
		t.Errorf("gleicher Seed liefert andere Werte (-first +second):\n%s", diff)
	}
	for _, v := range first {
		assert.True(t, v >= 0 && v <= 1, "Haeufigkeit %v ausserhalb [0, 1]", v)
	}
}

func TestReduceARRWP(t *testing.T) {
	ctx := setup(t)
	d := undirected(ctx, 4, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{2, 3})

	assert.ErrorIs(t, ReduceARRWP(ctx, d, 2), graph.ErrMissingTensor)

	require.NoError(t, ARRWP(ctx, d, WalkOptions{Length: 3, Count: 16, Window: 3, Seed: 1}))
	require.NoError(t, ReduceARRWP(ctx, d, 5))

	reduced := get(t, d, "node_arrwp_reduced")
	require.Equal(t, []int{4, 5}, reduced.Shape())

	f := reduced.Floats()
	for i := range 4 {
		assert.Zero(t, f[i*5+3], "Komponenten jenseits des Rangs sind null")
		assert.Zero(t, f[i*5+4])
	}

	// Projektionen zentrierter Daten haben Mittelwert null
	for j := range 3 {
		var sum float32
		for i := range 4 {
			sum += f[i*5+j]
		}
		assert.InDelta(t, 0, sum, 1e-4)
	}

	assert.Error(t, ReduceARRWP(ctx, d, 0))
}

func TestEffectiveResistance(t *testing.T) {
	ctx := setup(t)

	cases := []struct {
		name string
		d    *graph.Data
		want []float32
	}{
		{"edge", undirected(ctx, 2, [2]int32{0, 1}), []float32{1, 1}},
		{"path", undirected(ctx, 3, [2]int32{0, 1}, [2]int32{1, 2}), []float32{1, 1, 1, 1}},
		{"triangle", undirected(ctx, 3, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{2, 0}), []float32{2. / 3, 2. / 3, 2. / 3, 2. / 3, 2. / 3, 2. / 3}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			er := EffectiveResistance(ctx, tt.d)
			assert.Equal(t, []int{len(tt.want), 1}, er.Shape())
			if diff := cmp.Diff(tt.want, er.Floats(), approx); diff != "" {
				t.Errorf("EffectiveResistance() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpander(t *testing.T) {
	ctx := setup(t)

	small, err := Expander(ctx, &graph.Data{NumNodes: 4}, ExpanderOptions{Degree: 4, Algorithm: "Random-d"})
	require.NoError(t, err)
	assert.Equal(t, 12, small.Dim(1), "vollstaendiger Graph ohne Schleifen")

	opts := ExpanderOptions{Degree: 4, Algorithm: "Random-d", Seed: 9}
	index, err := Expander(ctx, &graph.Data{NumNodes: 20}, opts)
	require.NoError(t, err)

	src, dst := graph.Endpoints(index)
	assert.LessOrEqual(t, len(src), 80)
	assert.Zero(t, len(src)%2)
	for i := 0; i < len(src); i += 2 {
		assert.NotEqual(t, src[i], dst[i], "keine Schleifen")
		assert.Equal(t, src[i], dst[i+1], "beide Richtungen")
		assert.Equal(t, dst[i], src[i+1])
	}

	again, err := Expander(ctx, &graph.Data{NumNodes: 20}, opts)
	require.NoError(t, err)
	assert.Equal(t, index.Ints(), again.Ints())

	_, err = Expander(ctx, &graph.Data{NumNodes: 20}, ExpanderOptions{Degree: 4, Algorithm: "Margulis"})
	assert.ErrorIs(t, err, ErrUnsupportedExpander)

	_, err = Expander(ctx, &graph.Data{NumNodes: 20}, ExpanderOptions{Degree: 1, Algorithm: "Random-d"})
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := setup(t)

	kv := gym.Default()
	for _, o := range []string{
		"posenc_RWSE.enable=true",
		"posenc_RWSE.kernel.times=[1, 2]",
		"posenc_RRWPE.enable=true",
		"posenc_RRWPE.ksteps=3",
		"posenc_ARRWPE.enable=true",
		"posenc_ARRWPE.dim_reduction=pca",
		"posenc_ARRWPE.dim_reduced=2",
		"posenc_ARWSE.enable=true",
		"posenc_ERE.enable=true",
		"prep.exp=true",
		"prep.random_walks.walk_length=4",
		"prep.random_walks.num_walks=4",
	} {
		require.NoError(t, kv.Parse(o))
	}

	graphs := []*graph.Data{
		undirected(ctx, 3, [2]int32{0, 1}, [2]int32{1, 2}),
		undirected(ctx, 2, [2]int32{0, 1}),
		{NumNodes: 0},
	}
	require.NoError(t, ApplyAll(ctx, kv, graphs, 11))

	d := graphs[0]
	for _, name := range []string{
		"node_rwse", "rrwp", "rrwp_index", "rrwp_val",
		"node_arrwp", "edge_arrwp_index", "edge_arrwp_val", "node_arrwp_reduced",
		"node_arwse", "er_edge", "expander_edges",
	} {
		assert.True(t, d.Has(name), "fehlt: %s", name)
	}
	assert.Equal(t, []int{3, 2}, get(t, d, "node_rwse").Shape())
	assert.Equal(t, []int{3, 4}, get(t, d, "node_arrwp").Shape(), "window_size faellt auf walk_length zurueck")
	assert.Equal(t, []int{3, 2}, get(t, d, "node_arrwp_reduced").Shape())
	assert.Empty(t, graphs[2].Names())

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			override string
			contains string
		}{
			{"posenc_RWPE.enable=true", "no kernel times"},
			{"posenc_ARRWPE.dim_reduction=umap", "unsupported method"},
			{"prep.exp_algorithm=Margulis", "unsupported expander"},
		}
		for _, tt := range cases {
			t.Run(tt.override, func(t *testing.T) {
				kv := gym.Default()
				require.NoError(t, kv.Parse("posenc_ARRWPE.enable=true"))
				require.NoError(t, kv.Parse("prep.exp=true"))
				require.NoError(t, kv.Parse(tt.override))
				err := Apply(ctx, kv, undirected(ctx, 2, [2]int32{0, 1}), 0)
				assert.ErrorContains(t, err, tt.contains)
			})
		}
	})
}
