package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/fs/gguf"
	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/backend/cpu"
	"github.com/graphgps/gps/model"

	_ "github.com/graphgps/gps/model/models"
)

func seeded(t *testing.T, seed int64) ml.Context {
	t.Helper()
	b, err := cpu.New(ml.BackendParams{Seed: seed})
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)
	return ctx
}

func params(m model.Module) map[string][]float32 {
	out := make(map[string][]float32)
	model.Walk(m, func(name string, t ml.Tensor) { out[name] = t.Floats() })
	return out
}

func TestExportRoundTrip(t *testing.T) {
	kv := gym.Default()
	for _, o := range []string{
		"share.dim_in=3",
		"share.dim_out=2",
		"dataset.node_encoder=true",
		"dataset.node_encoder_name=LinearNode",
		"gnn.dim_inner=8",
		"gt.dim_hidden=8",
		"gt.n_heads=2",
		"gt.layer_type=GCN+Transformer",
		"gt.dropout=0.2",
		"posenc_RWSE.kernel.times=[1, 2, 4]",
	} {
		require.NoError(t, kv.Parse(o))
	}

	ctx := seeded(t, 1)
	m, err := model.New(ctx, kv, 3, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gps.gguf")
	require.NoError(t, Export(path, kv, m))
	assert.True(t, IsGGUF(path))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "MultiModel", c.Architecture())
	assert.Equal(t, "GCN+Transformer", c.String("gt.layer_type"))
	assert.Equal(t, uint32(8), c.Uint("gt.dim_hidden"))
	assert.InDelta(t, 0.2, c.Float("gt.dropout"), 1e-6)
	assert.Equal(t, []uint32{1, 2, 4}, c.Uints("posenc_RWSE.kernel.times"))
	assert.False(t, c.Has("posenc_ARRWPE.window_size"), "null-Werte werden nicht exportiert")

	other := seeded(t, 99)
	m2, err := model.New(other, c, 3, 2)
	require.NoError(t, err)
	require.NotEqual(t, params(m), params(m2))

	weights, err := LoadCheckpoint(other, path)
	require.NoError(t, err)
	require.NoError(t, model.Load(m2, weights))
	if diff := cmp.Diff(params(m), params(m2)); diff != "" {
		t.Errorf("parameters differ after reload (-exported +loaded):\n%s", diff)
	}
}

func TestLoadConfigRejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llama.gguf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gguf.Write(f, map[string]any{"general.architecture": "llama"}, nil))
	require.NoError(t, f.Close())

	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, gguf.ErrUnsupported)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.gguf"))
	assert.Error(t, err)
}

func TestGGUFValue(t *testing.T) {
	cases := []struct {
		in   any
		want any
		ok   bool
	}{
		{3, int64(3), true},
		{0.5, 0.5, true},
		{"x", "x", true},
		{[]any{1, 2}, []int64{1, 2}, true},
		{[]any{1, 2.5}, []float64{1, 2.5}, true},
		{[]any{"a", "b"}, []string{"a", "b"}, true},
		{[]any{}, []int64{}, true},
		{[]any{"a", 1}, nil, false},
		{nil, nil, false},
		{map[string]any{}, nil, false},
	}

	for _, tt := range cases {
		got, ok := ggufValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
