package gym

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experiment = `
model:
  type: SingleModel
  graph_pooling: add
gt:
  layer_type: GINE+Exphormer
  layers: 4
  dim_hidden: 48
  dim_edge: None
gnn:
  dim_inner: 48
  dropout: 0.1
posenc_RWSE:
  enable: True
  kernel:
    times_func: range(1, 17)
posenc_RWPE:
  enable: true
  kernel:
    times: [1, 2, 4]
`

func TestDecode(t *testing.T) {
	kv, err := Decode(strings.NewReader(experiment))
	require.NoError(t, err)

	assert.Equal(t, "SingleModel", kv.Architecture())
	assert.Equal(t, "add", kv.String("model.graph_pooling"))
	assert.Equal(t, "GINE+Exphormer", kv.String("gt.layer_type"))
	assert.Equal(t, uint32(4), kv.Uint("gt.layers"))
	assert.Equal(t, uint32(48), kv.Uint("gnn.dim_inner"))
	assert.InDelta(t, 0.1, kv.Float("gnn.dropout"), 1e-6)
	assert.True(t, kv.Bool("posenc_RWSE.enable"))
	assert.False(t, kv.Has("gt.dim_edge"), "None sollte als nicht gesetzt gelten")

	// Standardwerte bleiben erhalten
	assert.Equal(t, uint32(8), kv.Uint("gt.n_heads"))
	assert.True(t, kv.Bool("dataset.node_encoder_bn"))

	if diff := cmp.Diff([]uint32{1, 2, 4}, kv.Uints("posenc_RWPE.kernel.times")); diff != "" {
		t.Errorf("Uints() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmpty(t *testing.T) {
	kv, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), kv)
	assert.Equal(t, "MultiModel", kv.Architecture())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(experiment), 0o644))

	kv, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SingleModel", kv.Architecture())

	_, err = Load(filepath.Join(t.TempDir(), "fehlt.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode(strings.NewReader("gt: [unclosed"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	kv := Default()

	cases := []struct {
		in    string
		key   string
		check func(t *testing.T)
	}{
		{"gt.layers=5", "gt.layers", func(t *testing.T) {
			assert.Equal(t, uint32(5), kv.Uint("gt.layers"))
		}},
		{"posenc_RWSE.kernel.times=[1, 2]", "posenc_RWSE.kernel.times", func(t *testing.T) {
			assert.Equal(t, []uint32{1, 2}, kv.Uints("posenc_RWSE.kernel.times"))
		}},
		{"gt.dim_edge=null", "gt.dim_edge", func(t *testing.T) {
			assert.False(t, kv.Has("gt.dim_edge"))
		}},
		{"posenc_ERE={enable: true, dim_pe: 4}", "posenc_ERE.enable", func(t *testing.T) {
			assert.True(t, kv.Bool("posenc_ERE.enable"))
			assert.Equal(t, uint32(4), kv.Uint("posenc_ERE.dim_pe"))
		}},
	}

	for _, tt := range cases {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, kv.Parse(tt.in))
			tt.check(t)
		})
	}

	assert.Error(t, kv.Parse("kein-gleichheitszeichen"))
	assert.Error(t, kv.Parse("=1"))
}

func TestGetterDefaults(t *testing.T) {
	kv := KV{
		"negative": -3,
		"fraction": 1.5,
		"text":     "abc",
		"mixed":    []any{1, "a"},
	}

	assert.Equal(t, uint32(7), kv.Uint("negative", 7), "negative Werte sind kein uint")
	assert.Equal(t, int32(-3), kv.Int("negative"))
	assert.Equal(t, int32(2), kv.Int("fraction", 2), "Brueche sind kein int")
	assert.Equal(t, "fallback", kv.String("missing", "fallback"))
	assert.Equal(t, "", kv.String("negative"))
	assert.False(t, kv.Bool("text"))
	assert.Nil(t, kv.Uints("mixed"))
	assert.Equal(t, []string{"x"}, kv.Strings("missing", []string{"x"}))
}

func TestDefaultIsFresh(t *testing.T) {
	a := Default()
	a.Set("gt.layers", 10)
	assert.Equal(t, uint32(3), Default().Uint("gt.layers"))
}
