package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/runner"
)

const testConfig = `
share:
  dim_in: 3
  dim_out: 2
dataset:
  node_encoder: true
  node_encoder_name: LinearNode
  edge_encoder: true
  edge_encoder_name: LinearEdge
gnn:
  dim_inner: 8
gt:
  dim_hidden: 8
  n_heads: 2
  layers: 1
  layer_type: GINE+Transformer
`

const testGraphs = `{"graphs": [
  {"x": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "edge_index": [[0, 1, 2], [1, 2, 0]], "edge_attr": [[1], [2], [3]]},
  {"x": [[1, 1, 1], [0, 0, 0]], "edge_index": [[0, 1], [1, 0]], "edge_attr": [[1], [1]]}
]}`

func files(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	graphs := filepath.Join(dir, "graphs.json")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o644))
	require.NoError(t, os.WriteFile(graphs, []byte(testGraphs), 0o644))
	return cfg, graphs
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GPS_NOCOLOR", "1")

	var out bytes.Buffer
	cli := NewCLI()
	cli.SetOut(&out)
	cli.SetErr(&out)
	cli.SetArgs(args)
	err := cli.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, want := range []string{"MultiModel", "SingleModel", "LinearNode", "san_graph", "cpu"} {
		assert.Contains(t, out, want)
	}

	out, err = execute(t, "ls", "multi")
	require.NoError(t, err)
	assert.Contains(t, out, "MultiModel")
	assert.NotContains(t, out, "SingleModel", "Praefix filtert die Liste")
}

func TestShow(t *testing.T) {
	cfg, _ := files(t)

	out, err := execute(t, "show", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "layers.0.models.0.nn.0.weight")
	assert.Contains(t, out, "layers.0.models.1.in_proj_weight")
	assert.Contains(t, out, "GINE+Transformer")

	out, err = execute(t, "show", cfg, "--width", "10")
	require.NoError(t, err)
	assert.NotContains(t, out, "layers.0.models.1.in_proj_weight", "lange Namen werden gekuerzt")

	_, err = execute(t, "show", cfg, "--set", "gt.layer_type=GCN+Performer")
	assert.ErrorContains(t, err, "Performer")
}

func TestRun(t *testing.T) {
	cfg, graphs := files(t)

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "run", cfg, graphs, "--batch-size", "1")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "PREDICTION")
		assert.True(t, strings.HasPrefix(lines[1], "0"))
		assert.True(t, strings.HasPrefix(lines[2], "1"))
	})

	t.Run("json node head", func(t *testing.T) {
		out, err := execute(t, "run", cfg, graphs, "--format", "json", "--set", "gnn.head=node")
		require.NoError(t, err)

		var resp struct {
			Run         string       `json:"run"`
			Predictions []runner.Prediction `json:"predictions"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		_, err = uuid.Parse(resp.Run)
		assert.NoError(t, err)

		require.Len(t, resp.Predictions, 5)
		assert.Equal(t, runner.Prediction{Graph: 1, Node: 1, Values: resp.Predictions[4].Values}, resp.Predictions[4])
		assert.Len(t, resp.Predictions[0].Values, 2)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := execute(t, "run", cfg, graphs, "--format", "xml")
		assert.ErrorContains(t, err, "--format")

		_, err = execute(t, "run", cfg, filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)

		_, err = execute(t, "run", cfg, graphs, "--checkpoint", filepath.Join(t.TempDir(), "missing.pt"))
		assert.Error(t, err)
	})
}

func predictions(t *testing.T, args ...string) []runner.Prediction {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	require.NoError(t, err)

	var resp struct {
		Predictions []runner.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Predictions
}

func TestConvert(t *testing.T) {
	cfg, graphs := files(t)
	out := filepath.Join(t.TempDir(), "gps.gguf")

	stdout, err := execute(t, "convert", cfg, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, out)

	shown, err := execute(t, "show", out)
	require.NoError(t, err)
	assert.Contains(t, shown, "GINE+Transformer", "Konfiguration steckt in der GGUF-Datei")

	want := predictions(t, "run", cfg, graphs)
	got := predictions(t, "run", out, graphs)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDeltaSlice(t, want[i].Values, got[i].Values, 1e-4, "Vorhersage %d", i)
	}

	_, err = execute(t, "convert", cfg, filepath.Join(t.TempDir(), "gps.bin"))
	assert.ErrorContains(t, err, ".gguf")
}

func TestEncode(t *testing.T) {
	cfg, graphs := files(t)
	out := filepath.Join(t.TempDir(), "encoded.json")

	_, err := execute(t, "encode", cfg, graphs, "-o", out,
		"--set", "posenc_RWSE.enable=true",
		"--set", "posenc_RWSE.kernel.times=[1, 2]")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var f struct {
		Graphs []struct {
			Attrs map[string][][]float32 `json:"attrs"`
		} `json:"graphs"`
	}
	require.NoError(t, json.Unmarshal(data, &f))
	require.Len(t, f.Graphs, 2)
	assert.Len(t, f.Graphs[0].Attrs["node_rwse"], 3)
	assert.Len(t, f.Graphs[1].Attrs["node_rwse"][0], 2)

	_, err = execute(t, "encode", cfg, graphs, "--set", "posenc_RWSE.enable=true")
	assert.ErrorContains(t, err, "kernel times")
}
