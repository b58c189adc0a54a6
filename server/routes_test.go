package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/ml/backend/cpu"
	"github.com/graphgps/gps/model"
	"github.com/graphgps/gps/runner"

	_ "github.com/graphgps/gps/model/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, addr net.Addr, overrides ...string) http.Handler {
	t.Helper()
	b, err := cpu.New(ml.BackendParams{Seed: 1})
	require.NoError(t, err)
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)

	kv := gym.Default()
	for _, o := range []string{
		"share.dim_in=2",
		"dataset.node_encoder=true",
		"dataset.node_encoder_name=LinearNode",
		"gnn.dim_inner=4",
		"gt.dim_hidden=4",
		"gt.n_heads=1",
		"gt.layers=1",
		"gt.layer_type=GCN+None",
	} {
		require.NoError(t, kv.Parse(o))
	}
	for _, o := range overrides {
		require.NoError(t, kv.Parse(o))
	}

	m, err := model.New(ctx, kv, 2, 3)
	require.NoError(t, err)

	r, err := runner.New(ctx, kv, m, 0, 4)
	require.NoError(t, err)
	return New(addr, r).GenerateRoutes()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	h.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	h := newServer(t, nil)
	w := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gps is running", w.Body.String())

	w = do(h, http.MethodPut, "/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestShowHandler(t *testing.T) {
	w := do(newServer(t, nil), http.MethodGet, "/api/show", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ShowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MultiModel", resp.Network)
	assert.Equal(t, "GCN+None", resp.LayerType)
	assert.Equal(t, 4, resp.BatchSize)
	assert.Positive(t, resp.Parameters)

	var names []string
	for _, ti := range resp.Tensors {
		names = append(names, ti.Name)
	}
	assert.Contains(t, names, "encoder.node_encoder.encoder.weight")
}

func TestPredictHandler(t *testing.T) {
	h := newServer(t, nil)

	t.Run("graph level", func(t *testing.T) {
		body := `{"graphs": [
			{"x": [[1, 0], [0, 1]], "edge_index": [[0, 1], [1, 0]]},
			{"x": [[1, 1]], "edge_index": [[], []]}
		]}`
		w := do(h, http.MethodPost, "/api/predict", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp PredictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Run)
		require.Len(t, resp.Predictions, 2)
		assert.Len(t, resp.Predictions[1].Values, 3)
		assert.Equal(t, -1, resp.Predictions[1].Node)
	})

	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "missing request body"},
		{"no graphs", `{"graphs": []}`, "graphs are required"},
		{"invalid json", `{"graphs": [`, "unexpected EOF"},
		{"ragged x", `{"graphs": [{"x": [[1, 0], [1]], "edge_index": [[], []]}]}`, "x"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	t.Run("wrong width", func(t *testing.T) {
		w := do(h, http.MethodPost, "/api/predict", `{"graphs": [{"x": [[1, 0, 0]], "edge_index": [[], []]}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "3 features")
	})

	t.Run("wrong width without node encoder", func(t *testing.T) {
		raw := newServer(t, nil, "dataset.node_encoder=false", "gnn.dim_inner=2", "gt.dim_hidden=2")

		w := do(raw, http.MethodPost, "/api/predict", `{"graphs": [{"x": [[1, 0, 0]], "edge_index": [[], []]}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "x has 3 features, network expects 2")

		w = do(raw, http.MethodPost, "/api/predict", `{"graphs": [{"x": [[1, 0]], "edge_index": [[], []]}]}`)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestAllowedHosts(t *testing.T) {
	h := newServer(t, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8642})

	cases := map[string]int{
		"localhost:8642":   http.StatusOK,
		"127.0.0.1:8642":   http.StatusOK,
		"10.0.0.2":         http.StatusOK,
		"gps.local":        http.StatusOK,
		"example.com":      http.StatusForbidden,
		"evil.example.com": http.StatusForbidden,
	}

	for host, code := range cases {
		t.Run(host, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = host
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, code, w.Code)
		})
	}
}
