// routes_predict.go - Handler fuer Netzwerk-Info und Vorhersagen
// Enthaelt: ShowHandler, PredictHandler und die Antwort-Typen

package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
	"github.com/graphgps/gps/runner"
)

// TensorInfo beschreibt einen Parameter des Netzwerks
type TensorInfo struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Type  string `json:"type"`
}

// ShowResponse ist die Antwort von GET /api/show
type ShowResponse struct {
	Network    string       `json:"network"`
	LayerType  string       `json:"layer_type"`
	Head       string       `json:"head"`
	Parameters int          `json:"parameters"`
	BatchSize  int          `json:"batch_size"`
	Tensors    []TensorInfo `json:"tensors"`
}

// PredictResponse ist die Antwort von POST /api/predict
type PredictResponse struct {
	Run         string              `json:"run"`
	Predictions []runner.Prediction `json:"predictions"`
}

// ShowHandler liefert Architektur und Parameter des geladenen Netzwerks
func (s *Server) ShowHandler(c *gin.Context) {
	kv := s.runner.Config()
	resp := ShowResponse{
		Network:   kv.Architecture(),
		LayerType: kv.String("gt.layer_type"),
		Head:      kv.String("gnn.head"),
		BatchSize: s.runner.BatchSize(),
	}

	model.Walk(s.runner.Model(), func(name string, t ml.Tensor) {
		n := 1
		for _, d := range t.Shape() {
			n *= d
		}
		resp.Parameters += n
		resp.Tensors = append(resp.Tensors, TensorInfo{Name: name, Shape: t.Shape(), Type: t.DType().String()})
	})

	c.JSON(http.StatusOK, resp)
}

// PredictHandler dekodiert Graphen im JSON-Graph-Format und gibt die
// Vorhersagen des Netzwerks zurueck
func (s *Server) PredictHandler(c *gin.Context) {
	graphs, err := s.runner.Decode(c.Request.Body)
	switch {
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(graphs) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "graphs are required"})
		return
	}

	runID := uuid.NewString()
	preds, err := s.runner.Predict(c.Request.Context(), graphs)
	switch {
	case errors.Is(err, model.ErrDimMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("prediction failed", "run", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	slog.Debug("prediction done", "run", runID, "graphs", len(graphs), "predictions", len(preds))
	c.JSON(http.StatusOK, PredictResponse{Run: runID, Predictions: preds})
}
