// Package runner - Inferenz-Pipeline fuer GraphGPS-Netzwerke
//
// Dieses Modul enthaelt:
// - Runner: Positionskodierungen, Batching und Forward-Pass
// - Prediction: Eine Vorhersage je Graph oder je Knoten
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
	"github.com/graphgps/gps/posenc"
)

// ErrNoPrediction is returned when the network has no prediction head output.
var ErrNoPrediction = errors.New("network produced no prediction")

// Prediction is one output row. Node is -1 for graph-level heads.
type Prediction struct {
	Graph  int       `json:"graph"`
	Node   int       `json:"node"`
	Values []float32 `json:"values"`
}

// Runner evaluates a built network on decoded graphs.
type Runner struct {
	ctx       ml.Context
	config    gym.KV
	model     model.Module
	seed      int64
	batchSize int
	nodeLevel bool
}

// New returns a Runner for m. A batchSize of zero selects train.batch_size.
func New(ctx ml.Context, c gym.KV, m model.Module, seed int64, batchSize int) (*Runner, error) {
	if batchSize == 0 {
		batchSize = int(c.Uint("train.batch_size", 32))
	}
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}

	return &Runner{
		ctx:       ctx,
		config:    c,
		model:     m,
		seed:      seed,
		batchSize: batchSize,
		nodeLevel: c.String("gnn.head") == "node",
	}, nil
}

func (r *Runner) Config() gym.KV {
	return r.config
}

func (r *Runner) Model() model.Module {
	return r.model
}

func (r *Runner) BatchSize() int {
	return r.batchSize
}

// Decode reads graphs in the JSON graph format.
func (r *Runner) Decode(rd io.Reader) ([]*graph.Data, error) {
	return graph.Decode(r.ctx, rd)
}

// Predict computes the configured positional encodings for graphs and runs
// them through the network in batches. Cancelling ctx stops between batches.
func (r *Runner) Predict(ctx context.Context, graphs []*graph.Data) ([]Prediction, error) {
	if len(graphs) == 0 {
		return nil, errors.New("no graphs")
	}

	if err := posenc.ApplyAll(r.ctx, r.config, graphs, r.seed); err != nil {
		return nil, err
	}

	var preds []Prediction
	for start := 0; start < len(graphs); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+r.batchSize, len(graphs))
		batch, err := graph.Collate(r.ctx, graphs[start:end])
		if err != nil {
			return nil, err
		}

		out, err := model.Forward(r.ctx, r.model, batch)
		if err != nil {
			return nil, fmt.Errorf("graphs %d-%d: %w", start, end-1, err)
		}

		rows, err := Rows(out, start, r.nodeLevel)
		if err != nil {
			return nil, err
		}
		preds = append(preds, rows...)
		slog.Debug("batch done", "start", start, "end", end)
	}
	return preds, nil
}

// Rows splits the prediction of a batch into one row per node when
// nodeLevel is set and one row per graph otherwise.
func Rows(out *graph.Batch, offset int, nodeLevel bool) ([]Prediction, error) {
	if out.Pred == nil {
		return nil, ErrNoPrediction
	}

	rows, width := out.Pred.Dim(0), out.Pred.Dim(1)
	values := out.Pred.Floats()

	var preds []Prediction
	if nodeLevel {
		if rows != out.NumNodes() {
			return nil, fmt.Errorf("node head produced %d rows for %d nodes", rows, out.NumNodes())
		}
		for g := range out.NumGraphs() {
			for n := out.Ptr[g]; n < out.Ptr[g+1]; n++ {
				preds = append(preds, Prediction{Graph: offset + g, Node: n - out.Ptr[g], Values: values[n*width : (n+1)*width]})
			}
		}
		return preds, nil
	}

	if rows != out.NumGraphs() {
		return nil, fmt.Errorf("graph head produced %d rows for %d graphs", rows, out.NumGraphs())
	}
	for g := range rows {
		preds = append(preds, Prediction{Graph: offset + g, Node: -1, Values: values[g*width : (g+1)*width]})
	}
	return preds, nil
}
