// cmd_run.go - Run Command: Vorhersagen fuer eine Graph-Datei
// Hauptfunktionen: RunHandler, formatValues
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/graphgps/gps/runner"
)

// RunHandler - Haupthandler fuer den run Command
func RunHandler(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid value for --format: %q (must be table or json)", format)
	}

	batchSize, err := cmd.Flags().GetInt("batch-size")
	if err != nil {
		return err
	}

	c, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := slog.With("run", runID)

	s := seed(c)
	ctx, closeCtx, err := newContext(s)
	if err != nil {
		return err
	}
	defer closeCtx()

	m, err := buildModel(cmd, ctx, c, args[0])
	if err != nil {
		return err
	}

	r, err := runner.New(ctx, c, m, s, batchSize)
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	graphs, err := r.Decode(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	if len(graphs) == 0 {
		return fmt.Errorf("%s: no graphs", args[1])
	}

	log.Info("running", "network", c.Architecture(), "graphs", len(graphs), "batch_size", r.BatchSize())

	preds, err := r.Predict(cmd.Context(), graphs)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run         string              `json:"run"`
			Predictions []runner.Prediction `json:"predictions"`
		}{runID, preds})
	}

	var data [][]string
	for _, p := range preds {
		node := "-"
		if p.Node >= 0 {
			node = strconv.Itoa(p.Node)
		}
		data = append(data, []string{strconv.Itoa(p.Graph), node, formatValues(p.Values)})
	}

	renderTable(cmd.OutOrStdout(), []string{"GRAPH", "NODE", "PREDICTION"}, data)
	return nil
}

func formatValues(v []float32) string {
	b := make([]byte, 0, 8*len(v))
	for i, f := range v {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendFloat(b, float64(f), 'g', 5, 32)
	}
	return string(b)
}

// newRunCmd - Erstellt den run Command
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run CONFIG GRAPHS",
		Short: "Predict on a JSON graph file",
		Args:  cobra.ExactArgs(2),
		RunE:  RunHandler,
	}

	addModelFlags(cmd)
	cmd.Flags().Int("batch-size", 0, "Graphs per batch (default train.batch_size)")
	cmd.Flags().String("format", "table", "Output format (table or json)")
	return cmd
}
