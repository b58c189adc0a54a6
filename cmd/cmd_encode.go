// cmd_encode.go - Encode Command: Positionskodierungen vorberechnen
// Hauptfunktionen: EncodeHandler
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/posenc"
)

// EncodeHandler - Berechnet die konfigurierten Kodierungen und schreibt die Graphen
func EncodeHandler(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	s := seed(c)
	ctx, closeCtx, err := newContext(s)
	if err != nil {
		return err
	}
	defer closeCtx()

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	graphs, err := graph.Decode(ctx, f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	if err := posenc.ApplyAll(ctx, c, graphs, s); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}

	slog.Info("encodings computed", "graphs", len(graphs))
	return graph.Encode(w, graphs)
}

// newEncodeCmd - Erstellt den encode Command
func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode CONFIG GRAPHS",
		Short: "Compute positional encodings and write them into the graph file",
		Args:  cobra.ExactArgs(2),
		RunE:  EncodeHandler,
	}

	cmd.Flags().StringArray("set", nil, "Override a config value (key=value, value parsed as YAML)")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	return cmd
}
