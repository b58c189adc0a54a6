// cmd_utils.go - Gemeinsame Hilfsfunktionen der Commands
// Hauptfunktionen: loadConfig, newContext, buildModel, renderTable
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/graphgps/gps/convert"
	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"

	_ "github.com/graphgps/gps/ml/backend"
	_ "github.com/graphgps/gps/model/models"
)

// addModelFlags - Gemeinsame Flags fuer Commands, die ein Modell bauen
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("set", nil, "Override a config value (key=value, value parsed as YAML)")
	cmd.Flags().Int("dim-in", 0, "Input feature width (default share.dim_in)")
	cmd.Flags().Int("dim-out", 0, "Output width (default share.dim_out)")
	cmd.Flags().String("checkpoint", "", "Checkpoint (.pt, .ckpt or .gguf) to load weights from")
}

// loadConfig - Liest die YAML- oder GGUF-Konfiguration und wendet --set an
func loadConfig(cmd *cobra.Command, path string) (gym.KV, error) {
	load := gym.Load
	if convert.IsGGUF(path) {
		load = convert.LoadConfig
	}

	kv, err := load(path)
	if err != nil {
		return nil, err
	}

	overrides, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		if err := kv.Parse(o); err != nil {
			return nil, err
		}
	}
	return kv, nil
}

// seed - GPS_SEED hat Vorrang vor dem seed der Konfiguration
func seed(c gym.KV) int64 {
	if s := envconfig.Seed(); s != 0 {
		return s
	}
	return int64(c.Int("seed"))
}

// newContext - Erstellt Backend und Context; close gibt beide frei
func newContext(seed int64) (ml.Context, func(), error) {
	b, err := ml.NewBackend(envconfig.Backend(), ml.BackendParams{Seed: seed})
	if err != nil {
		return nil, nil, err
	}

	ctx := b.NewContext()
	return ctx, func() {
		ctx.Close()
		b.Close()
	}, nil
}

// buildModel - Baut das Netzwerk und laedt optional einen Checkpoint.
// Eine GGUF-Konfiguration bringt ihre Gewichte selbst mit.
func buildModel(cmd *cobra.Command, ctx ml.Context, c gym.KV, configPath string) (model.Module, error) {
	dimIn, _ := cmd.Flags().GetInt("dim-in")
	if dimIn == 0 {
		dimIn = int(c.Uint("share.dim_in"))
	}

	dimOut, _ := cmd.Flags().GetInt("dim-out")
	if dimOut == 0 {
		dimOut = int(c.Uint("share.dim_out"))
	}

	m, err := model.New(ctx, c, dimIn, dimOut)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", c.Architecture(), err)
	}

	path, _ := cmd.Flags().GetString("checkpoint")
	if path == "" && convert.IsGGUF(configPath) {
		path = configPath
	}
	if path == "" {
		return m, nil
	}

	weights, err := convert.LoadCheckpoint(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := model.Load(m, weights); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	slog.Info("checkpoint loaded", "path", path, "tensors", len(weights))
	return m, nil
}

// renderTable - Gibt Zeilen als Tabelle im Stil der CLI aus
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	if colorize(w) {
		colors := make([]tablewriter.Colors, len(header))
		for i := range colors {
			colors[i] = tablewriter.Colors{tablewriter.Bold}
		}
		table.SetHeaderColor(colors...)
	}

	table.AppendBulk(rows)
	table.Render()
}

// colorize - Fette Kopfzeilen nur auf einem Terminal und ohne GPS_NOCOLOR
func colorize(w io.Writer) bool {
	if envconfig.NoColor() {
		return false
	}

	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
