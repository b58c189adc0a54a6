// cmd_convert.go - Convert Command: Netzwerk als GGUF exportieren
// Hauptfunktionen: ConvertHandler
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/graphgps/gps/convert"
)

// ConvertHandler - Baut das Netzwerk, laedt den Checkpoint und schreibt eine GGUF-Datei
func ConvertHandler(cmd *cobra.Command, args []string) error {
	if !convert.IsGGUF(args[1]) {
		return fmt.Errorf("output %s must have a .gguf extension", args[1])
	}

	c, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, closeCtx, err := newContext(seed(c))
	if err != nil {
		return err
	}
	defer closeCtx()

	m, err := buildModel(cmd, ctx, c, args[0])
	if err != nil {
		return err
	}

	if err := convert.Export(args[1], c, m); err != nil {
		return err
	}

	slog.Info("network exported", "network", c.Architecture(), "path", args[1])
	fmt.Fprintln(cmd.OutOrStdout(), args[1])
	return nil
}

// newConvertCmd - Erstellt den convert Command
func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert CONFIG OUTPUT",
		Short: "Export a network and its weights to GGUF",
		Args:  cobra.ExactArgs(2),
		RunE:  ConvertHandler,
	}

	addModelFlags(cmd)
	return cmd
}
