// cmd_list.go - List Command: registrierte Komponenten
// Hauptfunktionen: ListHandler
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
)

// ListHandler - Listet Netzwerke, Encoder, Heads und Backends auf
func ListHandler(cmd *cobra.Command, args []string) error {
	var data [][]string

	for _, group := range []struct {
		kind  string
		names []string
	}{
		{"network", model.Networks()},
		{"node encoder", model.NodeEncoders()},
		{"edge encoder", model.EdgeEncoders()},
		{"head", model.Heads()},
		{"backend", ml.Backends()},
	} {
		for _, name := range group.names {
			if len(args) == 0 || strings.HasPrefix(strings.ToLower(name), strings.ToLower(args[0])) {
				data = append(data, []string{group.kind, name})
			}
		}
	}

	renderTable(cmd.OutOrStdout(), []string{"KIND", "NAME"}, data)
	return nil
}

// newListCmd - Erstellt den list Command
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List registered networks, encoders, heads and backends",
		Args:    cobra.MaximumNArgs(1),
		RunE:    ListHandler,
	}
}
