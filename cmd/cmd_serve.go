// cmd_serve.go - Serve Command: Vorhersage-Server fuer ein Netzwerk
// Hauptfunktionen: ServeHandler
package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/runner"
	"github.com/graphgps/gps/server"
)

// ServeHandler - Laedt das Netzwerk einmal und startet den HTTP-Server
func ServeHandler(cmd *cobra.Command, args []string) error {
	batchSize, err := cmd.Flags().GetInt("batch-size")
	if err != nil {
		return err
	}

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

	m, err := buildModel(cmd, ctx, c, args[0])
	if err != nil {
		return err
	}

	r, err := runner.New(ctx, c, m, s, batchSize)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	return server.Serve(ln, r)
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve CONFIG",
		Aliases: []string{"start"},
		Short:   "Serve predictions over HTTP",
		Args:    cobra.ExactArgs(1),
		RunE:    ServeHandler,
	}

	addModelFlags(cmd)
	cmd.Flags().Int("batch-size", 0, "Graphs per batch (default train.batch_size)")
	return cmd
}
