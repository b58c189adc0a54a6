// cmd_show.go - Show Command: Parameter eines Netzwerks
// Hauptfunktionen: ShowHandler, showInfo
package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
)

// ShowHandler - Baut das Netzwerk und zeigt seine Parameter an
func ShowHandler(cmd *cobra.Command, args []string) error {
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return err
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

	return showInfo(cmd.OutOrStdout(), c, m, width)
}

// showInfo - Gibt Netzwerk-Zusammenfassung und Parameter-Tabelle aus
func showInfo(w io.Writer, c gym.KV, m model.Module, width int) error {
	var rows [][]string
	var total int
	model.Walk(m, func(name string, t ml.Tensor) {
		n := 1
		for _, d := range t.Shape() {
			n *= d
		}
		total += n

		if width > 0 {
			name = runewidth.Truncate(name, width, "…")
		}
		rows = append(rows, []string{name, fmt.Sprint(t.Shape()), t.DType().String()})
	})

	fmt.Fprintln(w, " ", "Model")
	renderTable(w, []string{"", ""}, [][]string{
		{"network", c.Architecture()},
		{"layer type", c.String("gt.layer_type")},
		{"head", c.String("gnn.head")},
		{"parameters", message.NewPrinter(language.English).Sprintf("%d", total)},
		{"tensors", strconv.Itoa(len(rows))},
	})
	fmt.Fprintln(w)

	renderTable(w, []string{"NAME", "SHAPE", "TYPE"}, rows)
	return nil
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show CONFIG",
		Short: "Show the parameters of a network",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}

	addModelFlags(cmd)
	cmd.Flags().Int("width", 72, "Truncate parameter names to this display width (0 disables)")
	return cmd
}
