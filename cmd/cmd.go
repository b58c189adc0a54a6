// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "gps",
		Short:         "Graph transformer inference with GraphGPS models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	runCmd := newRunCmd()
	showCmd := newShowCmd()
	listCmd := newListCmd()
	convertCmd := newConvertCmd()
	serveCmd := newServeCmd()
	encodeCmd := newEncodeCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{runCmd, showCmd, listCmd, convertCmd, serveCmd, encodeCmd} {
		switch cmd {
		case runCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["GPS_DEBUG"],
				envVars["GPS_BACKEND"],
				envVars["GPS_SEED"],
				envVars["GPS_WALK_WORKERS"],
				envVars["GPS_STRICT_LOAD"],
				envVars["GPS_NOCOLOR"],
			})
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["GPS_DEBUG"],
				envVars["GPS_BACKEND"],
				envVars["GPS_SEED"],
				envVars["GPS_WALK_WORKERS"],
				envVars["GPS_STRICT_LOAD"],
				envVars["GPS_HOST"],
				envVars["GPS_ORIGINS"],
			})
		case encodeCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["GPS_DEBUG"],
				envVars["GPS_SEED"],
				envVars["GPS_WALK_WORKERS"],
			})
		case showCmd, convertCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["GPS_DEBUG"],
				envVars["GPS_BACKEND"],
				envVars["GPS_SEED"],
				envVars["GPS_NOCOLOR"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["GPS_NOCOLOR"]})
		}
	}

	rootCmd.AddCommand(serveCmd, runCmd, encodeCmd, showCmd, listCmd, convertCmd)
	return rootCmd
}
