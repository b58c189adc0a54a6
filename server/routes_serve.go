// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/runner"
)

// Serve beantwortet Anfragen auf ln bis SIGINT oder SIGTERM eintrifft
func Serve(ln net.Listener, r *runner.Runner) error {
	slog.Info("server config", "env", envconfig.Values())

	s := New(ln.Addr(), r)
	srvr := &http.Server{Handler: s.GenerateRoutes()}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		srvr.Close()
	}()

	slog.Info(fmt.Sprintf("Listening on %s", ln.Addr()), "network", r.Config().Architecture())
	if err := srvr.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
