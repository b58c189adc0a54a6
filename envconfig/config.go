// config.go - Haupt-Konfigurationsfunktionen fuer gps
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (GPS_DEBUG)
// - Backend: Gibt den Namen des Tensor-Backends zurueck (GPS_BACKEND)
// - Seed: Gibt den Seed fuer Initialisierung und Random Walks zurueck (GPS_SEED)
// - WalkWorkers: Gibt die Anzahl paralleler Random-Walk-Worker zurueck (GPS_WALK_WORKERS)
// - Host: Gibt die Server-Adresse zurueck (GPS_HOST)
// - AllowedOrigins: Gibt erlaubte CORS-Origins zurueck (GPS_ORIGINS)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Feature-Flags
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via GPS_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("GPS_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Backend gibt den Namen des Tensor-Backends zurueck
// Konfigurierbar via GPS_BACKEND
// Default: cpu
func Backend() string {
	if s := Var("GPS_BACKEND"); s != "" {
		return s
	}
	return "cpu"
}

// Seed gibt den Seed fuer Parameter-Initialisierung und Random Walks zurueck
// Konfigurierbar via GPS_SEED
// Default: 0
func Seed() int64 {
	return int64(Uint64("GPS_SEED", 0)())
}

// WalkWorkers gibt die Anzahl paralleler Random-Walk-Worker zurueck
// Konfigurierbar via GPS_WALK_WORKERS
// Default: Anzahl CPUs
func WalkWorkers() int {
	return int(Uint("GPS_WALK_WORKERS", uint(runtime.NumCPU()))())
}

// Host gibt Schema, Host und Port des Servers zurueck
// Konfigurierbar via GPS_HOST
// Default: http://127.0.0.1:8642
func Host() *url.URL {
	defaultPort := "8642"

	s := strings.TrimSpace(Var("GPS_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via GPS_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("GPS_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
