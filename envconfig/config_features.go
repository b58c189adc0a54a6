// config_features.go - Feature-Flags
//
// Dieses Modul enthaelt:
// - Feature-Flags fuer das Laden von Checkpoints
package envconfig

// =============================================================================
// Feature-Flags
// =============================================================================

var (
	// StrictLoad laesst das Laden scheitern, wenn ein Parameter im Checkpoint fehlt
	StrictLoad = Bool("GPS_STRICT_LOAD")

	// NoColor deaktiviert Tabellenrahmen in der CLI-Ausgabe
	NoColor = Bool("GPS_NOCOLOR")
)
