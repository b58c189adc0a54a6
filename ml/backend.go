// backend.go - Backend-Interface und Registrierung fuer ML-Modelle
// Dieses Modul definiert das Backend-Interface und die Backend-Factory-Funktionen.
package ml

import (
	"fmt"
	"maps"
	"slices"
)

// Backend represents a tensor execution backend (e.g., the gonum CPU backend).
type Backend interface {
	// Close frees all memory associated with this backend
	Close()

	Name() string
	NewContext() Context
}

// BackendParams controls how the backend creates and executes tensors
type BackendParams struct {
	// Seed initialises the generator used by Context.Uniform. Two backends
	// with the same seed produce identical parameter initialisations.
	Seed int64
}

var backends = make(map[string]func(BackendParams) (Backend, error))

// RegisterBackend registers a backend factory function.
func RegisterBackend(name string, f func(BackendParams) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend creates a new backend instance by name.
func NewBackend(name string, params BackendParams) (Backend, error) {
	if backend, ok := backends[name]; ok {
		return backend(params)
	}

	return nil, fmt.Errorf("unsupported backend %q (available: %v)", name, Backends())
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}
