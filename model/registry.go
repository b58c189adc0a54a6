package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/agnivade/levenshtein"
)

type registry[F any] struct {
	kind string
	err  error
	m    map[string]F
}

func newRegistry[F any](kind string, err error) *registry[F] {
	return &registry[F]{kind: kind, err: err, m: make(map[string]F)}
}

func (r *registry[F]) register(name string, f F) {
	if _, ok := r.m[name]; ok {
		panic(fmt.Sprintf("model: %s %q already registered", r.kind, name))
	}
	r.m[name] = f
}

func (r *registry[F]) lookup(name string) (F, error) {
	f, ok := r.m[name]
	if !ok {
		var zero F
		if s := suggest(name, r.names()); s != "" {
			return zero, fmt.Errorf("%w: %s %q, did you mean %q?", r.err, r.kind, name, s)
		}
		return zero, fmt.Errorf("%w: %s %q", r.err, r.kind, name)
	}
	return f, nil
}

func (r *registry[F]) names() []string {
	return slices.Sorted(maps.Keys(r.m))
}

// suggest returns the registered name closest to name, or "" when nothing
// is close enough to be a likely typo.
func suggest(name string, names []string) string {
	best, bestDist := "", len(name)/2+1
	for _, n := range names {
		if d := levenshtein.ComputeDistance(name, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
