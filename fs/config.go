// config.go - Konfigurations-Interface fuer Modelle und Encoder
// Enthaelt: Config, KernelTimes(), WindowSize(), DimReduction()
package fs

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the read-only key/value view models are constructed from.
// Keys are dotted paths such as "gnn.dim_inner" or "posenc_RWSE.enable".
type Config interface {
	Architecture() string
	String(string, ...string) string
	Uint(string, ...uint32) uint32
	Int(string, ...int32) int32
	Float(string, ...float32) float32
	Bool(string, ...bool) bool
	Strings(string, ...[]string) []string
	Uints(string, ...[]uint32) []uint32
	Floats(string, ...[]float32) []float32

	// Has reports whether key is set to a non-null value.
	Has(string) bool
}

// KernelTimes returns the random-walk steps configured under prefix, read
// from "<prefix>.kernel.times" or, if that is empty, from
// "<prefix>.kernel.times_func" written as "range(start, stop[, step])".
func KernelTimes(c Config, prefix string) ([]int, error) {
	if times := c.Uints(prefix + ".kernel.times"); len(times) > 0 {
		out := make([]int, len(times))
		for i, t := range times {
			out[i] = int(t)
		}
		return out, nil
	}

	s := strings.ReplaceAll(c.String(prefix+".kernel.times_func"), " ", "")
	if s == "" {
		return nil, nil
	}

	args, ok := strings.CutPrefix(s, "range(")
	if !ok || !strings.HasSuffix(args, ")") {
		return nil, fmt.Errorf("%s.kernel.times_func: unsupported expression %q", prefix, s)
	}

	var bounds []int
	for _, a := range strings.Split(strings.TrimSuffix(args, ")"), ",") {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%s.kernel.times_func: %w", prefix, err)
		}
		bounds = append(bounds, n)
	}

	start, stop, step := 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, fmt.Errorf("%s.kernel.times_func: range takes 1 to 3 arguments, got %d", prefix, len(bounds))
	}

	if step <= 0 {
		return nil, fmt.Errorf("%s.kernel.times_func: step must be positive", prefix)
	}

	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	return out, nil
}

// WindowSize returns <prefix>.window_size, falling back to
// prep.random_walks.walk_length when it is unset or "none".
func WindowSize(c Config, prefix string) int {
	key := prefix + ".window_size"
	if !c.Has(key) || strings.EqualFold(c.String(key), "none") {
		return int(c.Uint("prep.random_walks.walk_length"))
	}
	return int(c.Uint(key))
}

// DimReduction returns the configured ARRWP reduction method, or "" when
// the encodings are used at full window width.
func DimReduction(c Config) string {
	s := c.String("posenc_ARRWPE.dim_reduction")
	if strings.EqualFold(s, "none") {
		return ""
	}
	return s
}
