// gguf.go - Export und Import von Netzwerken als GGUF
// Hauptfunktionen: Export, LoadConfig, IsGGUF, loadGGUF

package convert

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphgps/gps/fs/gguf"
	"github.com/graphgps/gps/fs/gym"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
)

const (
	architecture = "gps"
	configPrefix = "gps.config."
)

// Export writes the parameters of m and the configuration c to a GGUF file.
// Config values without a GGUF representation are skipped.
func Export(path string, c gym.KV, m model.Module) error {
	kv := map[string]any{
		"general.architecture": architecture,
		"gps.network":          c.Architecture(),
	}

	for key := range c.Keys() {
		v, ok := ggufValue(c.Value(key))
		if !ok {
			if c.Value(key) != nil {
				slog.Warn("config value not exported", "key", key, "type", fmt.Sprintf("%T", c.Value(key)))
			}
			continue
		}
		kv[configPrefix+key] = v
	}

	weights := make(map[string]ml.Tensor)
	model.Walk(m, func(name string, t ml.Tensor) {
		weights[name] = t
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gguf.Write(f, kv, weights); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// LoadConfig reads the configuration stored by Export. Keys missing from
// the file keep their defaults.
func LoadConfig(path string) (gym.KV, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if arch := f.String("general.architecture"); arch != architecture {
		return nil, fmt.Errorf("%s: %w architecture %q", path, gguf.ErrUnsupported, arch)
	}

	kv := gym.Default()
	for key, v := range f.KV {
		if name, ok := strings.CutPrefix(key, configPrefix); ok {
			kv.Set(name, gymValue(v))
		}
	}
	return kv, nil
}

// IsGGUF reports whether path names a GGUF file by its extension.
func IsGGUF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gguf")
}

func loadGGUF(ctx ml.Context, path string) (map[string]ml.Tensor, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.Weights(ctx)
}

// ggufValue maps a YAML config value onto a GGUF value type.
func ggufValue(v any) (any, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float32:
		return float64(v), true
	case float64, string, bool:
		return v, true
	case []string:
		return v, true
	case []uint32:
		return convertSlice[int64](v), true
	case []float32:
		return convertSlice[float64](v), true
	case []any:
		return ggufArray(v)
	default:
		return nil, false
	}
}

func ggufArray(items []any) (any, bool) {
	if len(items) == 0 {
		return []int64{}, true
	}

	switch items[0].(type) {
	case string:
		return collect[string](items)
	case bool:
		return collect[bool](items)
	}

	ints := make([]int64, 0, len(items))
	floats := make([]float64, 0, len(items))
	isInt := true
	for _, item := range items {
		switch v := item.(type) {
		case int:
			ints = append(ints, int64(v))
			floats = append(floats, float64(v))
		case float64:
			isInt = false
			floats = append(floats, v)
		default:
			return nil, false
		}
	}

	if isInt {
		return ints, true
	}
	return floats, true
}

func collect[T any](items []any) ([]T, bool) {
	out := make([]T, len(items))
	for i, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// gymValue turns typed GGUF arrays back into YAML-style lists.
func gymValue(v any) any {
	switch v := v.(type) {
	case []int64:
		return toAny(v)
	case []float64:
		return toAny(v)
	case []string:
		return toAny(v)
	case []bool:
		return toAny(v)
	default:
		return v
	}
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
