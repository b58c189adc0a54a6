// checkpoint.go - Laedt PyTorch-Checkpoints in benannte Tensoren
// Hauptfunktionen: LoadCheckpoint, StateDict

package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/graphgps/gps/ml"
)

// ErrNoStateDict is returned when a checkpoint holds no tensor mapping.
var ErrNoStateDict = errors.New("checkpoint has no state dict")

// modelPrefix is prepended by training wrappers that hold the network as
// their "model" attribute.
const modelPrefix = "model."

// LoadCheckpoint reads a PyTorch .pt or .ckpt file, or a GGUF file written
// by Export. A PyTorch file may hold a bare state dict or a training
// checkpoint with the state dict under "model_state". A "model." prefix
// shared by every name is removed.
func LoadCheckpoint(ctx ml.Context, path string) (map[string]ml.Tensor, error) {
	if IsGGUF(path) {
		return loadGGUF(ctx, path)
	}

	v, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	weights, err := StateDict(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("checkpoint loaded", "path", path, "tensors", len(weights))
	return weights, nil
}

// StateDict converts an unpickled checkpoint into named tensors.
func StateDict(ctx ml.Context, v any) (map[string]ml.Tensor, error) {
	entries, ok := dictEntries(v)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNoStateDict, v)
	}

	for _, e := range entries {
		if e.key == "model_state" {
			if inner, ok := dictEntries(e.value); ok {
				entries = inner
				break
			}
		}
	}

	weights := make(map[string]ml.Tensor, len(entries))
	for _, e := range entries {
		pt, ok := e.value.(*pytorch.Tensor)
		if !ok {
			slog.Debug("skipping non-tensor entry", "name", e.key, "type", fmt.Sprintf("%T", e.value))
			continue
		}

		t, err := materialize(ctx, pt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.key, err)
		}
		weights[e.key] = t
	}

	if len(weights) == 0 {
		return nil, ErrNoStateDict
	}

	return stripPrefix(weights), nil
}

type entry struct {
	key   string
	value any
}

// dictEntries lists the string-keyed entries of a pickled dict in
// insertion order.
func dictEntries(v any) ([]entry, bool) {
	var entries []entry
	switch d := v.(type) {
	case *types.OrderedDict:
		for el := d.List.Front(); el != nil; el = el.Next() {
			e := el.Value.(*types.OrderedDictEntry)
			if k, ok := e.Key.(string); ok {
				entries = append(entries, entry{k, e.Value})
			}
		}
	case *types.Dict:
		for _, key := range d.Keys() {
			if k, ok := key.(string); ok {
				entries = append(entries, entry{k, d.MustGet(key)})
			}
		}
	default:
		return nil, false
	}
	return entries, true
}

func stripPrefix(weights map[string]ml.Tensor) map[string]ml.Tensor {
	names := slices.Collect(maps.Keys(weights))
	for _, name := range names {
		if !strings.HasPrefix(name, modelPrefix) {
			return weights
		}
	}

	out := make(map[string]ml.Tensor, len(weights))
	for _, name := range names {
		out[strings.TrimPrefix(name, modelPrefix)] = weights[name]
	}
	return out
}
