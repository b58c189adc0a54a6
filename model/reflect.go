// Package model - Reflection-basierte Parameter-Verwaltung
//
// Dieses Modul enthaelt die Reflection-Logik, mit der Parameter eines
// Moduls ueber ihre PyTorch-Namen gefunden und aus einem Checkpoint
// ersetzt werden.
//
// Hauptkomponenten:
// - Tag: gps-Tag-Struktur fuer Parameter-Namen
// - Params: Sammelt alle Parameter eines Moduls rekursiv
// - Walk: Besucht alle gesetzten Parameter
// - Load: Ersetzt Parameter durch Checkpoint-Tensoren
package model

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
)

var (
	ErrShapeMismatch = errors.New("parameter shape mismatch")
	ErrMissingParams = errors.New("parameters missing from checkpoint")
)

// Tag repraesentiert einen geparsten gps-Tag der Form "name,alt:other"
type Tag struct {
	name         string
	alternatives []string
}

// parseTag parst einen gps-Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	tag.name = parts[0]

	for _, part := range parts[1:] {
		if value, ok := strings.CutPrefix(part, "alt:"); ok && tag.name == "" {
			tag.name = value
			slog.Warn("gps tag has alt: but no primary name", "tag", s)
		} else if ok {
			tag.alternatives = append(tag.alternatives, value)
		}
	}

	return
}

// Param is a parameter slot of a module.
type Param struct {
	// Names holds the candidate checkpoint names, primary name first.
	Names []string

	// Tensor points at the struct field holding the parameter.
	Tensor *ml.Tensor
}

// Name returns the primary name.
func (p Param) Name() string {
	if len(p.Names) == 0 {
		return ""
	}
	return p.Names[0]
}

var tensorType = reflect.TypeOf((*ml.Tensor)(nil)).Elem()

// Params collects the parameter slots of m in declaration order, including
// empty ones such as an absent bias.
func Params(m any) []Param {
	var ps []Param
	collect(reflect.ValueOf(m), nil, &ps, make(map[*ml.Tensor]bool))
	return ps
}

func collect(v reflect.Value, tags []Tag, ps *[]Param, seen map[*ml.Tensor]bool) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			collect(v.Elem(), tags, ps, seen)
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}

		collect(v.Elem(), tags, ps, seen)
	case reflect.Struct:
		if v.CanAddr() {
			if c, ok := v.Addr().Interface().(Container); ok {
				for name, child := range c.Children() {
					collect(reflect.ValueOf(child), append(slices.Clone(tags), Tag{name: name}), ps, seen)
				}
			}
		}

		t := v.Type()
		for i := range t.NumField() {
			vv := v.Field(i)
			if !vv.CanSet() {
				continue
			}

			tag := t.Field(i).Tag.Get("gps")
			if tag == "-" {
				continue
			}

			tagsCopy := slices.Clone(tags)
			if tag != "" {
				tagsCopy = append(tagsCopy, parseTag(tag))
			}

			if t.Field(i).Type == tensorType {
				ptr := vv.Addr().Interface().(*ml.Tensor)
				if seen[ptr] {
					continue
				}
				seen[ptr] = true

				var names []string
				for _, name := range buildTensorNames(tagsCopy) {
					names = append(names, strings.Join(name, "."))
				}
				*ps = append(*ps, Param{Names: names, Tensor: ptr})
				continue
			}

			collect(vv, tagsCopy, ps, seen)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			collect(v.Index(i), append(slices.Clone(tags), Tag{name: strconv.Itoa(i)}), ps, seen)
		}
	}
}

// buildTensorNames baut die vollstaendigen Tensor-Namen aus Tags
func buildTensorNames(tags []Tag) (fullNames [][]string) {
	if len(tags) == 0 {
		return nil
	}

	var names []string
	if tags[0].name != "" {
		names = append([]string{tags[0].name}, tags[0].alternatives...)
	}

	childNames := buildTensorNames(tags[1:])
	switch {
	case len(names) == 0:
		// Tag ohne Namen, nur Kind-Namen verwenden
		fullNames = childNames
	case len(childNames) == 0:
		for _, name := range names {
			fullNames = append(fullNames, []string{name})
		}
	default:
		// Jeden Namen mit jedem Kind zusammenfuehren
		for _, name := range names {
			for _, childName := range childNames {
				fullNames = append(fullNames, append([]string{name}, childName...))
			}
		}
	}

	return fullNames
}

// Walk calls fn for every parameter of m that holds a tensor.
func Walk(m any, fn func(name string, t ml.Tensor)) {
	for _, p := range Params(m) {
		if *p.Tensor != nil {
			fn(p.Name(), *p.Tensor)
		}
	}
}

// Load replaces the parameters of m by the tensors in weights. Parameters
// without a checkpoint entry keep their initial values unless
// GPS_STRICT_LOAD is set. A shape disagreement is always an error.
func Load(m any, weights map[string]ml.Tensor) error {
	used := make(map[string]bool)
	var missing []string

	for _, p := range Params(m) {
		found := false
		for _, name := range p.Names {
			t, ok := weights[name]
			if !ok {
				continue
			}

			if cur := *p.Tensor; cur != nil && !slices.Equal(cur.Shape(), t.Shape()) {
				return fmt.Errorf("%w: %s has shape %v, checkpoint has %v", ErrShapeMismatch, name, cur.Shape(), t.Shape())
			}

			logutil.Trace("found tensor", "name", name, "shape", t.Shape())
			*p.Tensor = t
			used[name] = true
			found = true
			break
		}

		if !found && *p.Tensor != nil {
			missing = append(missing, p.Name())
		}
	}

	for _, name := range slices.Sorted(maps.Keys(weights)) {
		if !used[name] {
			slog.Debug("unused checkpoint tensor", "name", name)
		}
	}

	if len(missing) > 0 {
		if envconfig.StrictLoad() {
			return fmt.Errorf("%w: %s", ErrMissingParams, strings.Join(missing, ", "))
		}
		slog.Warn("parameters not found in checkpoint, keeping initial values", "count", len(missing), "first", missing[0])
	}

	return nil
}
