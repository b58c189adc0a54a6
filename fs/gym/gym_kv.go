// Package gym - KV (Key-Value) Konfiguration im GraphGym-Format
//
// Dieses Modul enthaelt den KV-Typ und alle zugehoerigen Methoden:
// - KV: Map mit flachen, punktgetrennten Schluesseln ("gnn.dim_inner")
// - Architecture: Name des registrierten Netzwerks (model.type)
// - Generische Getter (String, Uint, Int, Float, Bool, Strings, Uints, Floats)
package gym

import (
	"iter"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/graphgps/gps/fs"
)

var _ fs.Config = KV(nil)

// KV repraesentiert eine flache GraphGym-Konfiguration
type KV map[string]any

// Architecture gibt den Namen des zu bauenden Netzwerks zurueck
func (kv KV) Architecture() string {
	return kv.String("model.type", "MultiModel")
}

// Has prueft ob ein Schluessel mit einem Nicht-Null-Wert gesetzt ist
func (kv KV) Has(key string) bool {
	v, ok := kv[key]
	return ok && v != nil
}

// Set setzt einen Wert; nil entspricht einem None in der YAML-Datei
func (kv KV) Set(key string, value any) {
	kv[key] = value
}

// Clone gibt eine unabhaengige Kopie zurueck
func (kv KV) Clone() KV {
	return maps.Clone(kv)
}

// Generische Getter

// String gibt einen String-Wert zurueck
func (kv KV) String(key string, defaultValue ...string) string {
	return keyValue(kv, key, asString, append(defaultValue, "")[0])
}

// Uint gibt einen uint32-Wert zurueck
func (kv KV) Uint(key string, defaultValue ...uint32) uint32 {
	return keyValue(kv, key, asUint, append(defaultValue, 0)[0])
}

// Int gibt einen int32-Wert zurueck
func (kv KV) Int(key string, defaultValue ...int32) int32 {
	return keyValue(kv, key, asInt, append(defaultValue, 0)[0])
}

// Float gibt einen float32-Wert zurueck
func (kv KV) Float(key string, defaultValue ...float32) float32 {
	return keyValue(kv, key, asFloat, append(defaultValue, 0)[0])
}

// Bool gibt einen bool-Wert zurueck
func (kv KV) Bool(key string, defaultValue ...bool) bool {
	return keyValue(kv, key, asBool, append(defaultValue, false)[0])
}

// Strings gibt ein String-Array zurueck
func (kv KV) Strings(key string, defaultValue ...[]string) []string {
	return keyValue(kv, key, arrayOf(asString), append(defaultValue, []string(nil))[0])
}

// Uints gibt ein uint32-Array zurueck
func (kv KV) Uints(key string, defaultValue ...[]uint32) []uint32 {
	return keyValue(kv, key, arrayOf(asUint), append(defaultValue, []uint32(nil))[0])
}

// Floats gibt ein float32-Array zurueck
func (kv KV) Floats(key string, defaultValue ...[]float32) []float32 {
	return keyValue(kv, key, arrayOf(asFloat), append(defaultValue, []float32(nil))[0])
}

// Len gibt die Anzahl der KV-Paare zurueck
func (kv KV) Len() int {
	return len(kv)
}

// Keys gibt einen sortierten Iterator ueber alle Keys zurueck
func (kv KV) Keys() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(kv)))
}

// Value gibt den Wert fuer einen Key zurueck
func (kv KV) Value(key string) any {
	return kv[key]
}

// keyValue ist eine generische Hilfsfunktion zum Lesen von KV-Werten
func keyValue[T any](kv KV, key string, conv func(any) (T, bool), defaultValue T) T {
	if v, ok := kv[key]; ok && v != nil {
		if val, ok := conv(v); ok {
			return val
		}
		slog.Debug("key has unexpected type", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}

	slog.Debug("key not found", "key", key, "default", defaultValue)
	return defaultValue
}

// Konvertierungen der YAML-Typen

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func asFloat(v any) (float32, bool) {
	f, ok := asFloat64(v)
	return float32(f), ok
}

func asInt(v any) (int32, bool) {
	f, ok := asFloat64(v)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}

func asUint(v any) (uint32, bool) {
	f, ok := asFloat64(v)
	if !ok || f != math.Trunc(f) || f < 0 || f > math.MaxUint32 {
		return 0, false
	}
	return uint32(f), true
}

func arrayOf[T any](conv func(any) (T, bool)) func(any) ([]T, bool) {
	return func(v any) ([]T, bool) {
		var items []any
		switch v := v.(type) {
		case []any:
			items = v
		case []T:
			return slices.Clone(v), true
		default:
			return nil, false
		}

		out := make([]T, 0, len(items))
		for _, item := range items {
			val, ok := conv(item)
			if !ok {
				return nil, false
			}
			out = append(out, val)
		}
		return out, true
	}
}
