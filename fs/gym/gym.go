// gym.go - Laden von GraphGym-YAML-Konfigurationen
// Enthaelt: Load(), Decode(), Parse(), flatten()
package gym

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load liest eine YAML-Datei und legt sie ueber die Standardwerte
func Load(path string) (KV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kv, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kv, nil
}

// Decode liest YAML aus r. Verschachtelte Abschnitte werden zu
// punktgetrennten Schluesseln, fehlende Schluessel behalten ihre Standardwerte.
func Decode(r io.Reader) (KV, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	kv := Default()
	if err := flatten(kv, "", doc); err != nil {
		return nil, err
	}
	return kv, nil
}

// Parse setzt eine Ueberschreibung der Form "key=value". Der Wert wird als
// YAML gelesen, "gt.layers=4" ergibt also eine Zahl und "a=[1, 2]" eine Liste.
func (kv KV) Parse(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid override %q, expected key=value", s)
	}

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("override %s: %w", key, err)
	}

	if m, ok := v.(map[string]any); ok {
		return flatten(kv, key, m)
	}
	kv.Set(key, v)
	return nil
}

func flatten(kv KV, prefix string, m map[string]any) error {
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("empty key below %q", prefix)
		}

		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch v := v.(type) {
		case map[string]any:
			if err := flatten(kv, key, v); err != nil {
				return err
			}
		case string:
			// GraphGym schreibt None oft als String
			if v == "None" {
				kv.Set(key, nil)
			} else {
				kv.Set(key, v)
			}
		default:
			kv.Set(key, v)
		}
	}
	return nil
}
