// Package gguf - GGUF Write Operations
//
// Dieses Modul enthaelt Funktionen zum Schreiben von GGUF-Dateien:
// - Write: Schreibt komplettes GGUF-File mit KV und Tensors
// - writeValue: Typ-Prefix und Wert eines Key-Values
// - writeArray: Array-Serialisierung
// - writeTensorInfo: Tensor-Metadaten Serialisierung
package gguf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/ml"
)

// Write schreibt ein GGUF-File (V3) mit den Key-Values kv und den Tensoren
// in weights. Tensoren werden nach Namen sortiert abgelegt.
func Write(f *os.File, kv map[string]any, weights map[string]ml.Tensor) error {
	if _, ok := kv["general.architecture"].(string); !ok {
		return errors.New("architecture not set")
	}

	kv = maps.Clone(kv)
	alignment := uint32(defaultAlignment)
	if a, ok := kv["general.alignment"].(uint32); ok && a > 0 {
		alignment = a
	}
	kv["general.alignment"] = alignment

	// Magic, Version, Tensor Count, KV Count
	for _, v := range []any{[]byte("GGUF"), uint32(3), uint64(len(weights)), uint64(len(kv))} {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, key := range slices.Sorted(maps.Keys(kv)) {
		if err := writeString(f, key); err != nil {
			return err
		}
		if err := writeValue(f, kv[key]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	names := slices.Sorted(maps.Keys(weights))

	var s uint64
	infos := make([]TensorInfo, len(names))
	for i, name := range names {
		t := weights[name]
		kind, err := tensorType(t.DType())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		shape := t.Shape()
		infos[i] = TensorInfo{Name: name, Type: kind, Offset: s}
		for j := len(shape) - 1; j >= 0; j-- {
			infos[i].Shape = append(infos[i].Shape, uint64(shape[j]))
		}

		if err := writeTensorInfo(f, infos[i]); err != nil {
			return err
		}

		s += uint64(len(t.Bytes()))
		s += uint64(padding(int64(s), int64(alignment)))
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	offset += padding(offset, int64(alignment))

	// Tensor-Daten parallel schreiben
	var g errgroup.Group
	g.SetLimit(envconfig.WalkWorkers())
	for i, name := range names {
		w := io.NewOffsetWriter(f, offset+int64(infos[i].Offset))
		g.Go(func() error {
			_, err := w.Write(weights[name].Bytes())
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Padding hinter dem letzten Tensor
	if err := f.Truncate(offset + int64(s)); err != nil {
		return err
	}

	slog.Debug("gguf written", "file", f.Name(), "tensors", len(weights), "kv", len(kv))
	return nil
}

// writeValue schreibt Typ-Prefix und Wert
func writeValue(w io.Writer, v any) error {
	switch v := v.(type) {
	case int32:
		return writeTyped(w, typeInt32, v)
	case int64:
		return writeTyped(w, typeInt64, v)
	case uint32:
		return writeTyped(w, typeUint32, v)
	case uint64:
		return writeTyped(w, typeUint64, v)
	case float32:
		return writeTyped(w, typeFloat32, v)
	case float64:
		return writeTyped(w, typeFloat64, v)
	case bool:
		return writeTyped(w, typeBool, v)
	case string:
		if err := binary.Write(w, binary.LittleEndian, typeString); err != nil {
			return err
		}
		return writeString(w, v)
	case []int64:
		return writeArray(w, typeInt64, v)
	case []float64:
		return writeArray(w, typeFloat64, v)
	case []bool:
		return writeArray(w, typeBool, v)
	case []string:
		return writeArray(w, typeString, v)
	default:
		return fmt.Errorf("%w value type %T", ErrUnsupported, v)
	}
}

func writeTyped[V any](w io.Writer, t uint32, v V) error {
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// writeArray schreibt ein Array mit Typ-Prefix
func writeArray[S ~[]E, E any](w io.Writer, t uint32, s S) error {
	for _, v := range []any{typeArray, t, uint64(len(s))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// Strings muessen einzeln geschrieben werden
	if t == typeString {
		for _, e := range any(s).([]string) {
			if err := writeString(w, e); err != nil {
				return err
			}
		}
		return nil
	}

	return binary.Write(w, binary.LittleEndian, s)
}

// writeTensorInfo schreibt die Tensor-Metadaten
func writeTensorInfo(w io.Writer, t TensorInfo) error {
	slog.Debug(t.Name, "type", t.Type, "shape", t.Shape, "offset", t.Offset)

	if err := writeString(w, t.Name); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Shape))); err != nil {
		return err
	}
	for _, n := range t.Shape {
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(t.Type)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.Offset)
}
