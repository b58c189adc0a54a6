// Package gguf - GGUF-Dateien fuer Gewichte und Konfiguration
//
// Dieses Modul enthaelt die File-Hauptstruktur fuer GGUF-Dateien:
// - File: Repraesentiert eine geoeffnete GGUF-Datei
// - Open: Oeffnet und parst Header, Key-Values und Tensor-Infos
// - Tensor/Weights: Laedt Tensor-Daten als ml.Tensor
// - Type-Konstanten fuer die Datentypen
package gguf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/graphgps/gps/ml"
)

// Type-Konstanten fuer GGUF-Datentypen
const (
	typeUint8 uint32 = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// TensorType ist der GGML-Typ eines Tensors
type TensorType uint32

const (
	TensorTypeF32 TensorType = 0
	TensorTypeF16 TensorType = 1
	TensorTypeI32 TensorType = 26
)

func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeI32:
		return "I32"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

func (t TensorType) dtype() (ml.DType, int, error) {
	switch t {
	case TensorTypeF32:
		return ml.DTypeF32, 4, nil
	case TensorTypeF16:
		return ml.DTypeF16, 2, nil
	case TensorTypeI32:
		return ml.DTypeI32, 4, nil
	default:
		return 0, 0, fmt.Errorf("%w tensor type %v", ErrUnsupported, t)
	}
}

func tensorType(d ml.DType) (TensorType, error) {
	switch d {
	case ml.DTypeF32:
		return TensorTypeF32, nil
	case ml.DTypeF16:
		return TensorTypeF16, nil
	case ml.DTypeI32:
		return TensorTypeI32, nil
	default:
		return 0, fmt.Errorf("%w dtype %v", ErrUnsupported, d)
	}
}

const defaultAlignment = 32

// ErrUnsupported wird bei nicht unterstuetzten Formaten oder Versionen zurueckgegeben
var ErrUnsupported = errors.New("unsupported")

// TensorInfo beschreibt einen Tensor. Shape ist in GGUF-Reihenfolge, die
// innerste Dimension zuerst.
type TensorInfo struct {
	Name   string
	Shape  []uint64
	Type   TensorType
	Offset uint64
}

// Dims gibt die Form in Zeilen-Reihenfolge zurueck, wie ml.Tensor sie nutzt
func (ti TensorInfo) Dims() []int {
	dims := make([]int, len(ti.Shape))
	for i, d := range ti.Shape {
		dims[len(dims)-1-i] = int(d)
	}
	return dims
}

func (ti TensorInfo) numel() uint64 {
	n := uint64(1)
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}

// File repraesentiert eine geoeffnete GGUF-Datei
type File struct {
	Magic   [4]byte
	Version uint32

	// KV haelt alle Key-Values in Dateireihenfolge
	KV      map[string]any
	Tensors []TensorInfo

	offset int64
	file   *os.File
	reader *countingReader
	bts    []byte
}

// countingReader zaehlt die gelesenen Bytes fuer die Alignment-Berechnung
type countingReader struct {
	*bufio.Reader
	offset int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.offset += int64(n)
	return n, err
}

// Open oeffnet eine GGUF-Datei und parst den Header
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := decode(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return f, nil
}

// decode liest Header, Key-Values und Tensor-Infos aus file
func decode(file *os.File) (*File, error) {
	f := &File{file: file, bts: make([]byte, 4096), KV: make(map[string]any)}
	f.reader = &countingReader{Reader: bufio.NewReaderSize(f.file, 32<<10)}

	if err := binary.Read(f.reader, binary.LittleEndian, &f.Magic); err != nil {
		return nil, err
	}

	if !bytes.Equal(f.Magic[:], []byte("GGUF")) {
		return nil, fmt.Errorf("%w file type %v", ErrUnsupported, f.Magic)
	}

	if err := binary.Read(f.reader, binary.LittleEndian, &f.Version); err != nil {
		return nil, err
	}

	if f.Version < 2 {
		return nil, fmt.Errorf("%w version %v", ErrUnsupported, f.Version)
	}

	numTensors, err := read[uint64](f)
	if err != nil {
		return nil, err
	}

	numKV, err := read[uint64](f)
	if err != nil {
		return nil, err
	}

	for range numKV {
		key, value, err := f.readKeyValue()
		if err != nil {
			return nil, err
		}
		f.KV[key] = value
	}

	for range numTensors {
		ti, err := f.readTensor()
		if err != nil {
			return nil, err
		}
		f.Tensors = append(f.Tensors, ti)
	}

	alignment := int64(defaultAlignment)
	if a, ok := f.KV["general.alignment"].(uint32); ok && a > 0 {
		alignment = int64(a)
	}
	f.offset = f.reader.offset + padding(f.reader.offset, alignment)
	return f, nil
}

// Close schliesst die Datei
func (f *File) Close() error {
	return f.file.Close()
}

// String gibt den String-Wert von key zurueck oder ""
func (f *File) String(key string) string {
	s, _ := f.KV[key].(string)
	return s
}

// TensorInfo sucht Tensor-Info nach Name
func (f *File) TensorInfo(name string) (TensorInfo, bool) {
	if i := slices.IndexFunc(f.Tensors, func(t TensorInfo) bool { return t.Name == name }); i >= 0 {
		return f.Tensors[i], true
	}
	return TensorInfo{}, false
}

// Tensor laedt die Daten von ti
func (f *File) Tensor(ctx ml.Context, ti TensorInfo) (ml.Tensor, error) {
	dtype, size, err := ti.Type.dtype()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ti.Name, err)
	}

	bts := make([]byte, ti.numel()*uint64(size))
	if _, err := f.file.ReadAt(bts, f.offset+int64(ti.Offset)); err != nil {
		return nil, fmt.Errorf("%s: %w", ti.Name, err)
	}

	return ctx.FromBytes(dtype, bts, ti.Dims()...), nil
}

// Weights laedt alle Tensoren der Datei
func (f *File) Weights(ctx ml.Context) (map[string]ml.Tensor, error) {
	weights := make(map[string]ml.Tensor, len(f.Tensors))
	for _, ti := range f.Tensors {
		t, err := f.Tensor(ctx, ti)
		if err != nil {
			return nil, err
		}
		weights[ti.Name] = t
	}
	return weights, nil
}

func padding(offset, align int64) int64 {
	return (align - offset%align) % align
}
