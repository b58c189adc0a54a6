// file_read.go - Dekodierung von Key-Values und Tensor-Infos
// Enthaelt: readTensor, readKeyValue, readValue, readArray, read[T], readString

package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxLength begrenzt String- und Array-Laengen aus dem Header
const maxLength = 1 << 28

// readTensor liest Name, Shape, Typ und Offset eines Tensors. Es werden
// nur Tensoren mit ein oder zwei Dimensionen unterstuetzt.
func (f *File) readTensor() (TensorInfo, error) {
	var ti TensorInfo

	name, err := readString(f)
	if err != nil {
		return ti, err
	}
	ti.Name = name

	rank, err := read[uint32](f)
	if err != nil {
		return ti, err
	}
	if rank < 1 || rank > 2 {
		return ti, fmt.Errorf("%s: %w rank %d", name, ErrUnsupported, rank)
	}

	ti.Shape = make([]uint64, rank)
	if err := binary.Read(f.reader, binary.LittleEndian, ti.Shape); err != nil {
		return ti, err
	}

	typ, err := read[uint32](f)
	if err != nil {
		return ti, err
	}
	ti.Type = TensorType(typ)
	if _, _, err := ti.Type.dtype(); err != nil {
		return ti, fmt.Errorf("%s: %w", name, err)
	}

	ti.Offset, err = read[uint64](f)
	return ti, err
}

func (f *File) readKeyValue() (string, any, error) {
	key, err := readString(f)
	if err != nil {
		return "", nil, err
	}

	typ, err := read[uint32](f)
	if err != nil {
		return "", nil, err
	}

	value, err := readValue(f, typ)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", key, err)
	}
	return key, value, nil
}

// readValue dekodiert einen Wert der Typen, die Write erzeugt
func readValue(f *File, typ uint32) (any, error) {
	switch typ {
	case typeUint32:
		return read[uint32](f)
	case typeInt32:
		return read[int32](f)
	case typeUint64:
		return read[uint64](f)
	case typeInt64:
		return read[int64](f)
	case typeFloat32:
		return read[float32](f)
	case typeFloat64:
		return read[float64](f)
	case typeBool:
		return read[bool](f)
	case typeString:
		return readString(f)
	case typeArray:
		return readArray(f)
	}
	return nil, fmt.Errorf("%w value type %d", ErrUnsupported, typ)
}

func read[T any](f *File) (v T, err error) {
	err = binary.Read(f.reader, binary.LittleEndian, &v)
	return v, err
}

func readLength(f *File) (uint64, error) {
	n, err := read[uint64](f)
	if err == nil && n > maxLength {
		err = fmt.Errorf("%w length %d", ErrUnsupported, n)
	}
	return n, err
}

// readString nutzt f.bts als wiederverwendbaren Puffer
func readString(f *File) (string, error) {
	n, err := readLength(f)
	if err != nil {
		return "", err
	}

	if int(n) > len(f.bts) {
		f.bts = make([]byte, n)
	}
	if _, err := io.ReadFull(f.reader, f.bts[:n]); err != nil {
		return "", err
	}
	return string(f.bts[:n]), nil
}

func readArray(f *File) (any, error) {
	typ, err := read[uint32](f)
	if err != nil {
		return nil, err
	}

	n, err := readLength(f)
	if err != nil {
		return nil, err
	}

	switch typ {
	case typeUint32:
		return readSlice[uint32](f, n)
	case typeInt32:
		return readSlice[int32](f, n)
	case typeUint64:
		return readSlice[uint64](f, n)
	case typeInt64:
		return readSlice[int64](f, n)
	case typeFloat32:
		return readSlice[float32](f, n)
	case typeFloat64:
		return readSlice[float64](f, n)
	case typeBool:
		return readSlice[bool](f, n)
	case typeString:
		s := make([]string, 0, min(n, 1024))
		for range n {
			v, err := readString(f)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w array type %d", ErrUnsupported, typ)
}

func readSlice[T any](f *File, n uint64) ([]T, error) {
	s := make([]T, n)
	return s, binary.Read(f.reader, binary.LittleEndian, s)
}
