// Package graph haelt Graphen und gebatchte Graphen fuer die Encoder und Modelle.
//
// Ein Batch ist ein veraenderlicher Container: Encoder lesen und ersetzen
// Felder an Ort und Stelle. Neben den festen Feldern (x, edge_index,
// edge_attr, y) traegt er benannte Zusatztensoren, typischerweise
// Positional Encodings wie "node_rwse" oder "rrwp_index".
package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/graphgps/gps/ml"
)

// ErrMissingTensor is returned by Get when a batch carries no tensor under
// the requested name.
var ErrMissingTensor = errors.New("missing tensor")

const (
	KeyX         = "x"
	KeyEdgeIndex = "edge_index"
	KeyEdgeAttr  = "edge_attr"
	KeyY         = "y"
	KeyBatch     = "batch"
)

// tensors is the shared named-tensor store of Data and Batch.
type tensors struct {
	X         ml.Tensor
	EdgeIndex ml.Tensor
	EdgeAttr  ml.Tensor
	Y         ml.Tensor

	attrs map[string]ml.Tensor
}

func (s *tensors) field(name string) *ml.Tensor {
	switch name {
	case KeyX:
		return &s.X
	case KeyEdgeIndex:
		return &s.EdgeIndex
	case KeyEdgeAttr:
		return &s.EdgeAttr
	case KeyY:
		return &s.Y
	}
	return nil
}

// Get returns the tensor stored under name.
func (s *tensors) Get(name string) (ml.Tensor, error) {
	var t ml.Tensor
	if f := s.field(name); f != nil {
		t = *f
	} else {
		t = s.attrs[name]
	}

	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
	}
	return t, nil
}

// Has reports whether a tensor is stored under name.
func (s *tensors) Has(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// Set stores t under name. A nil t removes the entry.
func (s *tensors) Set(name string, t ml.Tensor) {
	if f := s.field(name); f != nil {
		*f = t
		return
	}

	if t == nil {
		delete(s.attrs, name)
		return
	}

	if s.attrs == nil {
		s.attrs = make(map[string]ml.Tensor)
	}
	s.attrs[name] = t
}

// Names returns the sorted names of all stored tensors.
func (s *tensors) Names() []string {
	names := slices.Collect(maps.Keys(s.attrs))
	for _, name := range []string{KeyX, KeyEdgeIndex, KeyEdgeAttr, KeyY} {
		if *s.field(name) != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Data is a single graph.
type Data struct {
	tensors

	NumNodes int
}

// NumEdges returns the number of directed edges in edge_index.
func (d *Data) NumEdges() int {
	if d.EdgeIndex == nil {
		return 0
	}
	return d.EdgeIndex.Dim(1)
}

// Batch is a disjoint union of graphs.
type Batch struct {
	tensors

	// Batch assigns every node the index of its graph.
	Batch ml.Tensor

	// Ptr holds node offsets: graph g owns nodes [Ptr[g], Ptr[g+1]).
	Ptr []int

	// Pred is set by prediction heads.
	Pred ml.Tensor
}

// NumGraphs returns the number of graphs in the batch.
func (b *Batch) NumGraphs() int {
	return max(len(b.Ptr)-1, 0)
}

// NumNodes returns the total number of nodes in the batch.
func (b *Batch) NumNodes() int {
	if len(b.Ptr) == 0 {
		return 0
	}
	return b.Ptr[len(b.Ptr)-1]
}

// NumEdges returns the number of directed edges in edge_index.
func (b *Batch) NumEdges() int {
	if b.EdgeIndex == nil {
		return 0
	}
	return b.EdgeIndex.Dim(1)
}

// Get returns the tensor stored under name, including the "batch" vector.
func (b *Batch) Get(name string) (ml.Tensor, error) {
	if name == KeyBatch {
		if b.Batch == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
		}
		return b.Batch, nil
	}
	return b.tensors.Get(name)
}

// Has reports whether a tensor is stored under name.
func (b *Batch) Has(name string) bool {
	_, err := b.Get(name)
	return err == nil
}

// Endpoints splits an I32 (2, E) edge index into source and target slices.
func Endpoints(index ml.Tensor) (src, dst []int32) {
	if index == nil {
		return nil, nil
	}

	if index.DType() != ml.DTypeI32 || index.Dim(0) != 2 || len(index.Shape()) != 2 {
		panic(fmt.Sprintf("graph: edge index must be i32 (2, E), got %v %v", index.DType(), index.Shape()))
	}

	ints := index.Ints()
	e := index.Dim(1)
	return ints[:e:e], ints[e:]
}

// EdgeIndex builds an I32 (2, E) tensor from source and target slices.
func EdgeIndex(ctx ml.Context, src, dst []int32) ml.Tensor {
	if len(src) != len(dst) {
		panic(fmt.Sprintf("graph: %d sources for %d targets", len(src), len(dst)))
	}
	return ctx.FromInts(slices.Concat(src, dst), 2, len(src))
}
