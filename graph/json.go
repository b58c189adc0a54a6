// json.go - JSON-Format fuer Graph-Dateien
// Enthaelt: Decode(), Encode()
//
// Format:
//
//	{"graphs": [{"num_nodes": 3, "x": [[...], ...], "edge_index": [[0, 1], [1, 2]],
//	             "edge_attr": [[...], ...], "y": [...], "attrs": {"node_rwse": [[...], ...]}}]}
//
// Zusatztensoren mit Index-Schluesseln (siehe IsIndexKey) werden wie
// edge_index als zwei Zeilen gespeichert und als I32 geladen.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/graphgps/gps/ml"
)

type jsonFile struct {
	Graphs []jsonGraph `json:"graphs"`
}

type jsonGraph struct {
	NumNodes  int                    `json:"num_nodes,omitempty"`
	X         [][]float32            `json:"x,omitempty"`
	EdgeIndex [][]float32            `json:"edge_index"`
	EdgeAttr  [][]float32            `json:"edge_attr,omitempty"`
	Y         []float32              `json:"y,omitempty"`
	Attrs     map[string][][]float32 `json:"attrs,omitempty"`
}

// Decode reads a JSON graph file.
func Decode(ctx ml.Context, r io.Reader) ([]*Data, error) {
	var f jsonFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, err
	}

	graphs := make([]*Data, len(f.Graphs))
	for i, g := range f.Graphs {
		d, err := g.data(ctx)
		if err != nil {
			return nil, fmt.Errorf("graph %d: %w", i, err)
		}
		graphs[i] = d
	}
	return graphs, nil
}

func (g jsonGraph) data(ctx ml.Context) (*Data, error) {
	d := Data{NumNodes: g.NumNodes}

	if len(g.X) > 0 {
		if d.NumNodes == 0 {
			d.NumNodes = len(g.X)
		} else if d.NumNodes != len(g.X) {
			return nil, fmt.Errorf("x has %d rows for %d nodes", len(g.X), d.NumNodes)
		}

		x, err := matrix(ctx, g.X)
		if err != nil {
			return nil, fmt.Errorf("x: %w", err)
		}
		d.X = x
	}

	index, err := indexTensor(ctx, g.EdgeIndex)
	if err != nil {
		return nil, fmt.Errorf("edge_index: %w", err)
	}
	d.EdgeIndex = index

	src, dst := Endpoints(index)
	for e := range src {
		d.NumNodes = max(d.NumNodes, int(src[e])+1, int(dst[e])+1)
	}
	if d.X != nil && d.X.Dim(0) != d.NumNodes {
		return nil, fmt.Errorf("edge_index references node %d but x has %d rows", d.NumNodes-1, d.X.Dim(0))
	}

	if len(g.EdgeAttr) > 0 {
		if len(g.EdgeAttr) != len(src) {
			return nil, fmt.Errorf("edge_attr has %d rows for %d edges", len(g.EdgeAttr), len(src))
		}
		attr, err := matrix(ctx, g.EdgeAttr)
		if err != nil {
			return nil, fmt.Errorf("edge_attr: %w", err)
		}
		d.EdgeAttr = attr
	}

	if len(g.Y) > 0 {
		d.Y = ctx.FromFloats(g.Y, len(g.Y))
	}

	for _, name := range slices.Sorted(maps.Keys(g.Attrs)) {
		var t ml.Tensor
		var err error
		if IsIndexKey(name) {
			t, err = indexTensor(ctx, g.Attrs[name])
		} else {
			t, err = matrix(ctx, g.Attrs[name])
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		d.Set(name, t)
	}

	return &d, nil
}

// Encode writes graphs in the format read by Decode.
func Encode(w io.Writer, graphs []*Data) error {
	f := jsonFile{Graphs: make([]jsonGraph, len(graphs))}
	for i, d := range graphs {
		g := jsonGraph{
			NumNodes:  d.NumNodes,
			X:         rows(d.X),
			EdgeIndex: rows(d.EdgeIndex),
			EdgeAttr:  rows(d.EdgeAttr),
		}
		if g.EdgeIndex == nil {
			g.EdgeIndex = [][]float32{{}, {}}
		}
		if d.Y != nil {
			g.Y = d.Y.Floats()
		}

		for _, name := range d.Names() {
			if d.field(name) != nil {
				continue
			}
			if g.Attrs == nil {
				g.Attrs = make(map[string][][]float32)
			}
			g.Attrs[name] = rows(d.attrs[name])
		}
		f.Graphs[i] = g
	}

	enc := json.NewEncoder(w)
	return enc.Encode(f)
}

func matrix(ctx ml.Context, m [][]float32) (ml.Tensor, error) {
	if len(m) == 0 {
		return ctx.Zeros(ml.DTypeF32, 0, 0), nil
	}

	cols := len(m[0])
	flat := make([]float32, 0, len(m)*cols)
	for i, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return ctx.FromFloats(flat, len(m), cols), nil
}

func indexTensor(ctx ml.Context, m [][]float32) (ml.Tensor, error) {
	switch {
	case len(m) == 0:
		return ctx.Zeros(ml.DTypeI32, 2, 0), nil
	case len(m) != 2 || len(m[0]) != len(m[1]):
		return nil, errors.New("expected two rows of equal length")
	}

	ints := make([]int32, 0, 2*len(m[0]))
	for _, row := range m {
		for _, v := range row {
			if v < 0 || v != float32(int32(v)) {
				return nil, fmt.Errorf("invalid node index %v", v)
			}
			ints = append(ints, int32(v))
		}
	}
	return ctx.FromInts(ints, 2, len(m[0])), nil
}

func rows(t ml.Tensor) [][]float32 {
	if t == nil {
		return nil
	}

	r, c := t.Dim(0), 1
	if len(t.Shape()) == 2 {
		c = t.Dim(1)
	}

	f := t.Floats()
	out := make([][]float32, r)
	for i := range out {
		out[i] = f[i*c : (i+1)*c]
	}
	return out
}
