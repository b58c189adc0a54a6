// collate.go - Zusammenfassen einzelner Graphen zu einem Batch
// Enthaelt: Collate(), IsIndexKey()
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/graphgps/gps/ml"
)

// IsIndexKey reports whether tensors stored under key hold node indices in
// a (2, E) layout. Such tensors are concatenated along dim 1 and shifted by
// the node offset of their graph.
func IsIndexKey(key string) bool {
	return strings.Contains(key, "index") || strings.HasSuffix(key, "_edges")
}

// Collate combines graphs into one batch. Every graph must carry the same
// set of tensors.
func Collate(ctx ml.Context, graphs []*Data) (*Batch, error) {
	if len(graphs) == 0 {
		return nil, errors.New("collate: no graphs")
	}

	names := graphs[0].Names()
	if !slices.Contains(names, KeyEdgeIndex) {
		names = append(names, KeyEdgeIndex)
		slices.Sort(names)
	}

	b := Batch{Ptr: make([]int, 1, len(graphs)+1)}
	var assign []int32
	for g, d := range graphs {
		if d.NumNodes < 0 {
			return nil, fmt.Errorf("collate: graph %d has %d nodes", g, d.NumNodes)
		}
		b.Ptr = append(b.Ptr, b.Ptr[g]+d.NumNodes)
		for range d.NumNodes {
			assign = append(assign, int32(g))
		}
	}
	b.Batch = ctx.FromInts(assign, len(assign))

	for _, name := range names {
		var out ml.Tensor
		for g, d := range graphs {
			t, err := d.Get(name)
			if errors.Is(err, ErrMissingTensor) && name == KeyEdgeIndex {
				t = ctx.Zeros(ml.DTypeI32, 2, 0)
			} else if err != nil {
				return nil, fmt.Errorf("collate: graph %d: %w", g, err)
			}

			dim := 0
			if IsIndexKey(name) {
				t = shift(ctx, t, b.Ptr[g])
				dim = 1
			}

			if out == nil {
				out = t
			} else {
				out = out.Concat(ctx, t, dim)
			}
		}
		b.Set(name, out)
	}

	return &b, nil
}

func shift(ctx ml.Context, index ml.Tensor, offset int) ml.Tensor {
	if offset == 0 {
		return index
	}

	ints := index.Ints()
	for i := range ints {
		ints[i] += int32(offset)
	}
	return ctx.FromInts(ints, index.Shape()...)
}
