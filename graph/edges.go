// edges.go - Operationen auf Kantenlisten
// Enthaelt: Coalesce(), AddSelfLoops(), FullEdgeIndex(), Degree()
package graph

import (
	"fmt"
	"slices"

	"github.com/emirpasic/gods/v2/maps/treemap"

	"github.com/graphgps/gps/ml"
)

// Coalesce merges duplicate (src, dst) pairs of index. The result is sorted
// by source, then target, and the rows of attr belonging to one pair are
// summed. attr may be nil. n is the number of nodes; indices at or above n
// grow it.
func Coalesce(ctx ml.Context, index, attr ml.Tensor, n int) (ml.Tensor, ml.Tensor, error) {
	src, dst := Endpoints(index)
	if attr != nil && attr.Dim(0) != len(src) {
		return nil, nil, fmt.Errorf("coalesce: %d attribute rows for %d edges", attr.Dim(0), len(src))
	}

	for e := range src {
		if src[e] < 0 || dst[e] < 0 {
			return nil, nil, fmt.Errorf("coalesce: negative node index in edge %d", e)
		}
		n = max(n, int(src[e])+1, int(dst[e])+1)
	}

	pairs := treemap.New[int64, int32]()
	for e := range src {
		pairs.Put(int64(src[e])*int64(n)+int64(dst[e]), 0)
	}

	keys := pairs.Keys()
	outSrc := make([]int32, len(keys))
	outDst := make([]int32, len(keys))
	for i, k := range keys {
		pairs.Put(k, int32(i))
		outSrc[i] = int32(k / int64(n))
		outDst[i] = int32(k % int64(n))
	}

	if attr != nil {
		slot := make([]int32, len(src))
		for e := range src {
			slot[e], _ = pairs.Get(int64(src[e])*int64(n) + int64(dst[e]))
		}
		attr = attr.Scatter(ctx, ctx.FromInts(slot, len(slot)), len(keys), ml.ReduceSum)
	}

	return EdgeIndex(ctx, outSrc, outDst), attr, nil
}

// AddSelfLoops appends an edge (i, i) for every node. When attr is not nil
// the new edges get attribute rows filled with fill.
func AddSelfLoops(ctx ml.Context, index, attr ml.Tensor, n int, fill float32) (ml.Tensor, ml.Tensor) {
	src, dst := Endpoints(index)

	loops := make([]int32, n)
	for i := range loops {
		loops[i] = int32(i)
	}
	index = EdgeIndex(ctx, slices.Concat(src, loops), slices.Concat(dst, loops))

	if attr != nil {
		cols := attr.Dim(1)
		values := make([]float32, n*cols)
		for i := range values {
			values[i] = fill
		}

		var loopAttr ml.Tensor
		if len(attr.Shape()) == 1 {
			loopAttr = ctx.FromFloats(values, n)
		} else {
			loopAttr = ctx.FromFloats(values, n, cols)
		}
		attr = attr.Concat(ctx, loopAttr, 0)
	}

	return index, attr
}

// FullEdgeIndex connects every ordered pair of nodes that share a graph,
// self pairs included. ptr holds node offsets as in Batch.Ptr.
func FullEdgeIndex(ctx ml.Context, ptr []int) ml.Tensor {
	var src, dst []int32
	for g := 0; g+1 < len(ptr); g++ {
		for i := ptr[g]; i < ptr[g+1]; i++ {
			for j := ptr[g]; j < ptr[g+1]; j++ {
				src = append(src, int32(i))
				dst = append(dst, int32(j))
			}
		}
	}
	return EdgeIndex(ctx, src, dst)
}

// Degree counts the entries of idx per node.
func Degree(idx []int32, n int) []float64 {
	deg := make([]float64, n)
	for _, i := range idx {
		deg[i]++
	}
	return deg
}
