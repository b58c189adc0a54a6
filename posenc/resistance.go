// resistance.go - Effektiver Widerstand je Kante
// Enthaelt: EffectiveResistance, laplacian

package posenc

import (
	"gonum.org/v1/gonum/mat"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
)

// rcond is the relative singular value cutoff of the pseudo-inverse.
const rcond = 1e-8

// laplacian returns L = D - A of the undirected, unweighted graph
// underlying d. Self loops and duplicate edges are ignored.
func laplacian(d *graph.Data) *mat.Dense {
	n := d.NumNodes
	l := mat.NewDense(n, n, nil)
	src, dst := graph.Endpoints(d.EdgeIndex)
	for i := range src {
		u, v := int(src[i]), int(dst[i])
		if u == v || l.At(u, v) != 0 {
			continue
		}
		l.Set(u, v, -1)
		l.Set(v, u, -1)
		l.Set(u, u, l.At(u, u)+1)
		l.Set(v, v, l.At(v, v)+1)
	}
	return l
}

// EffectiveResistance returns the (E, 1) effective resistance
// L⁺uu + L⁺vv - 2L⁺uv of every edge (u, v) of d.
func EffectiveResistance(ctx ml.Context, d *graph.Data) ml.Tensor {
	n := d.NumNodes
	l := laplacian(d)

	pinv := mat.NewDense(n, n, nil)
	var svd mat.SVD
	if svd.Factorize(l, mat.SVDThin) {
		if rank := svd.Rank(rcond); rank > 0 {
			svd.SolveTo(pinv, identity(n), rank)
		}
	}

	src, dst := graph.Endpoints(d.EdgeIndex)
	er := make([]float32, len(src))
	for i := range src {
		u, v := int(src[i]), int(dst[i])
		er[i] = float32(pinv.At(u, u) + pinv.At(v, v) - 2*pinv.At(u, v))
	}

	logutil.Trace("effective resistance", "nodes", n, "edges", len(er))
	return ctx.FromFloats(er, len(er), 1)
}
