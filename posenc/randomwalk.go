// randomwalk.go - Exakte Random-Walk Kodierungen
// Enthaelt: ReturnProbabilities (RWSE/RWPE), RRWP

package posenc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
)

// ReturnProbabilities returns the (N, len(times)) matrix of k-step return
// probabilities diag(Pᵏ) for every k in times. With lazy the walk uses
// (I+P)/2 instead of P.
func ReturnProbabilities(ctx ml.Context, d *graph.Data, times []int, lazy bool) ml.Tensor {
	n := d.NumNodes
	p := transition(d)
	if lazy {
		p.Add(p, identity(n))
		p.Scale(0.5, p)
	}

	out := mat.NewDense(n, len(times), nil)
	for j, k := range times {
		var pk mat.Dense
		pk.Pow(p, k)
		for i := range n {
			out.Set(i, j, pk.At(i, i))
		}
	}
	return tensor(ctx, out)
}

// RRWPOptions controls the relative random walk stack.
type RRWPOptions struct {
	// Steps is the number of matrices in the stack.
	Steps int

	// Identity starts the stack at P⁰ = I, otherwise at P¹.
	Identity bool

	// FullGraph emits every node pair instead of the pairs reachable
	// within the stack.
	FullGraph bool
}

// RRWP stores the stack [P^s, ..., P^(s+K-1)] of d, s = 0 with Identity and
// 1 otherwise. "rrwp" holds the diagonal (N, K); "rrwp_index" (2, M) and
// "rrwp_val" (M, K) hold every pair with a nonzero entry in row-major order.
func RRWP(ctx ml.Context, d *graph.Data, opts RRWPOptions) error {
	if opts.Steps < 1 {
		return fmt.Errorf("posenc_RRWPE.ksteps must be positive, got %d", opts.Steps)
	}

	n := d.NumNodes
	p := transition(d)

	stack := make([]*mat.Dense, opts.Steps)
	cur := identity(n)
	if !opts.Identity {
		cur = mat.DenseCopyOf(p)
	}
	for k := range stack {
		stack[k] = cur
		next := mat.NewDense(n, n, nil)
		next.Mul(cur, p)
		cur = next
	}

	diag := make([]float32, 0, n*opts.Steps)
	for i := range n {
		for _, m := range stack {
			diag = append(diag, float32(m.At(i, i)))
		}
	}

	var src, dst []int32
	var val []float32
	for i := range n {
		for j := range n {
			row := make([]float32, opts.Steps)
			nonzero := opts.FullGraph
			for k, m := range stack {
				row[k] = float32(m.At(i, j))
				nonzero = nonzero || row[k] != 0
			}
			if !nonzero {
				continue
			}
			src = append(src, int32(i))
			dst = append(dst, int32(j))
			val = append(val, row...)
		}
	}

	d.Set("rrwp", ctx.FromFloats(diag, n, opts.Steps))
	d.Set("rrwp_index", graph.EdgeIndex(ctx, src, dst))
	d.Set("rrwp_val", ctx.FromFloats(val, len(src), opts.Steps))
	return nil
}
