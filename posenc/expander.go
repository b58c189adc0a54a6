// expander.go - Zufaellige regulaere Expander-Graphen fuer Exphormer
// Enthaelt: ExpanderOptions, Expander, spectralGap

package posenc

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
)

// ErrUnsupportedExpander is returned for unknown prep.exp_algorithm values.
var ErrUnsupportedExpander = errors.New("unsupported expander algorithm")

// maxExpanderTries bounds the number of sampled candidates.
const maxExpanderTries = 100

type ExpanderOptions struct {
	// Degree is the target degree; Degree/2 permutations are sampled.
	Degree int

	// Algorithm must be "Random-d".
	Algorithm string

	Seed int64
}

// Expander samples a random regular expander on the nodes of d and returns
// its (2, E) edge index. Every permutation π contributes i→π(i) and π(i)→i
// without self loops. Candidates are drawn until the second largest
// eigenvalue magnitude meets the Ramanujan bound 2√(d-1), keeping the
// candidate with the widest spectral gap. Graphs with at most Degree nodes
// get the complete graph instead.
func Expander(ctx ml.Context, d *graph.Data, opts ExpanderOptions) (ml.Tensor, error) {
	if opts.Algorithm != "Random-d" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExpander, opts.Algorithm)
	}
	if opts.Degree < 2 {
		return nil, fmt.Errorf("prep.exp_deg must be at least 2, got %d", opts.Degree)
	}

	n := d.NumNodes
	if n <= opts.Degree {
		var src, dst []int32
		for i := range n {
			for j := range n {
				if i != j {
					src = append(src, int32(i))
					dst = append(dst, int32(j))
				}
			}
		}
		return graph.EdgeIndex(ctx, src, dst), nil
	}

	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(n)))
	bound := 2 * math.Sqrt(float64(opts.Degree-1))

	var bestSrc, bestDst []int32
	best := math.Inf(-1)
	for try := range maxExpanderTries {
		var src, dst []int32
		for range opts.Degree / 2 {
			for i, j := range rng.Perm(n) {
				if i == j {
					continue
				}
				src = append(src, int32(i), int32(j))
				dst = append(dst, int32(j), int32(i))
			}
		}

		gap, second := spectralGap(n, src, dst)
		if gap > best {
			best, bestSrc, bestDst = gap, src, dst
		}
		if second <= bound {
			logutil.Trace("expander accepted", "nodes", n, "tries", try+1, "lambda2", second)
			break
		}
	}

	return graph.EdgeIndex(ctx, bestSrc, bestDst), nil
}

// spectralGap returns λ₁ - max(|λ₂|, |λₙ|) of the symmetric adjacency
// matrix given by src and dst, together with that second magnitude.
func spectralGap(n int, src, dst []int32) (gap, second float64) {
	a := mat.NewSymDense(n, nil)
	for i := range src {
		u, v := int(src[i]), int(dst[i])
		if u <= v {
			a.SetSym(u, v, a.At(u, v)+1)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return math.Inf(-1), math.Inf(1)
	}

	vals := eig.Values(nil)
	second = max(math.Abs(vals[0]), math.Abs(vals[n-2]))
	return vals[n-1] - second, second
}
