// sampled.go - Per Random Walk geschaetzte Kodierungen
// Enthaelt: WalkOptions, ARRWP, SampledReturnProbabilities, ReduceARRWP

package posenc

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
)

// WalkOptions configures the sampled walks.
type WalkOptions struct {
	// Length is the number of steps per walk.
	Length int

	// Count is the number of walks started from every node.
	Count int

	// Window is the number of walk positions recorded.
	Window int

	// Lazy walks stay in place with probability 1/2.
	Lazy bool

	Seed int64
}

func (o WalkOptions) validate(offset int) error {
	switch {
	case o.Count < 1:
		return fmt.Errorf("prep.random_walks.num_walks must be positive, got %d", o.Count)
	case o.Window < 1:
		return fmt.Errorf("window_size must be positive, got %d", o.Window)
	case o.Window-1+offset > o.Length:
		return fmt.Errorf("window_size %d exceeds walk_length %d", o.Window, o.Length)
	}
	return nil
}

// visits maps a target node to its visit frequency per window position.
type visits map[int32][]float64

// walk samples the walks of every node in parallel. Position t of the
// window counts the node reached after t+offset steps.
func walk(d *graph.Data, opts WalkOptions, offset int) ([]visits, error) {
	if err := opts.validate(offset); err != nil {
		return nil, err
	}

	n := d.NumNodes
	neighbors := make([][]int32, n)
	src, dst := graph.Endpoints(d.EdgeIndex)
	for i := range src {
		neighbors[src[i]] = append(neighbors[src[i]], dst[i])
	}

	out := make([]visits, n)

	var g errgroup.Group
	g.SetLimit(envconfig.WalkWorkers())
	for start := range n {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(start)))
			v := make(visits)
			inc := 1 / float64(opts.Count)

			for range opts.Count {
				cur := int32(start)
				for step := range opts.Window + offset {
					if t := step - offset; t >= 0 {
						if v[cur] == nil {
							v[cur] = make([]float64, opts.Window)
						}
						v[cur][t] += inc
					}

					if opts.Lazy && rng.IntN(2) == 0 {
						continue
					}
					if next := neighbors[cur]; len(next) > 0 {
						cur = next[rng.IntN(len(next))]
					}
				}
			}

			out[start] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// diagonal returns the (N, W) return frequencies of every node.
func diagonal(ctx ml.Context, freq []visits, window int) ml.Tensor {
	f := make([]float32, len(freq)*window)
	for s, v := range freq {
		for t, p := range v[int32(s)] {
			f[s*window+t] = float32(p)
		}
	}
	return ctx.FromFloats(f, len(freq), window)
}

// ARRWP estimates the relative random walk stack over opts.Window steps,
// starting at step 0. It stores "node_arrwp" (N, W) and the visited pairs
// as "edge_arrwp_index" (2, M) and "edge_arrwp_val" (M, W).
func ARRWP(ctx ml.Context, d *graph.Data, opts WalkOptions) error {
	freq, err := walk(d, opts, 0)
	if err != nil {
		return fmt.Errorf("posenc_ARRWPE: %w", err)
	}

	var src, dst []int32
	var val []float32
	for s, v := range freq {
		targets := make([]int32, 0, len(v))
		for t := range v {
			targets = append(targets, t)
		}
		slices.Sort(targets)

		for _, t := range targets {
			src = append(src, int32(s))
			dst = append(dst, t)
			for _, p := range v[t] {
				val = append(val, float32(p))
			}
		}
	}

	d.Set("node_arrwp", diagonal(ctx, freq, opts.Window))
	d.Set("edge_arrwp_index", graph.EdgeIndex(ctx, src, dst))
	d.Set("edge_arrwp_val", ctx.FromFloats(val, len(src), opts.Window))
	return nil
}

// SampledReturnProbabilities estimates the return probabilities after
// 1..opts.Window steps and stores them as key (N, W).
func SampledReturnProbabilities(ctx ml.Context, d *graph.Data, key string, opts WalkOptions) error {
	freq, err := walk(d, opts, 1)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	d.Set(key, diagonal(ctx, freq, opts.Window))
	return nil
}

// ReduceARRWP projects "node_arrwp" onto its first dim principal
// components and stores the result as "node_arrwp_reduced" (N, dim).
// Components beyond the rank of the data are zero.
func ReduceARRWP(ctx ml.Context, d *graph.Data, dim int) error {
	if dim < 1 {
		return fmt.Errorf("posenc_ARRWPE.dim_reduced must be positive, got %d", dim)
	}

	pe, err := d.Get("node_arrwp")
	if err != nil {
		return err
	}

	n, w := pe.Dim(0), pe.Dim(1)
	x := mat.NewDense(n, w, nil)
	for i, v := range pe.Floats() {
		x.Set(i/w, i%w, float64(v))
	}

	out := mat.NewDense(n, dim, nil)
	if n >= 2 {
		for j := range w {
			col := mat.Col(nil, j, x)
			mean := stat.Mean(col, nil)
			for i := range n {
				x.Set(i, j, col[i]-mean)
			}
		}

		var pc stat.PC
		if !pc.PrincipalComponents(x, nil) {
			return fmt.Errorf("posenc_ARRWPE: principal component analysis failed")
		}

		var vecs mat.Dense
		pc.VectorsTo(&vecs)
		_, k := vecs.Dims()
		k = min(k, dim)

		var proj mat.Dense
		proj.Mul(x, vecs.Slice(0, w, 0, k))
		out.Slice(0, n, 0, k).(*mat.Dense).Copy(&proj)
	}

	d.Set("node_arrwp_reduced", tensor(ctx, out))
	return nil
}
