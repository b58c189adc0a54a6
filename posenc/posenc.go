// Package posenc - Vorberechnung positionaler und struktureller Kodierungen
//
// Die Transformationen arbeiten je Graph auf graph.Data und legen die
// Hilfstensoren ab, die die Encoder im Vorwaerts-Pass lesen:
//
// - node_rwse / node_rwpe: Rueckkehrwahrscheinlichkeiten (exakt)
// - rrwp, rrwp_index, rrwp_val: Relative Random Walk Probabilities
// - node_arrwp, edge_arrwp_index, edge_arrwp_val: per Random Walk geschaetzt
// - node_arrwp_reduced: per PCA reduziert
// - node_arwse / node_arwpe: geschaetzte Rueckkehrwahrscheinlichkeiten
// - er_edge: effektiver Widerstand je Kante
// - expander_edges: zufaelliger regulaerer Expander-Graph
package posenc

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/graphgps/gps/envconfig"
	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
)

// Apply computes every encoding enabled in c for d. Sampled encodings are
// deterministic for a given seed.
func Apply(ctx ml.Context, c fs.Config, d *graph.Data, seed int64) error {
	if d.NumNodes == 0 {
		return nil
	}

	for _, pe := range []struct {
		prefix, key string
		lazy        bool
	}{
		{"posenc_RWSE", "node_rwse", false},
		{"posenc_RWPE", "node_rwpe", true},
	} {
		if !c.Bool(pe.prefix + ".enable") {
			continue
		}

		times, err := fs.KernelTimes(c, pe.prefix)
		if err != nil {
			return err
		}
		if len(times) == 0 {
			return fmt.Errorf("%s: no kernel times configured", pe.prefix)
		}
		d.Set(pe.key, ReturnProbabilities(ctx, d, times, pe.lazy))
	}

	if c.Bool("posenc_RRWPE.enable") {
		err := RRWP(ctx, d, RRWPOptions{
			Steps:     int(c.Uint("posenc_RRWPE.ksteps")),
			Identity:  c.Bool("posenc_RRWPE.add_identity", true),
			FullGraph: c.Bool("posenc_RRWPE.full_graph"),
		})
		if err != nil {
			return err
		}
	}

	walks := WalkOptions{
		Length: int(c.Uint("prep.random_walks.walk_length")),
		Count:  int(c.Uint("prep.random_walks.num_walks")),
		Seed:   seed,
	}

	if c.Bool("posenc_ARRWPE.enable") {
		opts := walks
		opts.Window = fs.WindowSize(c, "posenc_ARRWPE")
		if err := ARRWP(ctx, d, opts); err != nil {
			return err
		}

		if method := fs.DimReduction(c); method != "" {
			if method != "pca" {
				return fmt.Errorf("posenc_ARRWPE.dim_reduction: unsupported method %q", method)
			}
			if err := ReduceARRWP(ctx, d, int(c.Uint("posenc_ARRWPE.dim_reduced"))); err != nil {
				return err
			}
		}
	}

	for _, pe := range []struct {
		prefix, key string
		lazy        bool
	}{
		{"posenc_ARWPE", "node_arwpe", true},
		{"posenc_ARWSE", "node_arwse", false},
	} {
		if !c.Bool(pe.prefix + ".enable") {
			continue
		}

		opts := walks
		opts.Window = fs.WindowSize(c, pe.prefix)
		opts.Lazy = pe.lazy
		if err := SampledReturnProbabilities(ctx, d, pe.key, opts); err != nil {
			return err
		}
	}

	if c.Bool("posenc_ERE.enable") {
		d.Set("er_edge", EffectiveResistance(ctx, d))
	}

	if c.Bool("prep.exp") {
		index, err := Expander(ctx, d, ExpanderOptions{
			Degree:    int(c.Uint("prep.exp_deg")),
			Algorithm: c.String("prep.exp_algorithm", "Random-d"),
			Seed:      seed,
		})
		if err != nil {
			return err
		}
		d.Set("expander_edges", index)
	}

	logutil.Trace("positional encodings", "nodes", d.NumNodes, "tensors", d.Names())
	return nil
}

// ApplyAll runs Apply on every graph. Graph i uses seed+i so the result does
// not depend on scheduling.
func ApplyAll(ctx ml.Context, c fs.Config, graphs []*graph.Data, seed int64) error {
	var g errgroup.Group
	g.SetLimit(envconfig.WalkWorkers())

	for i, d := range graphs {
		g.Go(func() error {
			if err := Apply(ctx, c, d, seed+int64(i)); err != nil {
				return fmt.Errorf("graph %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Debug("positional encodings computed", "graphs", len(graphs))
	return nil
}

// adjacency counts the edges of d in a dense n×n matrix, A[src][dst].
func adjacency(d *graph.Data) *mat.Dense {
	n := d.NumNodes
	a := mat.NewDense(n, n, nil)
	src, dst := graph.Endpoints(d.EdgeIndex)
	for i := range src {
		a.Set(int(src[i]), int(dst[i]), a.At(int(src[i]), int(dst[i]))+1)
	}
	return a
}

// transition returns P = D⁻¹A. Rows of nodes without out-edges stay zero.
func transition(d *graph.Data) *mat.Dense {
	p := adjacency(d)
	for i := range d.NumNodes {
		row := p.RawRowView(i)
		if s := floats.Sum(row); s > 0 {
			floats.Scale(1/s, row)
		}
	}
	return p
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

// tensor copies m into an (r, c) F32 tensor.
func tensor(ctx ml.Context, m mat.Matrix) ml.Tensor {
	r, c := m.Dims()
	f := make([]float32, 0, r*c)
	for i := range r {
		for j := range c {
			f = append(f, float32(m.At(i, j)))
		}
	}
	return ctx.FromFloats(f, r, c)
}
