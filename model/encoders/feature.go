// Modul: feature.go
// Beschreibung: FeatureEncoder baut aus der Konfiguration die Kette der
// Node-, Edge- und Positional-Encoder und fuehrt sie nacheinander aus.

package encoders

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/ml"
	"github.com/graphgps/gps/model"
)

// FeatureEncoder embeds node and edge features. Its children are exactly
// the encoders the configuration enables, run in construction order.
type FeatureEncoder struct {
	dimIn    int
	encodesX bool
	children model.Sequential
}

// NewFeatureEncoder builds the encoders enabled in c for node features of
// width dimIn.
func NewFeatureEncoder(ctx ml.Context, c fs.Config, dimIn int) (*FeatureEncoder, error) {
	m := FeatureEncoder{dimIn: dimIn}

	dimInner := int(c.Uint("gnn.dim_inner"))
	dimHidden := int(c.Uint("gt.dim_hidden"))
	dimEdge := DimEdge(c)

	if c.Bool("dataset.node_encoder") {
		enc, err := model.NewNodeEncoder(ctx, c, c.String("dataset.node_encoder_name"), dimInner)
		if err != nil {
			return nil, err
		}
		m.children.Append("node_encoder", enc)

		if c.Bool("dataset.node_encoder_bn") {
			m.children.Append("node_encoder_bn", NewBatchNorm1dNode(ctx, dimInner))
		}
		m.dimIn = dimInner
		m.encodesX = true
	}

	if c.Bool("dataset.edge_encoder") {
		name := c.String("dataset.edge_encoder_name")
		switch {
		case name == "ER":
			m.children.Append("edge_encoder", NewEREdgeEncoder(ctx, dimEdge, false))
		case strings.HasSuffix(name, "+ER"):
			dimPE := int(c.Uint("posenc_ERE.dim_pe"))
			if dimPE >= dimEdge {
				return nil, fmt.Errorf("%w: posenc_ERE.dim_pe %d must be below the edge width %d", model.ErrDimMismatch, dimPE, dimEdge)
			}

			enc, err := model.NewEdgeEncoder(ctx, c, strings.TrimSuffix(name, "+ER"), dimEdge-dimPE)
			if err != nil {
				return nil, err
			}
			m.children.Append("edge_encoder", enc)
			m.children.Append("edge_encoder_er", NewEREdgeEncoder(ctx, dimPE, true))
		default:
			enc, err := model.NewEdgeEncoder(ctx, c, name, dimEdge)
			if err != nil {
				return nil, err
			}
			m.children.Append("edge_encoder", enc)
		}

		if c.Bool("dataset.edge_encoder_bn") {
			m.children.Append("edge_encoder_bn", NewBatchNorm1dNode(ctx, dimEdge))
		}
	}

	if c.Bool("posenc_RRWPE.enable") {
		abs, err := model.NewNodeEncoder(ctx, c, "rrwp_linear", dimInner)
		if err != nil {
			return nil, err
		}
		m.children.Append("rrwp_abs_encoder", abs)

		rel, err := model.NewEdgeEncoder(ctx, c, "rrwp_linear", dimEdge)
		if err != nil {
			return nil, err
		}
		m.children.Append("rrwp_rel_encoder", rel)
	}

	for _, pe := range []struct{ prefix, child, name string }{
		{"posenc_RWPE", "rwp_encoder", "rwpe"},
		{"posenc_RWSE", "rws_encoder", "rwse"},
	} {
		if !c.Bool(pe.prefix + ".enable") {
			continue
		}

		times, err := fs.KernelTimes(c, pe.prefix)
		if err != nil {
			return nil, err
		}
		m.children.Append(pe.child, NewARRWPLinearNodeEncoder(ctx, len(times), dimHidden, c.String(pe.prefix+".raw_norm_type"), false, pe.name))
	}

	if c.Bool("posenc_ARRWPE.enable") {
		window := fs.WindowSize(c, "posenc_ARRWPE")
		normType := c.String("posenc_ARRWPE.raw_norm_type")

		if fs.DimReduction(c) == "" {
			m.children.Append("arrwp_abs_encoder", NewARRWPLinearNodeEncoder(ctx, window, dimHidden, normType, false, "arrwp"))
			m.children.Append("arrwp_rel_encoder", NewARRWPLinearEdgeEncoder(ctx, window, dimEdge, normType, false, "arrwp"))
		} else {
			m.children.Append("arrwp_abs_encoder", NewARRWPLinearNodeEncoder(ctx, int(c.Uint("posenc_ARRWPE.dim_reduced")), dimHidden, normType, false, "arrwp_reduced"))
		}
	}

	for _, pe := range []struct{ prefix, child, name string }{
		{"posenc_ARWPE", "arwp_encoder", "arwpe"},
		{"posenc_ARWSE", "arws_encoder", "arwse"},
	} {
		if c.Bool(pe.prefix + ".enable") {
			m.children.Append(pe.child, NewARRWPLinearNodeEncoder(ctx, fs.WindowSize(c, pe.prefix), dimHidden, c.String(pe.prefix+".raw_norm_type"), false, pe.name))
		}
	}

	if strings.Contains(c.String("gt.layer_type"), "Exphormer") {
		m.children.Append("exp_edge_fixer", NewExpanderEdgeFixer(ctx, ExpanderEdgeOptions{
			AddEdgeIndex: c.Bool("prep.add_edge_index"),
			UseExpEdges:  c.Bool("prep.use_exp_edges") && c.Bool("prep.exp"),
			NumVirtNode:  int(c.Uint("prep.num_virt_node")),
			DimHidden:    dimHidden,
			DimEdge:      dimEdge,
		}))
	}

	slog.Debug("feature encoder", "children", m.children.Names(), "dim_in", m.dimIn)
	return &m, nil
}

// DimIn returns the width of x after encoding.
func (m *FeatureEncoder) DimIn() int {
	return m.dimIn
}

// Names returns the names of the child encoders in execution order.
func (m *FeatureEncoder) Names() []string {
	return m.children.Names()
}

func (m *FeatureEncoder) Children() iter.Seq2[string, model.Module] {
	return m.children.Children()
}

// Forward runs the child encoders. Without a node encoder x passes through
// unchanged and must already have DimIn features.
func (m *FeatureEncoder) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	if !m.encodesX && batch.X != nil && batch.X.Dim(1) != m.dimIn {
		return nil, fmt.Errorf("%w: x has %d features, network expects %d", model.ErrDimMismatch, batch.X.Dim(1), m.dimIn)
	}
	return m.children.Forward(ctx, batch)
}

// DimEdge returns gt.dim_edge, falling back to gt.dim_hidden when unset.
func DimEdge(c fs.Config) int {
	if c.Has("gt.dim_edge") {
		return int(c.Uint("gt.dim_edge"))
	}
	return int(c.Uint("gt.dim_hidden"))
}
