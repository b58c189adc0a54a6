// Modul: options.go
// Beschreibung: Konfigurationsoptionen fuer die Graph-Transformer-Schichten
// Hauptstrukturen:
//   - Options: Breiten, Koepfe und Normalisierung einer Schicht
//   - NewOptions: liest die Optionen aus dem gt.*- und prep.*-Abschnitt

package layers

import (
	"fmt"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/ml/nn"
)

// Options enthaelt die Parameter, die alle Schichten eines Modells teilen
type Options struct {
	DimHidden int
	DimEdge   int
	NumHeads  int

	// Dropout and AttnDropout are kept for completeness. All layers run in
	// evaluation mode where dropout is the identity.
	Dropout, AttnDropout float32

	LayerNorm, BatchNorm bool

	// NumVirtNode is the number of virtual nodes per graph the Exphormer
	// attention attends to.
	NumVirtNode int

	Act nn.Activation
}

// NewOptions liest die Schicht-Optionen aus c. dimEdge ist die bereits
// aufgeloeste Kantenbreite.
func NewOptions(c fs.Config, dimEdge int) (*Options, error) {
	act, err := nn.ActivationByName(c.String("gnn.act", "relu"))
	if err != nil {
		return nil, err
	}

	opts := Options{
		DimHidden:   int(c.Uint("gt.dim_hidden")),
		DimEdge:     dimEdge,
		NumHeads:    int(c.Uint("gt.n_heads", 1)),
		Dropout:     c.Float("gt.dropout"),
		AttnDropout: c.Float("gt.attn_dropout"),
		LayerNorm:   c.Bool("gt.layer_norm"),
		BatchNorm:   c.Bool("gt.batch_norm", true),
		NumVirtNode: int(c.Uint("prep.num_virt_node")),
		Act:         act,
	}

	if opts.NumHeads == 0 || opts.DimHidden%opts.NumHeads != 0 {
		return nil, fmt.Errorf("gt.dim_hidden %d is not divisible by gt.n_heads %d", opts.DimHidden, opts.NumHeads)
	}
	return &opts, nil
}

func (o *Options) headDim() int {
	return o.DimHidden / o.NumHeads
}
