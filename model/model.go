// Package model - Modul-Interface, Registries und Initialisierung
//
// Dieses Paket definiert das Module-Interface fuer alle Netzwerk-Bausteine
// und stellt die Registries bereit, ueber die Netzwerke, Encoder und
// Prediction-Heads per Name aus der Konfiguration gebaut werden.
//
// Hauptkomponenten:
// - Module: Interface fuer alle Bausteine, die einen Batch verarbeiten
// - Register / RegisterNodeEncoder / RegisterEdgeEncoder / RegisterHead
// - New: Erstellt das in model.type konfigurierte Netzwerk
// - Forward: Prueft den Batch und fuehrt den Vorwaerts-Pass durch
package model

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/graphgps/gps/fs"
	"github.com/graphgps/gps/graph"
	"github.com/graphgps/gps/logutil"
	"github.com/graphgps/gps/ml"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrUnknownEncoder   = errors.New("encoder not registered")
	ErrUnknownHead      = errors.New("head not registered")

	// ErrDimMismatch is returned when configured widths disagree.
	ErrDimMismatch = errors.New("the inner and hidden dims must match")
)

// Module is a network building block. Forward may modify the batch in place
// and returns the batch to hand to the next module.
type Module interface {
	Forward(ml.Context, *graph.Batch) (*graph.Batch, error)
}

// Container is implemented by modules that hold their children in a
// runtime collection rather than in struct fields. Children yields them in
// execution order under their parameter-name prefix.
type Container interface {
	Children() iter.Seq2[string, Module]
}

// DimIner reports the node feature width a module produces.
type DimIner interface {
	DimIn() int
}

// NetworkFunc builds a network for input width dimIn and output width dimOut.
type NetworkFunc func(ctx ml.Context, c fs.Config, dimIn, dimOut int) (Module, error)

// EncoderFunc builds a node or edge encoder that embeds into dim features.
type EncoderFunc func(ctx ml.Context, c fs.Config, dim int) (Module, error)

// HeadFunc builds a prediction head mapping dimIn to dimOut features.
type HeadFunc func(ctx ml.Context, c fs.Config, dimIn, dimOut int) (Module, error)

var (
	networks     = newRegistry[NetworkFunc]("network", ErrUnsupportedModel)
	nodeEncoders = newRegistry[EncoderFunc]("node encoder", ErrUnknownEncoder)
	edgeEncoders = newRegistry[EncoderFunc]("edge encoder", ErrUnknownEncoder)
	heads        = newRegistry[HeadFunc]("head", ErrUnknownHead)
)

// Register registriert einen Netzwerk-Konstruktor
func Register(name string, f NetworkFunc) {
	networks.register(name, f)
}

// RegisterNodeEncoder registriert einen Node-Encoder
func RegisterNodeEncoder(name string, f EncoderFunc) {
	nodeEncoders.register(name, f)
}

// RegisterEdgeEncoder registriert einen Edge-Encoder
func RegisterEdgeEncoder(name string, f EncoderFunc) {
	edgeEncoders.register(name, f)
}

// RegisterHead registriert einen Prediction-Head
func RegisterHead(name string, f HeadFunc) {
	heads.register(name, f)
}

// Networks gibt die Namen aller registrierten Netzwerke zurueck
func Networks() []string { return networks.names() }

// NodeEncoders gibt die Namen aller registrierten Node-Encoder zurueck
func NodeEncoders() []string { return nodeEncoders.names() }

// EdgeEncoders gibt die Namen aller registrierten Edge-Encoder zurueck
func EdgeEncoders() []string { return edgeEncoders.names() }

// Heads gibt die Namen aller registrierten Heads zurueck
func Heads() []string { return heads.names() }

// New baut das Netzwerk, das c.Architecture() benennt
func New(ctx ml.Context, c fs.Config, dimIn, dimOut int) (Module, error) {
	f, err := networks.lookup(c.Architecture())
	if err != nil {
		return nil, err
	}

	slog.Debug("building network", "type", c.Architecture(), "dim_in", dimIn, "dim_out", dimOut)
	return f(ctx, c, dimIn, dimOut)
}

// NewNodeEncoder baut den unter name registrierten Node-Encoder
func NewNodeEncoder(ctx ml.Context, c fs.Config, name string, dim int) (Module, error) {
	f, err := nodeEncoders.lookup(name)
	if err != nil {
		return nil, err
	}
	return f(ctx, c, dim)
}

// NewEdgeEncoder baut den unter name registrierten Edge-Encoder
func NewEdgeEncoder(ctx ml.Context, c fs.Config, name string, dim int) (Module, error) {
	f, err := edgeEncoders.lookup(name)
	if err != nil {
		return nil, err
	}
	return f(ctx, c, dim)
}

// NewHead baut den unter name registrierten Head
func NewHead(ctx ml.Context, c fs.Config, name string, dimIn, dimOut int) (Module, error) {
	f, err := heads.lookup(name)
	if err != nil {
		return nil, err
	}
	return f(ctx, c, dimIn, dimOut)
}

// Forward prueft den Batch und fuehrt einen Vorwaerts-Pass durch
func Forward(ctx ml.Context, m Module, batch *graph.Batch) (*graph.Batch, error) {
	if batch == nil {
		return nil, errors.New("batch cannot be nil")
	}

	if batch.NumGraphs() < 1 {
		return nil, errors.New("batch must hold at least one graph")
	}

	for _, name := range []string{graph.KeyEdgeIndex, graph.KeyBatch} {
		if !batch.Has(name) {
			return nil, fmt.Errorf("%w: %q", graph.ErrMissingTensor, name)
		}
	}

	if n := batch.Batch.Dim(0); n != batch.NumNodes() {
		return nil, fmt.Errorf("batch vector has %d entries for %d nodes", n, batch.NumNodes())
	}

	logutil.Trace("forward", "graphs", batch.NumGraphs(), "nodes", batch.NumNodes(), "edges", batch.NumEdges())

	out, err := m.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}

	if out.Pred == nil {
		slog.Debug("network produced no prediction")
	}
	return out, nil
}

// Sequential runs modules in insertion order. Names are used as
// parameter prefixes and must be unique.
type Sequential struct {
	modules *orderedmap.OrderedMap[string, Module]
}

// Append adds a module under name.
func (s *Sequential) Append(name string, m Module) {
	if s.modules == nil {
		s.modules = orderedmap.New[string, Module]()
	}

	if _, present := s.modules.Get(name); present {
		panic(fmt.Sprintf("model: duplicate module name %q", name))
	}
	s.modules.Set(name, m)
}

// Get returns the module stored under name.
func (s *Sequential) Get(name string) (Module, bool) {
	if s.modules == nil {
		return nil, false
	}
	return s.modules.Get(name)
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	if s.modules == nil {
		return 0
	}
	return s.modules.Len()
}

// Names returns the module names in execution order.
func (s *Sequential) Names() []string {
	var names []string
	for name := range s.Children() {
		names = append(names, name)
	}
	return names
}

func (s *Sequential) Children() iter.Seq2[string, Module] {
	return func(yield func(string, Module) bool) {
		if s.modules == nil {
			return
		}

		for pair := s.modules.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

func (s *Sequential) Forward(ctx ml.Context, batch *graph.Batch) (*graph.Batch, error) {
	for name, m := range s.Children() {
		var err error
		batch, err = m.Forward(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return batch, nil
}
