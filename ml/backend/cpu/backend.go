// backend.go - CPU-Backend auf Basis von gonum
// Enthaelt: Backend, New(), Registrierung unter dem Namen "cpu"

package cpu

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/graphgps/gps/ml"
)

// Backend executes tensor operations eagerly on the CPU.
type Backend struct {
	params ml.BackendParams

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a CPU backend seeded from params.
func New(params ml.BackendParams) (ml.Backend, error) {
	seed := uint64(params.Seed)
	slog.Debug("cpu backend", "seed", params.Seed)
	return &Backend{
		params: params,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (b *Backend) Name() string {
	return "cpu"
}

// Close is a no-op; tensors are garbage collected.
func (b *Backend) Close() {}

// NewContext returns a context that allocates tensors on this backend.
func (b *Backend) NewContext() ml.Context {
	return &Context{b: b}
}

// uniform draws n values from U(low, high). Access to the generator is
// serialised so contexts may be used from several goroutines.
func (b *Backend) uniform(n int, low, high float64) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := make([]float64, n)
	for i := range s {
		s[i] = low + (high-low)*b.rng.Float64()
	}
	return s
}

func init() {
	ml.RegisterBackend("cpu", New)
}
