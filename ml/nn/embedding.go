package nn

import (
	"math"

	"github.com/graphgps/gps/ml"
)

// Embedding maps integer ids to rows of Weight.
type Embedding struct {
	Weight ml.Tensor `gps:"weight"`
}

// NewEmbedding draws rows with unit variance.
func NewEmbedding(ctx ml.Context, num, dim int) *Embedding {
	bound := float32(math.Sqrt(3))
	return &Embedding{Weight: ctx.Uniform(-bound, bound, num, dim)}
}

func (m *Embedding) Forward(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	return m.Weight.Rows(ctx, ids)
}
