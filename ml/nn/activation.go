package nn

import (
	"fmt"

	"github.com/graphgps/gps/ml"
)

// Activation is an element-wise non-linearity.
type Activation func(ml.Context, ml.Tensor) ml.Tensor

// ActivationByName returns the activation registered under name in
// GraphGym configs ("gnn.act").
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "relu":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.RELU(ctx) }, nil
	case "gelu":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.GELU(ctx) }, nil
	case "sigmoid":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.Sigmoid(ctx) }, nil
	case "identity", "none", "":
		return func(_ ml.Context, t ml.Tensor) ml.Tensor { return t }, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}
