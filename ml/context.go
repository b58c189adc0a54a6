// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Zeros(dtype DType, shape ...int) Tensor
	FromBytes(dtype DType, s []byte, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor
	FromInts(s []int32, shape ...int) Tensor

	// Arange creates a 1D tensor with values within an interval [start, stop) increased by step.
	Arange(start, stop, step float32, dtype DType) Tensor

	// Uniform creates a tensor with values drawn from U(low, high) using the
	// backend's seeded generator. It is used for parameter initialisation.
	Uniform(low, high float32, shape ...int) Tensor

	Close()
}

// Tensor represents a row-major array of rank 1 or 2.
//
// Binary element-wise operations broadcast t2 when it has the same shape as
// t, is a row vector (1, cols) or (cols), a column vector (rows, 1), or a
// single element.
type Tensor interface {
	Dim(n int) int
	Shape() []int
	DType() DType
	Cast(ctx Context, dtype DType) Tensor

	Bytes() []byte
	Floats() []float32
	Ints() []int32

	Add(ctx Context, t2 Tensor) Tensor
	Sub(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor
	Div(ctx Context, t2 Tensor) Tensor
	Scale(ctx Context, s float64) Tensor

	// Mulmat treats t as a (out, in) weight matrix and returns t2 · tᵀ.
	Mulmat(ctx Context, t2 Tensor) Tensor
	Transpose(ctx Context) Tensor

	Softmax(ctx Context) Tensor
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor
	SumRows(ctx Context) Tensor

	Exp(ctx Context) Tensor
	Sqrt(ctx Context) Tensor
	Clamp(ctx Context, low, high float32) Tensor
	RELU(ctx Context) Tensor
	GELU(ctx Context) Tensor
	Sigmoid(ctx Context) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	Slice(ctx Context, dim, low, high int) Tensor
	Concat(ctx Context, t2 Tensor, dim int) Tensor
	Duplicate(ctx Context) Tensor

	// Rows gathers rows of t by the I32 indices in idxs.
	Rows(ctx Context, idxs Tensor) Tensor

	// Scatter combines row i of t into row idxs[i] of an (n, cols) result.
	// Rows that receive nothing are zero.
	Scatter(ctx Context, idxs Tensor, n int, reduce Reduce) Tensor
}
