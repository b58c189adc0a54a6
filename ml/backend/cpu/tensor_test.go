package cpu

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/graphgps/gps/ml"
)

func setup(t *testing.T) ml.Context {
	t.Helper()
	b, err := New(ml.BackendParams{Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	ctx := b.NewContext()
	t.Cleanup(ctx.Close)
	return ctx
}

var approx = cmpopts.EquateApprox(0, 1e-5)

func TestBroadcast(t *testing.T) {
	ctx := setup(t)
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	cases := []struct {
		name string
		t2   ml.Tensor
		want []float32
	}{
		{"same", ctx.FromFloats([]float32{1, 1, 1, 1, 1, 1}, 2, 3), []float32{2, 3, 4, 5, 6, 7}},
		{"row", ctx.FromFloats([]float32{10, 20, 30}, 3), []float32{11, 22, 33, 14, 25, 36}},
		{"row2d", ctx.FromFloats([]float32{10, 20, 30}, 1, 3), []float32{11, 22, 33, 14, 25, 36}},
		{"column", ctx.FromFloats([]float32{100, 200}, 2, 1), []float32{101, 102, 103, 204, 205, 206}},
		{"scalar", ctx.FromFloats([]float32{1}, 1), []float32{2, 3, 4, 5, 6, 7}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Add(ctx, tt.t2)
			if diff := cmp.Diff(tt.want, got.Floats()); diff != "" {
				t.Errorf("Add() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]int{2, 3}, got.Shape()); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBroadcastMismatchPanics(t *testing.T) {
	ctx := setup(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2).Add(ctx, ctx.FromFloats([]float32{1, 2, 3}, 3))
}

func TestMulmat(t *testing.T) {
	ctx := setup(t)
	// w: (out=2, in=3)
	w := ctx.FromFloats([]float32{1, 0, 0, 0, 1, 1}, 2, 3)
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := w.Mulmat(ctx, x)
	if diff := cmp.Diff([]int{2, 2}, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 5, 4, 11}, got.Floats()); diff != "" {
		t.Errorf("Mulmat() mismatch (-want +got):\n%s", diff)
	}

	empty := w.Mulmat(ctx, ctx.Zeros(ml.DTypeF32, 0, 3))
	if diff := cmp.Diff([]int{0, 2}, empty.Shape()); diff != "" {
		t.Errorf("empty shape mismatch (-want +got):\n%s", diff)
	}
}

func TestTranspose(t *testing.T) {
	ctx := setup(t)
	got := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3).Transpose(ctx)
	if diff := cmp.Diff([]float32{1, 4, 2, 5, 3, 6}, got.Floats()); diff != "" {
		t.Errorf("Transpose() mismatch (-want +got):\n%s", diff)
	}

	ints := ctx.FromInts([]int32{0, 1, 2, 3, 4, 5}, 2, 3).Transpose(ctx)
	if diff := cmp.Diff([]int32{0, 3, 1, 4, 2, 5}, ints.Ints()); diff != "" {
		t.Errorf("Transpose() ints mismatch (-want +got):\n%s", diff)
	}
}

func TestSoftmax(t *testing.T) {
	ctx := setup(t)
	inf := float32(math.Inf(-1))
	got := ctx.FromFloats([]float32{0, 0, inf, inf, inf, inf}, 2, 3).Softmax(ctx)
	if diff := cmp.Diff([]float32{0.5, 0.5, 0, 0, 0, 0}, got.Floats(), approx); diff != "" {
		t.Errorf("Softmax() mismatch (-want +got):\n%s", diff)
	}
}

func TestLayerNorm(t *testing.T) {
	ctx := setup(t)
	got := ctx.FromFloats([]float32{1, 3, 2, 6}, 2, 2).LayerNorm(ctx, nil, nil, 0)
	if diff := cmp.Diff([]float32{-1, 1, -1, 1}, got.Floats(), approx); diff != "" {
		t.Errorf("LayerNorm() mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsAndScatter(t *testing.T) {
	ctx := setup(t)
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	idx := ctx.FromInts([]int32{2, 0, 2}, 3)

	rows := x.Rows(ctx, idx)
	if diff := cmp.Diff([]float32{5, 6, 1, 2, 5, 6}, rows.Floats()); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}

	cases := []struct {
		reduce ml.Reduce
		want   []float32
	}{
		{ml.ReduceSum, []float32{3, 4, 0, 0, 6, 8}},
		{ml.ReduceMean, []float32{3, 4, 0, 0, 3, 4}},
		{ml.ReduceMax, []float32{3, 4, 0, 0, 5, 6}},
	}
	for _, tt := range cases {
		got := x.Scatter(ctx, idx, 3, tt.reduce)
		if diff := cmp.Diff(tt.want, got.Floats()); diff != "" {
			t.Errorf("Scatter(%v) mismatch (-want +got):\n%s", tt.reduce, diff)
		}
	}

	vec := ctx.FromInts([]int32{7, 8, 9}, 3).Rows(ctx, ctx.FromInts([]int32{2, 2}, 2))
	if diff := cmp.Diff([]int32{9, 9}, vec.Ints()); diff != "" {
		t.Errorf("Rows() on vector mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceConcat(t *testing.T) {
	ctx := setup(t)
	ei := ctx.FromInts([]int32{0, 1, 2, 1, 2, 0}, 2, 3)

	src := ei.Slice(ctx, 0, 0, 1)
	if diff := cmp.Diff([]int32{0, 1, 2}, src.Ints()); diff != "" {
		t.Errorf("Slice(dim 0) mismatch (-want +got):\n%s", diff)
	}

	cols := ei.Slice(ctx, 1, 1, 3)
	if diff := cmp.Diff([]int32{1, 2, 2, 0}, cols.Ints()); diff != "" {
		t.Errorf("Slice(dim 1) mismatch (-want +got):\n%s", diff)
	}

	cat := ei.Concat(ctx, ctx.FromInts([]int32{5, 6}, 2, 1), 1)
	if diff := cmp.Diff([]int32{0, 1, 2, 5, 1, 2, 0, 6}, cat.Ints()); diff != "" {
		t.Errorf("Concat(dim 1) mismatch (-want +got):\n%s", diff)
	}

	rows := ctx.Zeros(ml.DTypeF32, 0, 2).Concat(ctx, ctx.FromFloats([]float32{1, 2}, 1, 2), 0)
	if diff := cmp.Diff([]int{1, 2}, rows.Shape()); diff != "" {
		t.Errorf("Concat(dim 0) shape mismatch (-want +got):\n%s", diff)
	}
}

func TestBytesRoundTripF16(t *testing.T) {
	ctx := setup(t)
	x := ctx.FromFloats([]float32{0.5, -1.25, 3}, 3).Cast(ctx, ml.DTypeF16)
	y := ctx.FromBytes(ml.DTypeF16, x.Bytes(), 3)
	if y.DType() != ml.DTypeF16 {
		t.Fatalf("DType() = %v, want f16", y.DType())
	}
	if diff := cmp.Diff([]float32{0.5, -1.25, 3}, y.Floats()); diff != "" {
		t.Errorf("f16 bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestUniformDeterministic(t *testing.T) {
	a := setup(t).Uniform(-1, 1, 4, 4).Floats()
	b := setup(t).Uniform(-1, 1, 4, 4).Floats()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different values (-a +b):\n%s", diff)
	}
	for _, v := range a {
		if v < -1 || v >= 1 {
			t.Fatalf("value %v outside [-1, 1)", v)
		}
	}
}

func TestArange(t *testing.T) {
	ctx := setup(t)
	if diff := cmp.Diff([]int32{0, 2, 4}, ctx.Arange(0, 5, 2, ml.DTypeI32).Ints()); diff != "" {
		t.Errorf("Arange() mismatch (-want +got):\n%s", diff)
	}
}
