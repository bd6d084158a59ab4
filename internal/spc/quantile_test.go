package spc

import (
	"math"
	"testing"
)

// 1. The normal quantile approximation lands within its documented error.
func TestNormalQuantile(t *testing.T) {
	cases := []struct {
		p    float64
		want float64
	}{
		{0.975, 1.95996},
		{0.995, 2.57583},
		{0.999, 3.09023},
	}
	for _, c := range cases {
		got := normalQuantile(c.p)
		if math.Abs(got-c.want) > 5e-3 {
			t.Errorf("normalQuantile(%v) = %v, want %v", c.p, got, c.want)
		}
	}

	// Lower-tail symmetry.
	if q := normalQuantile(0.025) + normalQuantile(0.975); math.Abs(q) > 1e-12 {
		t.Errorf("quantile not antisymmetric: residual %v", q)
	}
}

// 2. The chi-square quantile tracks reference values within ~2%.
func TestChiSquareQuantile(t *testing.T) {
	cases := []struct {
		p    float64
		df   float64
		want float64
	}{
		{0.95, 10, 18.307},
		{0.99, 3, 11.345},
		{0.999, 6, 22.458},
	}
	for _, c := range cases {
		got := chiSquareQuantile(c.p, c.df)
		if math.Abs(got-c.want)/c.want > 0.02 {
			t.Errorf("chiSquareQuantile(%v, %v) = %v, want ~%v", c.p, c.df, got, c.want)
		}
	}
}

// 3. The F quantile is sane for the burn-in shape and monotonic in p.
func TestFQuantile(t *testing.T) {
	got := fQuantile(0.999, 6, 994)
	if got < 3.5 || got > 4.1 {
		t.Errorf("fQuantile(0.999, 6, 994) = %v, want within [3.5, 4.1]", got)
	}

	if fQuantile(0.99, 6, 994) >= fQuantile(0.999, 6, 994) {
		t.Errorf("fQuantile not monotonic in p")
	}
}

// 4. The Cholesky path solves a hand-checkable system.
func TestCholeskySolve(t *testing.T) {
	// A = [[4,2],[2,3]] has L = [[2,0],[1,sqrt(2)]].
	l, ok := cholesky([][]float64{{4, 2}, {2, 3}})
	if !ok {
		t.Fatalf("cholesky failed on a positive-definite matrix")
	}
	if math.Abs(l[0][0]-2) > 1e-12 || math.Abs(l[1][0]-1) > 1e-12 ||
		math.Abs(l[1][1]-math.Sqrt2) > 1e-12 {
		t.Errorf("factor = %v, want [[2 0] [1 sqrt2]]", l)
	}

	// L·y = [2, 1+sqrt2] has y = [1, 1].
	y := forwardSolve(l, []float64{2, 1 + math.Sqrt2})
	if math.Abs(y[0]-1) > 1e-12 || math.Abs(y[1]-1) > 1e-12 {
		t.Errorf("solve = %v, want [1 1]", y)
	}
}

// 5. Non-positive-definite inputs are refused, not factored.
func TestCholeskyRejectsDegenerate(t *testing.T) {
	if _, ok := cholesky([][]float64{{0, 0}, {0, 0}}); ok {
		t.Errorf("cholesky accepted the zero matrix")
	}
	// Perfectly collinear channels.
	if _, ok := cholesky([][]float64{{1, 1}, {1, 1}}); ok {
		t.Errorf("cholesky accepted a singular matrix")
	}
}
