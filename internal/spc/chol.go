package spc

import "math"

// #region cholesky
// cholesky computes the lower-triangular factor L with L·Lᵀ = m for a
// symmetric matrix. Returns ok=false when the matrix is not positive-definite
// (non-positive or non-finite pivot), which happens for constant or collinear
// observation streams.
func cholesky(m [][]float64) ([][]float64, bool) {
	p := len(m)
	l := make([][]float64, p)
	for i := range l {
		l[i] = make([]float64, p)
	}

	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
					return nil, false
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, true
}

// forwardSolve solves L·y = b for y by forward substitution. L must be a
// valid lower-triangular factor from cholesky.
func forwardSolve(l [][]float64, b []float64) []float64 {
	p := len(b)
	y := make([]float64, p)
	for i := 0; i < p; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * y[j]
		}
		y[i] = sum / l[i][i]
	}
	return y
}

// #endregion cholesky
