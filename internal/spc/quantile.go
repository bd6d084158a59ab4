package spc

import "math"

// #region quantiles
// normalQuantile approximates the standard normal inverse CDF with the
// Abramowitz–Stegun 26.2.23 rational approximation (|error| < 4.5e-4).
func normalQuantile(p float64) float64 {
	if p < 0.5 {
		return -normalQuantile(1.0 - p)
	}
	t := math.Sqrt(-2.0 * math.Log(1.0-p))
	num := 2.515517 + t*(0.802853+t*0.010328)
	den := 1.0 + t*(1.432788+t*(0.189269+t*0.001308))
	return t - num/den
}

// chiSquareQuantile approximates the chi-square inverse CDF via the
// Wilson–Hilferty cube transform.
func chiSquareQuantile(p float64, df float64) float64 {
	z := normalQuantile(p)
	a := 2.0 / (9.0 * df)
	v := 1.0 - a + z*math.Sqrt(a)
	return df * v * v * v
}

// fQuantile approximates the F inverse CDF through the chi-square inverse.
// The limit form chi2(p,d1)/d1 is exact as d2 grows; the d2/(d2-2) factor
// keeps the finite-denominator mean. Adequate for the large burn-in
// denominators the control limit uses.
func fQuantile(p float64, d1, d2 float64) float64 {
	q := chiSquareQuantile(p, d1) / d1
	if d2 > 2 {
		q *= d2 / (d2 - 2.0)
	}
	return q
}

// #endregion quantiles
