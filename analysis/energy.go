package analysis

import "gonum.org/v1/gonum/floats"

// EnergyContour returns the sum of squared samples for each non-overlapping
// window. The trailing partial window is dropped, so the result has
// len(x)/window entries.
func EnergyContour(x []float64, window int) []float64 {
	if window <= 0 {
		return nil
	}
	n := len(x) / window
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		w := x[i*window : (i+1)*window]
		out[i] = floats.Dot(w, w)
	}
	return out
}
