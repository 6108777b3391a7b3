package utils

import "math"

// NormalizeL2 scales the slice in place to unit L2 norm so inner products
// over it behave as cosine similarity. A zero vector is left as is.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}
