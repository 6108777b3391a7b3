package vector

// InnerProduct returns the dot product of two vectors. Over L2-normalized
// vectors this equals cosine similarity. Mismatched or empty inputs score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// CosineDistance converts an inner product over normalized vectors into a
// distance where 0 means identical and lower means closer.
func CosineDistance(a, b []float32) float64 {
	return 1 - InnerProduct(a, b)
}
