// Package embeddings holds vector helpers shared by the embedding providers and the index.
package embeddings

import (
	"math"
)

// NormalizeL2 scales vector in place to unit length so cosine distance in pgvector
// matches the provider's similarity. Truncated Gemini vectors need this; full-size ones are
// already normalized. An all-zero vector is left as is.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Finite reports whether every component is a real number. pgvector rejects NaN and Inf.
func Finite(vector []float32) bool {
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return true
}
