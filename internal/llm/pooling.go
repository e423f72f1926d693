package llm

import (
	"fmt"
	"math"
)

// MeanPool averages token embeddings into one vector.
func MeanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no token embeddings to pool")
	}

	dims := len(tokens[0])
	if dims == 0 {
		return nil, fmt.Errorf("token embeddings are empty")
	}

	sum := make([]float64, dims)
	for i, tok := range tokens {
		if len(tok) != dims {
			return nil, fmt.Errorf("token %d has %d dimensions, want %d", i, len(tok), dims)
		}
		for j, v := range tok {
			sum[j] += float64(v)
		}
	}

	out := make([]float32, dims)
	n := float64(len(tokens))
	for j, v := range sum {
		out[j] = float32(v / n)
	}
	return out, nil
}

// Normalize scales v to unit L2 length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
