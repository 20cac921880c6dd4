// Package embedding maps page text to dense vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrCountMismatch is returned when a provider answers with a different
// number of vectors than texts it was given.
var ErrCountMismatch = errors.New("embedding: vector count does not match input count")

// Embedder turns texts into vectors. Output is positionally aligned with the
// input and deterministic for a given model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbedBatched calls e in chunks of batchSize and concatenates the results.
func EmbedBatched(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors: %w", start, end, len(vecs), ErrCountMismatch)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
