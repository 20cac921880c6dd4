package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultDim is the vector size of the hashing embedder.
const DefaultDim = 384

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Hashing is a local, dependency-free embedder based on feature hashing of
// unigrams and bigrams. It needs no model server and is fully deterministic.
type Hashing struct {
	dim int
}

// NewHashing returns a hashing embedder producing dim-sized vectors.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Hashing{dim: dim}
}

// Dim reports the vector size.
func (h *Hashing) Dim() int { return h.dim }

// Embed implements Embedder.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float64 {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Strings(features)

	vec := make([]float64, h.dim)
	for _, feature := range features {
		n := counts[feature]
		hasher := fnv.New64a()
		hasher.Write([]byte(feature))
		sum := hasher.Sum64()

		idx := int(sum % uint64(h.dim))
		weight := 1 + math.Log(float64(n))
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}
	return Normalize(vec)
}
