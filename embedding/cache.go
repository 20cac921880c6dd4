package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoises vectors of an underlying Embedder by text hash.
type Cache struct {
	next  Embedder
	store *lru.Cache[[sha256.Size]byte, []float64]
}

// NewCache wraps next with an LRU of the given size.
func NewCache(next Embedder, size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	store, err := lru.New[[sha256.Size]byte, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{next: next, store: store}, nil
}

// Embed implements Embedder. Only texts missing from the cache reach the
// wrapped embedder.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	keys := make([][sha256.Size]byte, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = sha256.Sum256([]byte(text))
		if v, ok := c.store.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, ErrCountMismatch
	}
	for j, idx := range missingIdx {
		out[idx] = vecs[j]
		c.store.Add(keys[idx], vecs[j])
	}
	return out, nil
}

// Len reports the number of cached vectors.
func (c *Cache) Len() int {
	return c.store.Len()
}
