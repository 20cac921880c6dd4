// Package cluster groups page embeddings into topics.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aluiziolira/go-topical-authority/config"
)

// Engine reduces vectors and clusters the reduced points.
type Engine struct {
	reducer      Reducer
	components   int
	maxNeighbors int
	seed         int64
	clusterer    HDBSCAN
}

// NewEngine builds an engine from cfg around reducer.
func NewEngine(cfg *config.Config, reducer Reducer) *Engine {
	if reducer == nil {
		reducer = PCAReducer{}
	}
	return &Engine{
		reducer:      reducer,
		components:   cfg.Components,
		maxNeighbors: cfg.MaxNeighbors,
		seed:         cfg.Seed,
		clusterer: HDBSCAN{
			MinClusterSize:     cfg.MinTopicSize,
			MinSamples:         cfg.MinSamples,
			AllowSingleCluster: true,
			OutlierThreshold:   cfg.OutlierThreshold,
		},
	}
}

// WithMinTopicSize returns a copy of the engine using a different minimum
// cluster size.
func (e *Engine) WithMinTopicSize(size int) *Engine {
	cp := *e
	cp.clusterer.MinClusterSize = size
	return &cp
}

// Assign returns one topic id per vector. Ids run 0..k-1 by descending topic
// size; unassigned points get Outlier. Fewer than two vectors are not
// clustered and yield nil.
func (e *Engine) Assign(ctx context.Context, vectors [][]float64) ([]int, error) {
	n := len(vectors)
	if n < 2 {
		return nil, nil
	}

	params := NewReduceParams(n, e.components, e.maxNeighbors, e.seed)
	reduced, err := e.reducer.Reduce(ctx, vectors, params)
	if err != nil {
		return nil, fmt.Errorf("reduce embeddings: %w", err)
	}
	if len(reduced) != n {
		return nil, fmt.Errorf("reducer returned %d points for %d vectors", len(reduced), n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels := Relabel(e.clusterer.Fit(reduced))
	slog.Debug("clustered embeddings",
		slog.Int("points", n),
		slog.Int("components", params.Components),
		slog.Int("neighbors", params.Neighbors),
		slog.Int("topics", TopicCount(labels)),
	)
	return labels, nil
}

// Relabel renumbers raw labels 0..k-1 by descending size. Ties keep the
// order of each cluster's first member.
func Relabel(raw []int) []int {
	type group struct {
		raw   int
		size  int
		first int
	}
	index := make(map[int]*group)
	var groups []*group
	for i, l := range raw {
		if l == Outlier {
			continue
		}
		g, ok := index[l]
		if !ok {
			g = &group{raw: l, first: i}
			index[l] = g
			groups = append(groups, g)
		}
		g.size++
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].size != groups[j].size {
			return groups[i].size > groups[j].size
		}
		return groups[i].first < groups[j].first
	})

	mapping := make(map[int]int, len(groups))
	for id, g := range groups {
		mapping[g.raw] = id
	}
	out := make([]int, len(raw))
	for i, l := range raw {
		if l == Outlier {
			out[i] = Outlier
			continue
		}
		out[i] = mapping[l]
	}
	return out
}
