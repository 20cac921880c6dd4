package cluster

import (
	"math"
	"sort"

	"github.com/aluiziolira/go-topical-authority/embedding"
)

// Distribution counts members per topic and the number of outliers.
func Distribution(assignments []int) (counts map[int]int, outliers int) {
	counts = make(map[int]int)
	for _, id := range assignments {
		if id == Outlier {
			outliers++
			continue
		}
		counts[id]++
	}
	return counts, outliers
}

// TopicCount returns the number of distinct non-outlier topics.
func TopicCount(assignments []int) int {
	counts, _ := Distribution(assignments)
	return len(counts)
}

// Consistency is one minus the normalised Shannon entropy of the topic
// distribution. A single topic scores 1; no assigned documents score 0.
func Consistency(assignments []int) float64 {
	counts, _ := Distribution(assignments)
	var total int
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	if len(counts) == 1 {
		return 1
	}

	var entropy float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log(p)
	}
	value := 1 - entropy/math.Log(float64(len(counts)))
	return clamp01(value)
}

// Relevance is the mean of all within-topic pairwise cosine similarities,
// pooled over topics with at least two members.
func Relevance(vectors [][]float64, assignments []int) float64 {
	members := make(map[int][]int)
	for i, id := range assignments {
		if id == Outlier || i >= len(vectors) {
			continue
		}
		members[id] = append(members[id], i)
	}

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var sum float64
	var pairs int
	for _, id := range ids {
		idx := members[id]
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				sum += embedding.Cosine(vectors[idx[a]], vectors[idx[b]])
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return clamp01(sum / float64(pairs))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
