// Package keywords extracts keyphrases and term rankings from topic text.
package keywords

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/embedding"
	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/aluiziolira/go-topical-authority/parser"
)

const (
	// MaxCandidates bounds the n-grams embedded per extraction.
	MaxCandidates = 300
	// exhaustiveLimit is the largest number of subsets searched exhaustively.
	exhaustiveLimit = 250000
	maxNgram        = 3
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Extractor selects keyphrases that are relevant to a text and diverse among
// themselves.
type Extractor struct {
	embedder   embedding.Embedder
	candidates int
	diversity  float64
	textCap    int
}

// NewExtractor builds an extractor that embeds with e.
func NewExtractor(cfg *config.Config, e embedding.Embedder) *Extractor {
	return &Extractor{
		embedder:   e,
		candidates: cfg.KeyphraseCandidates,
		diversity:  cfg.Diversity,
		textCap:    cfg.TopicTextCap,
	}
}

// Extract returns up to topN keyphrases of text in descending relevance.
func (x *Extractor) Extract(ctx context.Context, text string, topN int) ([]models.Keyphrase, error) {
	if topN <= 0 {
		return nil, nil
	}
	if x.textCap > 0 {
		text = parser.Truncate(text, x.textCap)
	}

	candidates := Candidates(text, MaxCandidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, text)
	inputs = append(inputs, candidates...)
	vecs, err := x.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vecs) != len(inputs) {
		return nil, embedding.ErrCountMismatch
	}
	doc, candVecs := vecs[0], vecs[1:]

	relevance := make([]float64, len(candidates))
	order := make([]int, len(candidates))
	for i := range candidates {
		relevance[i] = embedding.Cosine(doc, candVecs[i])
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return relevance[order[a]] > relevance[order[b]] })

	poolSize := x.candidates
	if poolSize < topN {
		poolSize = topN
	}
	if poolSize > len(order) {
		poolSize = len(order)
	}
	pool := order[:poolSize]

	k := topN
	if k > len(pool) {
		k = len(pool)
	}

	var chosen []int
	if x.diversity <= 0 {
		chosen = append(chosen, pool[:k]...)
	} else {
		sim := make([][]float64, len(pool))
		for i := range pool {
			sim[i] = make([]float64, len(pool))
			for j := range pool {
				if i != j {
					sim[i][j] = embedding.Cosine(candVecs[pool[i]], candVecs[pool[j]])
				}
			}
		}
		rel := make([]float64, len(pool))
		for i, idx := range pool {
			rel[i] = relevance[idx]
		}

		var picked []int
		if binomial(len(pool), k) <= exhaustiveLimit {
			picked = maxSumExhaustive(rel, sim, k, x.diversity)
		} else {
			picked = maxSumGreedy(rel, sim, k, x.diversity)
		}
		for _, p := range picked {
			chosen = append(chosen, pool[p])
		}
	}

	sort.SliceStable(chosen, func(a, b int) bool { return relevance[chosen[a]] > relevance[chosen[b]] })
	out := make([]models.Keyphrase, len(chosen))
	for i, idx := range chosen {
		out[i] = models.Keyphrase{Text: candidates[idx], Score: round4(relevance[idx])}
	}
	return out, nil
}

// Candidates returns the most frequent 1-3 word n-grams of text after stop
// word removal, ties broken by first occurrence.
func Candidates(text string, limit int) []string {
	tokens := tokenize(text, englishStopWords)

	counts := make(map[string]int)
	var seen []string
	for n := 1; n <= maxNgram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			if counts[gram] == 0 {
				seen = append(seen, gram)
			}
			counts[gram]++
		}
	}

	sort.SliceStable(seen, func(a, b int) bool { return counts[seen[a]] > counts[seen[b]] })
	if limit > 0 && len(seen) > limit {
		seen = seen[:limit]
	}
	return seen
}

func tokenize(text string, stop map[string]struct{}) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, ok := stop[t]; ok {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func objective(relSum, simSum float64, k int, diversity float64) float64 {
	meanRel := relSum / float64(k)
	meanSim := 0.0
	if pairs := k * (k - 1) / 2; pairs > 0 {
		meanSim = simSum / float64(pairs)
	}
	return (1-diversity)*meanRel + diversity*(1-meanSim)
}

// maxSumExhaustive searches every k-subset of the pool.
func maxSumExhaustive(rel []float64, sim [][]float64, k int, diversity float64) []int {
	best := math.Inf(-1)
	var bestSet []int
	current := make([]int, 0, k)

	var walk func(start int, relSum, simSum float64)
	walk = func(start int, relSum, simSum float64) {
		if len(current) == k {
			if score := objective(relSum, simSum, k, diversity); score > best {
				best = score
				bestSet = append(bestSet[:0], current...)
			}
			return
		}
		for i := start; i <= len(rel)-(k-len(current)); i++ {
			added := 0.0
			for _, c := range current {
				added += sim[c][i]
			}
			current = append(current, i)
			walk(i+1, relSum+rel[i], simSum+added)
			current = current[:len(current)-1]
		}
	}
	walk(0, 0, 0)
	return bestSet
}

// maxSumGreedy grows the subset one candidate at a time, starting from the
// most relevant one.
func maxSumGreedy(rel []float64, sim [][]float64, k int, diversity float64) []int {
	chosen := []int{0}
	used := map[int]bool{0: true}
	relSum, simSum := rel[0], 0.0

	for len(chosen) < k {
		bestIdx, bestScore, bestSim := -1, math.Inf(-1), 0.0
		for i := range rel {
			if used[i] {
				continue
			}
			added := 0.0
			for _, c := range chosen {
				added += sim[c][i]
			}
			score := objective(relSum+rel[i], simSum+added, len(chosen)+1, diversity)
			if score > bestScore {
				bestIdx, bestScore, bestSim = i, score, added
			}
		}
		chosen = append(chosen, bestIdx)
		used[bestIdx] = true
		relSum += rel[bestIdx]
		simSum += bestSim
	}
	return chosen
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 1; i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return result
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
