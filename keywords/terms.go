package keywords

import (
	"math"
	"sort"

	"github.com/aluiziolira/go-topical-authority/models"
)

// RankTerms scores unigrams per topic with class-based TF-IDF: each topic's
// concatenated text is one class and a term weighs
// tf/|class| * ln(1 + A/f), where A is the mean class length in tokens and f
// the term's frequency across all classes. The result is aligned with
// topicTexts.
func RankTerms(topicTexts []string, topN int) [][]models.TermScore {
	classes := make([]map[string]int, len(topicTexts))
	lengths := make([]int, len(topicTexts))
	global := make(map[string]int)
	var totalTokens int

	for i, text := range topicTexts {
		counts := make(map[string]int)
		for _, tok := range tokenize(text, englishStopWords) {
			counts[tok]++
			global[tok]++
			lengths[i]++
		}
		classes[i] = counts
		totalTokens += lengths[i]
	}

	out := make([][]models.TermScore, len(topicTexts))
	if len(topicTexts) == 0 || totalTokens == 0 {
		return out
	}
	avg := float64(totalTokens) / float64(len(topicTexts))

	for i, counts := range classes {
		if lengths[i] == 0 {
			continue
		}
		scores := make([]models.TermScore, 0, len(counts))
		for term, tf := range counts {
			weight := float64(tf) / float64(lengths[i]) * math.Log(1+avg/float64(global[term]))
			scores = append(scores, models.TermScore{Term: term, Score: weight})
		}
		sort.Slice(scores, func(a, b int) bool {
			if scores[a].Score != scores[b].Score {
				return scores[a].Score > scores[b].Score
			}
			return scores[a].Term < scores[b].Term
		})
		if topN > 0 && len(scores) > topN {
			scores = scores[:topN]
		}
		for j := range scores {
			scores[j].Score = round4(scores[j].Score)
		}
		out[i] = scores
	}
	return out
}
