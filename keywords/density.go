package keywords

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-topical-authority/models"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Density counts the most frequent words of text. Words of up to two letters
// and common English, German, French, Italian and Spanish function words are
// ignored. Percentages are relative to the remaining word count and rounded
// to two decimals.
func Density(text string, topN int) (top []models.KeywordDensity, totalWords int) {
	counts := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := densityStopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
		totalWords++
	}

	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	denominator := totalWords
	if denominator == 0 {
		denominator = 1
	}
	top = make([]models.KeywordDensity, len(order))
	for i, w := range order {
		top[i] = models.KeywordDensity{
			Keyword: w,
			Count:   counts[w],
			Percent: math.Round(float64(counts[w])*100/float64(denominator)*100) / 100,
		}
	}
	return top, totalWords
}
