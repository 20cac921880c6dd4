// Package scoring turns topic and domain signals into a topical authority score.
package scoring

import (
	"math"

	"github.com/aluiziolira/go-topical-authority/models"
)

// Weights of the backlink quality blend.
const (
	DomainAuthorityWeight = 0.5
	SpamWeight            = 0.2
	BacklinkWeight        = 0.3

	// NeutralBacklinkQuality stands in for missing domain data.
	NeutralBacklinkQuality = 50.0
	maxAgeBonus            = 10.0
)

// Score computes the authority score of an analysed site.
func Score(analysis *models.SiteAnalysis, metrics models.DomainMetrics) models.AuthorityScore {
	var relevance, consistency float64
	if analysis != nil {
		relevance = analysis.SemanticRelevance
		consistency = analysis.TopicalConsistency
	}
	return Compute(relevance, consistency, metrics)
}

// Compute applies the scoring formula to raw inputs. It never fails; absent
// domain data falls back to neutral values.
func Compute(relevance, consistency float64, metrics models.DomainMetrics) models.AuthorityScore {
	semantic := clamp01(relevance) * 100
	topical := clamp01(consistency) * 100
	backlink := BacklinkQuality(metrics)
	age := AgeBonus(metrics.DomainAgeYears)

	final := math.Min((semantic+topical+backlink)/3+age, 100)
	final = round2(final)
	grade := GradeFor(final)

	return models.AuthorityScore{
		Score: final,
		Grade: grade,
		Components: models.ScoreComponents{
			SemanticRelevance:  round2(semantic),
			TopicalConsistency: round2(topical),
			BacklinkQuality:    round2(backlink),
			DomainAgeBonus:     round2(age),
		},
		Interpretation: Interpret(grade),
	}
}

// BacklinkQuality blends domain authority, spam score and linking root
// domains. Non-successful metrics yield the neutral value, as does each
// individually absent input.
func BacklinkQuality(m models.DomainMetrics) float64 {
	if m.Status != models.StatusSuccess {
		return NeutralBacklinkQuality
	}

	daNorm := NeutralBacklinkQuality
	if m.DomainAuthority != nil {
		daNorm = math.Min(*m.DomainAuthority, 100)
	}
	spamPenalty := NeutralBacklinkQuality
	if m.SpamScore != nil {
		spamPenalty = math.Max(0, 100-*m.SpamScore*2)
	}
	links := NeutralBacklinkQuality
	if m.RootDomainsLinking != nil {
		links = math.Min(math.Log1p(float64(*m.RootDomainsLinking))*10, 100)
	}

	return daNorm*DomainAuthorityWeight + spamPenalty*SpamWeight + links*BacklinkWeight
}

// AgeBonus is two points per year of domain age, capped at ten. Unknown or
// negative ages earn nothing.
func AgeBonus(years *float64) float64 {
	if years == nil || *years <= 0 {
		return 0
	}
	return math.Min(*years*2, maxAgeBonus)
}

// GradeFor maps a score onto letter grades with inclusive lower bounds.
func GradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

var interpretations = map[string]string{
	"A+": "Exceptional topical authority with strong content focus and authoritative backlinks",
	"A":  "Strong topical authority with good content coherence and solid domain metrics",
	"B":  "Good topical authority with room for improvement in content focus or backlinks",
	"C":  "Moderate topical authority; consider improving content consistency and link building",
	"D":  "Fair topical authority; significant improvements needed in multiple areas",
	"F":  "Weak topical authority; requires comprehensive SEO strategy overhaul",
}

// Interpret returns the fixed description of a grade.
func Interpret(grade string) string {
	if s, ok := interpretations[grade]; ok {
		return s
	}
	return interpretations["F"]
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
