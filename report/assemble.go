// Package report assembles analysis results into a persisted report and
// stores it through pluggable sinks.
package report

import (
	"time"

	"github.com/aluiziolira/go-topical-authority/domain"
	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/google/uuid"
)

// Assemble builds the report of one run. score is nil when the crawl found
// no pages.
func Assemble(
	analysis *models.SiteAnalysis,
	metrics models.DomainMetrics,
	score *models.AuthorityScore,
	insights *models.Insights,
	keywords []models.KeywordDensity,
) *models.Report {
	r := &models.Report{
		ID:            uuid.NewString(),
		AnalyzedAt:    time.Now().UTC(),
		DomainMetrics: metrics,
		Authority:     score,
		Keywords:      keywords,
		Insights:      insights,
		Topics:        []models.TopicSummary{},
	}
	if analysis == nil {
		return r
	}

	r.URL = analysis.SeedURL
	r.Domain = domain.HostOf(analysis.SeedURL)
	r.TotalPages = len(analysis.Pages)
	if analysis.Topics != nil {
		r.Topics = analysis.Topics
	}
	r.Metrics = models.ReportMetrics{
		TotalTopics:        len(analysis.Topics),
		Outliers:           analysis.Outliers,
		TopicalConsistency: analysis.TopicalConsistency,
		SemanticRelevance:  analysis.SemanticRelevance,
	}
	r.Crawl = analysis.Crawl
	r.Warnings = append(r.Warnings, analysis.Warnings...)
	return r
}
