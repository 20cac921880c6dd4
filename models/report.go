package models

import "time"

// ScoreComponents are the weighted inputs of an AuthorityScore.
type ScoreComponents struct {
	SemanticRelevance  float64 `json:"semantic_relevance"`
	TopicalConsistency float64 `json:"topical_consistency"`
	BacklinkQuality    float64 `json:"backlink_quality"`
	DomainAgeBonus     float64 `json:"domain_age_bonus"`
}

// AuthorityScore is the final topical authority verdict.
type AuthorityScore struct {
	Score          float64         `json:"score"`
	Grade          string          `json:"grade"`
	Components     ScoreComponents `json:"components"`
	Interpretation string          `json:"interpretation"`
}

// KeywordDensity is a site-wide keyword frequency entry.
type KeywordDensity struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Insights holds optional generated recommendations.
type Insights struct {
	Provider        string   `json:"provider"`
	Model           string   `json:"model,omitempty"`
	Status          Status   `json:"status"`
	Summary         string   `json:"summary,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// ReportMetrics are the aggregate topic metrics of a report.
type ReportMetrics struct {
	TotalTopics        int     `json:"total_topics"`
	Outliers           int     `json:"outliers"`
	TopicalConsistency float64 `json:"topical_consistency"`
	SemanticRelevance  float64 `json:"semantic_relevance"`
}

// Report is the persisted artifact of one analysis run.
type Report struct {
	ID            string           `json:"id"`
	URL           string           `json:"url"`
	Domain        string           `json:"domain"`
	AnalyzedAt    time.Time        `json:"analyzed_at"`
	TotalPages    int              `json:"total_pages"`
	TotalWords    int              `json:"total_words"`
	Topics        []TopicSummary   `json:"topics"`
	Metrics       ReportMetrics    `json:"metrics"`
	DomainMetrics DomainMetrics    `json:"domain_metrics"`
	Authority     *AuthorityScore  `json:"authority"`
	Keywords      []KeywordDensity `json:"keywords,omitempty"`
	Insights      *Insights        `json:"insights,omitempty"`
	Crawl         CrawlStats       `json:"crawl"`
	Warnings      []string         `json:"warnings,omitempty"`
}
