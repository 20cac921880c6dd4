package models

// Keyphrase is a ranked phrase with its relevance to the topic text.
type Keyphrase struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// TermScore is a raw class-based TF-IDF term weight.
type TermScore struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// TopicSummary describes one non-outlier topic.
type TopicSummary struct {
	TopicID            int         `json:"topic_id"`
	DocumentCount      int         `json:"document_count"`
	Keyphrases         []Keyphrase `json:"keyphrases"`
	Terms              []TermScore `json:"terms"`
	SampleURLs         []string    `json:"sample_urls"`
	RepresentativeText string      `json:"representative_text,omitempty"`
}

// SiteAnalysis is the outcome of analysing one site.
type SiteAnalysis struct {
	SeedURL            string         `json:"seed_url"`
	Pages              []*PageRecord  `json:"pages"`
	Topics             []TopicSummary `json:"topics"`
	Assignments        []int          `json:"assignments"`
	TopicalConsistency float64        `json:"topical_consistency"`
	SemanticRelevance  float64        `json:"semantic_relevance"`
	Outliers           int            `json:"outliers"`
	TotalDocuments     int            `json:"total_documents"`
	Crawl              CrawlStats     `json:"crawl"`
	Warnings           []string       `json:"warnings,omitempty"`
}

// Empty reports whether the crawl produced no usable pages.
func (a *SiteAnalysis) Empty() bool {
	return a == nil || len(a.Pages) == 0
}
