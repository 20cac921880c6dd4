// Package models defines data structures shared across the analyzer.
package models

import "time"

// PageRecord is one crawled page with usable text.
type PageRecord struct {
	URL             string    `json:"url"`
	FinalURL        string    `json:"final_url,omitempty"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	BodyText        string    `json:"body_text"`
	FullText        string    `json:"full_text"`
	WordCount       int       `json:"word_count"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// CrawlStats summarises one crawl.
type CrawlStats struct {
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Requests     int            `json:"requests"`
	Succeeded    int            `json:"succeeded"`
	ThinPages    int            `json:"thin_pages"`
	ErrorCount   int            `json:"error_count"`
	ErrorsByType map[string]int `json:"errors_by_type,omitempty"`
	FailedURLs   []string       `json:"failed_urls,omitempty"`
	Truncated    bool           `json:"truncated"`
}

// Duration reports the wall time of the crawl.
func (s CrawlStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
