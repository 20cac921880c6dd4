package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/aluiziolira/go-topical-authority/cluster"
	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/crawler"
	"github.com/aluiziolira/go-topical-authority/models"
)

type stubCrawler struct {
	pages []*models.PageRecord
	err   error
}

func (s *stubCrawler) Crawl(_ context.Context, _ string, maxPages int) (*crawler.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	pages := s.pages
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return &crawler.Result{Pages: pages, Stats: models.CrawlStats{Requests: len(pages), Succeeded: len(pages)}}, nil
}

// vectorEmbedder returns fixed vectors keyed by text.
type vectorEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (v *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if v.err != nil {
		return nil, v.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, ok := v.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = vec
	}
	return out, nil
}

type stubExtractor struct {
	err error
}

func (s *stubExtractor) Extract(_ context.Context, text string, topN int) ([]models.Keyphrase, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Keyphrase{{Text: strings.Fields(text)[0], Score: 0.9}}, nil
}

type stubCollector struct {
	metrics models.DomainMetrics
}

func (s *stubCollector) Collect(_ context.Context, host string) models.DomainMetrics {
	m := s.metrics
	m.Domain = host
	return m
}

type recordingSink struct {
	mu    sync.Mutex
	saved []*models.Report
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Save(_ context.Context, rpt *models.Report) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, rpt)
	return "memory:" + rpt.ID, nil
}

type stubInsights struct {
	result *models.Insights
}

func (s *stubInsights) Generate(context.Context, *models.Report) *models.Insights {
	return s.result
}

// nearDuplicates returns n pages whose vectors are pairwise ~0.99 similar.
func nearDuplicates(n int) ([]*models.PageRecord, map[string][]float64) {
	pages := make([]*models.PageRecord, n)
	vectors := make(map[string][]float64, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("espresso brewing guide part %d. Pulling shots with fresh beans.", i)
		pages[i] = &models.PageRecord{
			URL:      fmt.Sprintf("https://coffee.test/guide/%d", i),
			FullText: text,
		}
		v := make([]float64, n+1)
		v[0] = 1
		v[i+1] = 0.1
		vectors[text] = v
	}
	return pages, vectors
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxPages = 10
	return cfg
}

func newTestAnalyzer(t *testing.T, deps Deps) *Analyzer {
	t.Helper()
	cfg := testConfig()
	if deps.Engine == nil {
		deps.Engine = cluster.NewEngine(cfg, nil)
	}
	if deps.Extractor == nil {
		deps.Extractor = &stubExtractor{}
	}
	if deps.Collector == nil {
		deps.Collector = &stubCollector{metrics: models.DomainMetrics{Status: models.StatusUnavailable}}
	}
	if deps.Embedder == nil {
		deps.Embedder = &vectorEmbedder{}
	}
	a, err := NewAnalyzer(cfg, deps)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return a
}

func TestAnalyzeSiteEmptyCrawl(t *testing.T) {
	a := newTestAnalyzer(t, Deps{Crawler: &stubCrawler{}})

	analysis, err := a.AnalyzeSite(context.Background(), "https://thin.test", 5, 2)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !analysis.Empty() || len(analysis.Topics) != 0 {
		t.Fatalf("expected empty analysis, got %+v", analysis)
	}
	if analysis.TopicalConsistency != 0 || analysis.SemanticRelevance != 0 || analysis.Outliers != 0 {
		t.Fatalf("empty analysis should have zero metrics: %+v", analysis)
	}
}

func TestAnalyzeSiteSinglePage(t *testing.T) {
	pages, vectors := nearDuplicates(1)
	embedder := &vectorEmbedder{vectors: vectors}
	a := newTestAnalyzer(t, Deps{Crawler: &stubCrawler{pages: pages}, Embedder: embedder})

	analysis, err := a.AnalyzeSite(context.Background(), "https://one.test", 5, 2)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Pages) != 1 || len(analysis.Topics) != 0 {
		t.Fatalf("unexpected degenerate analysis: %+v", analysis)
	}
	if analysis.TopicalConsistency != 0 || analysis.SemanticRelevance != 0 || analysis.Outliers != 0 {
		t.Fatalf("degenerate analysis should have zero metrics: %+v", analysis)
	}
}

func TestAnalyzeSiteNearDuplicates(t *testing.T) {
	pages, vectors := nearDuplicates(5)
	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{pages: pages},
		Embedder: &vectorEmbedder{vectors: vectors},
	})

	analysis, err := a.AnalyzeSite(context.Background(), "https://coffee.test", 10, 2)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Topics) != 1 {
		t.Fatalf("topics = %d, want 1 (assignments %v)", len(analysis.Topics), analysis.Assignments)
	}

	topic := analysis.Topics[0]
	if topic.DocumentCount != 5 || analysis.Outliers != 0 {
		t.Fatalf("document count = %d outliers = %d", topic.DocumentCount, analysis.Outliers)
	}
	if analysis.TopicalConsistency != 1 {
		t.Fatalf("consistency = %v, want 1", analysis.TopicalConsistency)
	}
	if math.Abs(analysis.SemanticRelevance-1/1.01) > 1e-9 {
		t.Fatalf("relevance = %v, want ~0.99", analysis.SemanticRelevance)
	}
	if len(topic.SampleURLs) != 3 || topic.SampleURLs[0] != pages[0].URL {
		t.Fatalf("sample urls = %v", topic.SampleURLs)
	}
	if len(topic.Keyphrases) != 1 || topic.Keyphrases[0].Text != "espresso" {
		t.Fatalf("keyphrases = %v", topic.Keyphrases)
	}
	if len(topic.Terms) == 0 {
		t.Fatalf("expected ranked terms")
	}

	total := analysis.Outliers
	for _, tp := range analysis.Topics {
		total += tp.DocumentCount
	}
	if total != len(analysis.Pages) || len(analysis.Assignments) != len(analysis.Pages) {
		t.Fatalf("assignments do not cover every page")
	}
}

func TestAnalyzeSiteDuplicatePageStaysInTopic(t *testing.T) {
	pages, vectors := nearDuplicates(5)
	// The site root served under two URLs.
	pages[1].URL = pages[0].URL + "/"
	pages[1].FullText = pages[0].FullText

	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{pages: pages},
		Embedder: &vectorEmbedder{vectors: vectors},
	})

	analysis, err := a.AnalyzeSite(context.Background(), "https://coffee.test", 10, 2)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Topics) != 1 || analysis.Outliers != 0 {
		t.Fatalf("topics = %d outliers = %d (assignments %v)", len(analysis.Topics), analysis.Outliers, analysis.Assignments)
	}
	if analysis.Topics[0].DocumentCount != 5 {
		t.Fatalf("document count = %d, want 5", analysis.Topics[0].DocumentCount)
	}
	if analysis.TopicalConsistency != 1 {
		t.Fatalf("consistency = %v, want 1", analysis.TopicalConsistency)
	}
}

func TestAnalyzeSiteExtractionFailureIsWarning(t *testing.T) {
	pages, vectors := nearDuplicates(4)
	a := newTestAnalyzer(t, Deps{
		Crawler:   &stubCrawler{pages: pages},
		Embedder:  &vectorEmbedder{vectors: vectors},
		Extractor: &stubExtractor{err: errors.New("model offline")},
	})

	analysis, err := a.AnalyzeSite(context.Background(), "https://coffee.test", 10, 2)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Topics) != 1 || len(analysis.Topics[0].Keyphrases) != 0 {
		t.Fatalf("topic should survive with empty keyphrases: %+v", analysis.Topics)
	}
	if len(analysis.Warnings) != 1 || !strings.Contains(analysis.Warnings[0], "model offline") {
		t.Fatalf("warnings = %v", analysis.Warnings)
	}
}

func TestAnalyzeSiteEmbeddingFailure(t *testing.T) {
	pages, _ := nearDuplicates(3)
	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{pages: pages},
		Embedder: &vectorEmbedder{err: errors.New("connection refused")},
	})

	if _, err := a.AnalyzeSite(context.Background(), "https://coffee.test", 10, 2); err == nil {
		t.Fatalf("expected embedding failure to be an error")
	}
}

func TestRunScoresAndSaves(t *testing.T) {
	pages, vectors := nearDuplicates(5)
	sink := &recordingSink{}

	var mu sync.Mutex
	var stages []string
	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{pages: pages},
		Embedder: &vectorEmbedder{vectors: vectors},
		Insights: &stubInsights{result: &models.Insights{Provider: "stub", Status: models.StatusSuccess, Summary: "ok"}},
		Sink:     sink,
		Progress: func(stage string) {
			mu.Lock()
			stages = append(stages, stage)
			mu.Unlock()
		},
	})

	rpt, err := a.Run(context.Background(), "https://www.coffee.test/")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rpt.Authority == nil {
		t.Fatalf("expected a score")
	}
	// (99.01 + 100 + 50) / 3 with neutral backlink quality.
	if rpt.Authority.Score != 83 || rpt.Authority.Grade != "A" {
		t.Fatalf("score = %v grade = %s", rpt.Authority.Score, rpt.Authority.Grade)
	}
	if rpt.Domain != "coffee.test" || rpt.DomainMetrics.Domain != "coffee.test" {
		t.Fatalf("domain = %q metrics domain = %q", rpt.Domain, rpt.DomainMetrics.Domain)
	}
	if rpt.Insights == nil || rpt.Insights.Summary != "ok" {
		t.Fatalf("insights = %+v", rpt.Insights)
	}
	if len(rpt.Keywords) == 0 {
		t.Fatalf("expected keyword density")
	}
	top := rpt.Keywords[0]
	if rpt.TotalWords < top.Count {
		t.Fatalf("total words = %d, below top keyword count %d", rpt.TotalWords, top.Count)
	}
	if want := math.Round(float64(top.Count)*100/float64(rpt.TotalWords)*100) / 100; top.Percent != want {
		t.Fatalf("top keyword percent = %v, want %v of %d words", top.Percent, want, rpt.TotalWords)
	}
	if len(sink.saved) != 1 || sink.saved[0].ID != rpt.ID {
		t.Fatalf("report not saved")
	}

	seen := map[string]bool{}
	for _, s := range stages {
		seen[s] = true
	}
	for _, want := range []string{StageCrawl, StageEmbed, StageCluster, StageKeywords, StageDomain, StageScore, StageInsights, StageSave} {
		if !seen[want] {
			t.Fatalf("stage %q not reported (got %v)", want, stages)
		}
	}

	snap := a.GetMetrics()
	if snap["pages_crawled"].(int) != 5 || snap["topics_found"].(int) != 1 {
		t.Fatalf("snapshot = %v", snap)
	}
	if snap["report_location"].(string) != "memory:"+rpt.ID {
		t.Fatalf("report location = %v", snap["report_location"])
	}
}

func TestRunEmptyCrawlHasNoScore(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{},
		Insights: &stubInsights{result: &models.Insights{Status: models.StatusSuccess}},
		Sink:     sink,
	})

	rpt, err := a.Run(context.Background(), "https://thin.test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rpt.Authority != nil || rpt.Insights != nil {
		t.Fatalf("empty crawl should not be scored: %+v", rpt)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("empty report should still be saved")
	}
}

func TestRunSinkFailureIsNotFatal(t *testing.T) {
	pages, vectors := nearDuplicates(3)
	a := newTestAnalyzer(t, Deps{
		Crawler:  &stubCrawler{pages: pages},
		Embedder: &vectorEmbedder{vectors: vectors},
		Sink:     &recordingSink{err: errors.New("database down")},
		Collector: &stubCollector{metrics: models.DomainMetrics{
			Status:  models.StatusError,
			Message: "rate limit exceeded",
		}},
	})

	rpt, err := a.Run(context.Background(), "https://coffee.test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	joined := strings.Join(rpt.Warnings, "|")
	if !strings.Contains(joined, "database down") || !strings.Contains(joined, "rate limit exceeded") {
		t.Fatalf("warnings = %v", rpt.Warnings)
	}
	if rpt.Authority.Components.BacklinkQuality != 50 {
		t.Fatalf("provider error should score neutral backlinks")
	}
}

func TestRunCrawlError(t *testing.T) {
	a := newTestAnalyzer(t, Deps{Crawler: &stubCrawler{err: crawler.ErrInvalidSeed}})

	_, err := a.Run(context.Background(), "ftp://bad.test")
	if !errors.Is(err, crawler.ErrInvalidSeed) {
		t.Fatalf("err = %v, want ErrInvalidSeed", err)
	}
}

func TestNewAnalyzerRequiresDeps(t *testing.T) {
	if _, err := NewAnalyzer(testConfig(), Deps{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestNewWiresDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.OutputDir = t.TempDir()
	cfg.InsightsProvider = "claude"

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.deps.Insights == nil || a.deps.Sink.Name() != "file" {
		t.Fatalf("unexpected wiring: %+v", a.deps)
	}
	if a.Metrics().Registry == nil {
		t.Fatalf("metrics registry missing")
	}

	cfg.EmbeddingProvider = "bogus"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected invalid configuration error")
	}
}
