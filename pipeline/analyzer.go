// Package pipeline runs the topical authority analysis from crawl to report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-topical-authority/cluster"
	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/crawler"
	"github.com/aluiziolira/go-topical-authority/domain"
	"github.com/aluiziolira/go-topical-authority/embedding"
	"github.com/aluiziolira/go-topical-authority/keywords"
	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/aluiziolira/go-topical-authority/parser"
	"github.com/aluiziolira/go-topical-authority/report"
	"github.com/aluiziolira/go-topical-authority/scoring"
)

// Stage names reported to Progress and the stage histogram.
const (
	StageCrawl    = "crawl"
	StageEmbed    = "embed"
	StageCluster  = "cluster"
	StageKeywords = "keywords"
	StageDomain   = "domain"
	StageScore    = "score"
	StageInsights = "insights"
	StageSave     = "save"
)

const (
	sampleURLCount      = 3
	representativeRunes = 200
	densityTopN         = 25
)

var tracer = otel.Tracer("github.com/aluiziolira/go-topical-authority/pipeline")

// SiteCrawler collects the pages of a site.
type SiteCrawler interface {
	Crawl(ctx context.Context, seedURL string, maxPages int) (*crawler.Result, error)
}

// KeyphraseExtractor ranks keyphrases of a topic text.
type KeyphraseExtractor interface {
	Extract(ctx context.Context, text string, topN int) ([]models.Keyphrase, error)
}

// DomainCollector gathers authority metrics for a host.
type DomainCollector interface {
	Collect(ctx context.Context, host string) models.DomainMetrics
}

// InsightGenerator writes recommendations for a report.
type InsightGenerator interface {
	Generate(ctx context.Context, r *models.Report) *models.Insights
}

// Deps are the collaborators of an Analyzer. Insights and Sink are optional.
type Deps struct {
	Crawler   SiteCrawler
	Embedder  embedding.Embedder
	Engine    *cluster.Engine
	Extractor KeyphraseExtractor
	Collector DomainCollector
	Insights  InsightGenerator
	Sink      report.Sink
	Metrics   *Metrics
	// Progress, when set, is called with each stage name as it starts.
	Progress func(stage string)
	// Close releases resources owned by the dependencies.
	Close func() error
}

// Analyzer owns the loaded capabilities of one pipeline. Analyzers share no
// mutable state, so separate instances can run concurrently.
type Analyzer struct {
	cfg  *config.Config
	deps Deps

	metrics  *Metrics
	snap     *snapshot
	progress sync.Mutex
}

// NewAnalyzer builds an analyzer from explicit dependencies.
func NewAnalyzer(cfg *config.Config, deps Deps) (*Analyzer, error) {
	switch {
	case deps.Crawler == nil:
		return nil, errors.New("pipeline: crawler is required")
	case deps.Embedder == nil:
		return nil, errors.New("pipeline: embedder is required")
	case deps.Engine == nil:
		return nil, errors.New("pipeline: clustering engine is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: keyphrase extractor is required")
	case deps.Collector == nil:
		return nil, errors.New("pipeline: domain collector is required")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Analyzer{cfg: cfg, deps: deps, metrics: metrics, snap: newSnapshot()}, nil
}

// Metrics exposes the Prometheus collectors of the analyzer.
func (a *Analyzer) Metrics() *Metrics { return a.metrics }

// GetMetrics returns a snapshot of the last run's figures.
func (a *Analyzer) GetMetrics() map[string]interface{} {
	return a.snap.values()
}

// Close releases resources held by the dependencies.
func (a *Analyzer) Close() error {
	if a.deps.Close == nil {
		return nil
	}
	return a.deps.Close()
}

// AnalyzeSite crawls seedURL and groups its pages into topics. An empty
// crawl yields an empty analysis, and fewer than two pages skip clustering;
// neither is an error.
func (a *Analyzer) AnalyzeSite(ctx context.Context, seedURL string, maxPages, minTopicSize int) (*models.SiteAnalysis, error) {
	analysis := &models.SiteAnalysis{
		SeedURL:     seedURL,
		Pages:       []*models.PageRecord{},
		Topics:      []models.TopicSummary{},
		Assignments: []int{},
	}

	var crawl *crawler.Result
	err := a.stage(ctx, StageCrawl, func(ctx context.Context) error {
		var err error
		crawl, err = a.deps.Crawler.Crawl(ctx, seedURL, maxPages)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}

	analysis.Crawl = crawl.Stats
	if crawl.Pages != nil {
		analysis.Pages = crawl.Pages
	}
	analysis.TotalDocuments = len(analysis.Pages)
	a.metrics.AddPages(len(analysis.Pages))
	a.snap.update(func(s *snapshot) { s.pages = len(analysis.Pages) })

	if crawl.Stats.Truncated {
		analysis.Warnings = append(analysis.Warnings, "crawl stopped before the site was exhausted")
	}

	switch n := len(analysis.Pages); {
	case n == 0:
		slog.Warn("crawl produced no usable pages", slog.String("seed", seedURL))
		analysis.Warnings = append(analysis.Warnings, "no usable pages were crawled")
		a.recordTopics(analysis)
		return analysis, nil
	case n < 2:
		analysis.Warnings = append(analysis.Warnings, "fewer than 2 pages, topic clustering skipped")
		a.recordTopics(analysis)
		return analysis, nil
	}

	texts := make([]string, len(analysis.Pages))
	for i, p := range analysis.Pages {
		texts[i] = p.FullText
	}

	var vectors [][]float64
	err = a.stage(ctx, StageEmbed, func(ctx context.Context) error {
		var err error
		vectors, err = embedding.EmbedBatched(ctx, a.deps.Embedder, texts, a.cfg.EmbeddingBatchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed pages: %w", err)
	}

	var assignments []int
	err = a.stage(ctx, StageCluster, func(ctx context.Context) error {
		engine := a.deps.Engine
		if minTopicSize > 0 {
			engine = engine.WithMinTopicSize(minTopicSize)
		}
		var err error
		assignments, err = engine.Assign(ctx, vectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cluster pages: %w", err)
	}

	_, outliers := cluster.Distribution(assignments)
	analysis.Assignments = assignments
	analysis.Outliers = outliers
	analysis.TopicalConsistency = cluster.Consistency(assignments)
	analysis.SemanticRelevance = cluster.Relevance(vectors, assignments)

	err = a.stage(ctx, StageKeywords, func(ctx context.Context) error {
		topics, warnings, err := a.summarize(ctx, analysis.Pages, assignments)
		if err != nil {
			return err
		}
		analysis.Topics = topics
		analysis.Warnings = append(analysis.Warnings, warnings...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	a.recordTopics(analysis)
	slog.Info("site analysed",
		slog.String("seed", seedURL),
		slog.Int("pages", len(analysis.Pages)),
		slog.Int("topics", len(analysis.Topics)),
		slog.Int("outliers", analysis.Outliers),
		slog.Float64("consistency", analysis.TopicalConsistency),
		slog.Float64("relevance", analysis.SemanticRelevance),
	)
	return analysis, nil
}

// summarize builds one summary per topic id. Extraction failures for a
// topic become warnings; only cancellation aborts.
func (a *Analyzer) summarize(ctx context.Context, pages []*models.PageRecord, assignments []int) ([]models.TopicSummary, []string, error) {
	k := cluster.TopicCount(assignments)
	members := make([][]int, k)
	for i, t := range assignments {
		if t >= 0 && t < k {
			members[t] = append(members[t], i)
		}
	}

	topicTexts := make([]string, k)
	for t, idx := range members {
		parts := make([]string, len(idx))
		for j, i := range idx {
			parts[j] = pages[i].FullText
		}
		topicTexts[t] = strings.Join(parts, " ")
	}
	terms := keywords.RankTerms(topicTexts, a.cfg.TopN)

	var warnings []string
	topics := make([]models.TopicSummary, 0, k)
	for t, idx := range members {
		if len(idx) == 0 {
			continue
		}
		phrases, err := a.deps.Extractor.Extract(ctx, topicTexts[t], a.cfg.TopN)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			slog.Warn("keyphrase extraction failed", slog.Int("topic", t), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("topic %d: keyphrase extraction failed: %v", t, err))
			phrases = nil
		}
		if phrases == nil {
			phrases = []models.Keyphrase{}
		}

		samples := make([]string, 0, sampleURLCount)
		for _, i := range idx {
			if len(samples) == sampleURLCount {
				break
			}
			samples = append(samples, pages[i].URL)
		}

		topics = append(topics, models.TopicSummary{
			TopicID:            t,
			DocumentCount:      len(idx),
			Keyphrases:         phrases,
			Terms:              terms[t],
			SampleURLs:         samples,
			RepresentativeText: representative(pages[idx[0]].FullText),
		})
	}
	return topics, warnings, nil
}

// ScoreAuthority scores an analysis against domain metrics.
func (a *Analyzer) ScoreAuthority(analysis *models.SiteAnalysis, metrics models.DomainMetrics) models.AuthorityScore {
	return scoring.Score(analysis, metrics)
}

// Run analyses seedURL end to end and persists the report. Domain metrics
// are collected while the site is analysed. Failures of optional
// collaborators end up in the report warnings.
func (a *Analyzer) Run(ctx context.Context, seedURL string) (rpt *models.Report, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("seed_url", seedURL)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.metrics.IncRun("error")
		} else {
			a.metrics.IncRun("success")
		}
		span.End()
	}()

	var (
		analysis *models.SiteAnalysis
		metrics  models.DomainMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analysis, err = a.AnalyzeSite(gctx, seedURL, a.cfg.MaxPages, a.cfg.MinTopicSize)
		return err
	})
	g.Go(func() error {
		a.step(gctx, StageDomain, func(ctx context.Context) {
			metrics = a.deps.Collector.Collect(ctx, domain.HostOf(seedURL))
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var score *models.AuthorityScore
	var (
		density    []models.KeywordDensity
		totalWords int
	)
	if !analysis.Empty() {
		a.step(ctx, StageScore, func(context.Context) {
			s := a.ScoreAuthority(analysis, metrics)
			score = &s
		})
		texts := make([]string, len(analysis.Pages))
		for i, p := range analysis.Pages {
			texts[i] = p.FullText
		}
		density, totalWords = keywords.Density(strings.Join(texts, " "), densityTopN)
	}

	rpt = report.Assemble(analysis, metrics, score, nil, density)
	rpt.TotalWords = totalWords
	if metrics.Status == models.StatusError {
		rpt.Warnings = append(rpt.Warnings, "domain metrics: "+metrics.Message)
	}
	if metrics.AgeStatus == models.StatusError {
		rpt.Warnings = append(rpt.Warnings, "domain age: "+metrics.AgeMessage)
	}

	if a.deps.Insights != nil && score != nil {
		a.step(ctx, StageInsights, func(ctx context.Context) {
			rpt.Insights = a.deps.Insights.Generate(ctx, rpt)
		})
		if rpt.Insights != nil && rpt.Insights.Status == models.StatusError {
			rpt.Warnings = append(rpt.Warnings, "insights: "+rpt.Insights.Message)
		}
	}

	location := ""
	if a.deps.Sink != nil {
		saveCtx, end := a.begin(ctx, StageSave)
		var saveErr error
		location, saveErr = a.deps.Sink.Save(saveCtx, rpt)
		end(saveErr)
		if saveErr != nil {
			slog.Error("failed to save report",
				slog.String("sink", a.deps.Sink.Name()),
				slog.String("report_id", rpt.ID),
				slog.Any("error", saveErr),
			)
			rpt.Warnings = append(rpt.Warnings, "report not saved: "+saveErr.Error())
		}
	}

	a.snap.update(func(s *snapshot) {
		s.warnings = len(rpt.Warnings)
		s.reportLocation = location
		if score != nil {
			s.score = score.Score
			s.grade = score.Grade
		}
	})
	if score != nil {
		a.metrics.SetScore(score.Score)
		slog.Info("authority scored",
			slog.String("domain", rpt.Domain),
			slog.Float64("score", score.Score),
			slog.String("grade", score.Grade),
		)
	}
	return rpt, nil
}

// stage runs fn inside a span, reporting progress and timing.
func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, end := a.begin(ctx, name)
	err := fn(ctx)
	end(err)
	return err
}

// step runs a stage that cannot fail.
func (a *Analyzer) step(ctx context.Context, name string, fn func(context.Context)) {
	ctx, end := a.begin(ctx, name)
	fn(ctx)
	end(nil)
}

// begin opens the span for a stage. The returned func records the outcome.
func (a *Analyzer) begin(ctx context.Context, name string) (context.Context, func(error)) {
	a.notify(name)
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		a.metrics.ObserveStage(name, elapsed)
		a.snap.addStage(name, elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		slog.Debug("stage finished", slog.String("stage", name), slog.Duration("elapsed", elapsed))
	}
}

func (a *Analyzer) notify(stage string) {
	if a.deps.Progress == nil {
		return
	}
	a.progress.Lock()
	defer a.progress.Unlock()
	a.deps.Progress(stage)
}

func (a *Analyzer) recordTopics(analysis *models.SiteAnalysis) {
	a.metrics.SetTopics(len(analysis.Topics))
	a.snap.update(func(s *snapshot) {
		s.topics = len(analysis.Topics)
		s.outliers = analysis.Outliers
	})
}

func representative(text string) string {
	if utf8.RuneCountInString(text) <= representativeRunes {
		return text
	}
	return parser.Truncate(text, representativeRunes) + "..."
}
