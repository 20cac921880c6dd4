package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-topical-authority/cluster"
	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/crawler"
	"github.com/aluiziolira/go-topical-authority/domain"
	"github.com/aluiziolira/go-topical-authority/embedding"
	"github.com/aluiziolira/go-topical-authority/fetcher"
	"github.com/aluiziolira/go-topical-authority/insights"
	"github.com/aluiziolira/go-topical-authority/keywords"
	"github.com/aluiziolira/go-topical-authority/report"
)

// Option customises the analyzer built by New.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	progress func(stage string)
}

// WithRegistry registers fetch and run metrics on a shared registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithProgress reports stage names as they start.
func WithProgress(fn func(stage string)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// New wires the production collaborators selected by cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var pageFetcher crawler.Fetcher
	if cfg.Render {
		bf, err := fetcher.NewBrowserFetcher(cfg)
		if err != nil {
			return nil, fmt.Errorf("create browser fetcher: %w", err)
		}
		closers = append(closers, func() error { bf.Close(); return nil })
		pageFetcher = bf
	} else {
		f, err := fetcher.New(cfg, fetcher.WithRegistry(registry))
		if err != nil {
			return nil, fmt.Errorf("create fetcher: %w", err)
		}
		pageFetcher = f
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	var reducer cluster.Reducer
	if cfg.Reducer == "remote" {
		reducer = cluster.NewRemoteReducer(cfg.ReducerURL, nil)
	}

	collector := domain.NewCollector(
		domain.NewMoz(cfg.MozAccessID, cfg.MozSecretKey, cfg.MozEndpoint, nil),
		domain.NewRDAP(cfg.RDAPEndpoint, nil),
		cfg.DomainTimeout,
	)

	sink, err := report.NewSink(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	if c, ok := sink.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}
	if fb, ok := sink.(*report.FallbackSink); ok {
		if c, ok := fb.Primary.(interface{ Close() error }); ok {
			closers = append(closers, c.Close)
		}
	}

	return NewAnalyzer(cfg, Deps{
		Crawler:   crawler.New(cfg, pageFetcher),
		Embedder:  embedder,
		Engine:    cluster.NewEngine(cfg, reducer),
		Extractor: keywords.NewExtractor(cfg, embedder),
		Collector: collector,
		Insights:  newInsights(cfg),
		Sink:      sink,
		Metrics:   NewMetrics(registry),
		Progress:  o.progress,
		Close:     closeAll,
	})
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.EmbeddingProvider {
	case "hashing":
		base = embedding.NewHashing(cfg.EmbeddingDim)
	case embedding.ProtocolOllama, embedding.ProtocolOpenAI:
		client, err := embedding.NewClient(cfg.EmbeddingProvider, cfg.EmbeddingURL, cfg.EmbeddingModel,
			embedding.WithAPIKey(cfg.EmbeddingAPIKey))
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		base = client
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	if cfg.EmbeddingCacheSize == 0 {
		return base, nil
	}
	cache, err := embedding.NewCache(base, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return cache, nil
}

// newInsights returns nil when insights are disabled so the stage is skipped.
func newInsights(cfg *config.Config) InsightGenerator {
	var provider insights.Provider
	switch cfg.InsightsProvider {
	case "claude":
		provider = insights.NewClaudeAPI(cfg.AnthropicAPIKey, cfg.InsightsModel, nil)
	case "openai":
		provider = insights.NewOpenAICompatible(cfg.InsightsURL, cfg.OpenAIAPIKey, cfg.InsightsModel, nil)
	default:
		return nil
	}
	return insights.NewGenerator(provider, cfg.InsightsInterval)
}
