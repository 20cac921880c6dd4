package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	charmlog "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/aluiziolira/go-topical-authority/pipeline"
)

func main() {
	cfg := config.DefaultConfig()
	if err := config.LoadEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.SeedURL, "url", cfg.SeedURL, "Seed URL of the site to analyse")
	flag.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Maximum pages to crawl")
	flag.IntVar(&cfg.MinTopicSize, "min-topic-size", cfg.MinTopicSize, "Minimum pages per topic")
	flag.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "Number of concurrent requests")
	flag.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Politeness delay between requests")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per URL")
	flag.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	flag.BoolVar(&cfg.Render, "render", cfg.Render, "Render pages in headless Chrome")
	flag.IntVar(&cfg.TopN, "top-n", cfg.TopN, "Keyphrases per topic")
	flag.Float64Var(&cfg.Diversity, "diversity", cfg.Diversity, "Keyphrase diversity weight in [0, 1]")
	flag.StringVar(&cfg.EmbeddingProvider, "embedding", cfg.EmbeddingProvider, "Embedding provider: hashing, ollama, or openai")
	flag.StringVar(&cfg.EmbeddingURL, "embedding-url", cfg.EmbeddingURL, "Embedding server base URL")
	flag.StringVar(&cfg.EmbeddingModel, "embedding-model", cfg.EmbeddingModel, "Embedding model name")
	flag.StringVar(&cfg.Reducer, "reducer", cfg.Reducer, "Dimensionality reducer: pca or remote")
	flag.StringVar(&cfg.ReducerURL, "reducer-url", cfg.ReducerURL, "Remote reducer base URL")
	flag.StringVar(&cfg.InsightsProvider, "insights", cfg.InsightsProvider, "Insights provider: none, claude, or openai")
	flag.StringVar(&cfg.Sink, "sink", cfg.Sink, "Report sink: file, postgres, s3, or supabase")
	flag.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory for file reports")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "File report format: csv, json, or dual")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	if cfg.SeedURL == "" && flag.NArg() > 0 {
		cfg.SeedURL = flag.Arg(0)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if cfg.SeedURL == "" {
		slog.Error("a seed URL is required (-url or first argument)")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, cancelling in-flight work")
	}()

	var sp *spinner.Spinner
	if isTerminal(os.Stderr) && !cfg.Verbose {
		sp = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		sp.Suffix = " starting"
		sp.Start()
	}
	progress := func(stage string) {
		if sp == nil {
			slog.Debug("stage started", slog.String("stage", stage))
			return
		}
		sp.Lock()
		sp.Suffix = " " + stage
		sp.Unlock()
	}

	registry := prometheus.NewRegistry()
	analyzer, err := pipeline.New(ctx, cfg, pipeline.WithRegistry(registry), pipeline.WithProgress(progress))
	if err != nil {
		stopSpinner(sp)
		slog.Error("initialising analyzer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := analyzer.Close(); err != nil {
			slog.Error("close analyzer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting analysis",
		slog.String("url", cfg.SeedURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("embedding", cfg.EmbeddingProvider),
		slog.String("sink", cfg.Sink),
	)

	startTime := time.Now()
	rpt, err := analyzer.Run(ctx, cfg.SeedURL)
	stopSpinner(sp)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if err != nil {
		slog.Error("analysis failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(rpt, time.Since(startTime), analyzer.GetMetrics())
}

func stopSpinner(sp *spinner.Spinner) {
	if sp != nil {
		sp.Stop()
	}
}

func printSummary(rpt *models.Report, duration time.Duration, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Topical authority analysis complete")

	fmt.Printf("  Site:          %s\n", rpt.URL)
	fmt.Printf("  Pages:         %d (requests %d, errors %d)\n", rpt.TotalPages, rpt.Crawl.Requests, rpt.Crawl.ErrorCount)
	fmt.Printf("  Words:         %d\n", rpt.TotalWords)
	if len(rpt.Crawl.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", rpt.Crawl.ErrorsByType)
	}
	fmt.Printf("  Topics:        %d (outliers %d)\n", rpt.Metrics.TotalTopics, rpt.Metrics.Outliers)
	fmt.Printf("  Consistency:   %.2f\n", rpt.Metrics.TopicalConsistency)
	fmt.Printf("  Relevance:     %.2f\n", rpt.Metrics.SemanticRelevance)
	fmt.Printf("  Domain data:   %s\n", rpt.DomainMetrics.Status)

	if rpt.Authority != nil {
		fmt.Printf("  Score:         %.2f (%s)\n", rpt.Authority.Score, rpt.Authority.Grade)
		fmt.Printf("  Verdict:       %s\n", rpt.Authority.Interpretation)
	} else {
		fmt.Println("  Score:         n/a (no usable pages)")
	}

	for _, t := range rpt.Topics {
		phrases := make([]string, 0, len(t.Keyphrases))
		for _, k := range t.Keyphrases {
			phrases = append(phrases, k.Text)
		}
		fmt.Printf("  Topic %-3d      %d pages: %s\n", t.TopicID, t.DocumentCount, strings.Join(phrases, ", "))
	}

	if rpt.Insights != nil && rpt.Insights.Status == models.StatusSuccess && rpt.Insights.Summary != "" {
		fmt.Printf("  Insights:      %s\n", rpt.Insights.Summary)
	}
	for _, w := range rpt.Warnings {
		fmt.Printf("  Warning:       %s\n", w)
	}

	if stages, ok := metrics["stage_durations"].(map[string]time.Duration); ok && len(stages) > 0 {
		names := make([]string, 0, len(stages))
		for name := range stages {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, stages[name].Round(time.Millisecond)))
		}
		fmt.Printf("  Stages:        %s\n", strings.Join(parts, " "))
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if location, ok := metrics["report_location"].(string); ok && location != "" {
		fmt.Printf("  Report:        %s\n", location)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stderr) {
		charmLevel := charmlog.InfoLevel
		if verbose {
			charmLevel = charmlog.DebugLevel
		}
		handler = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmLevel,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
