package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for analysis runs.
type Metrics struct {
	Registry      *prometheus.Registry
	StageDuration *prometheus.HistogramVec
	PagesCrawled  prometheus.Counter
	TopicsFound   prometheus.Gauge
	Score         prometheus.Gauge
	RunsTotal     *prometheus.CounterVec
}

// NewMetrics constructs the run metrics and registers them on registry.
// A nil registry gets a dedicated one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seo_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seo_pages_crawled_total",
			Help: "Total usable pages crawled.",
		},
	)
	topics := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seo_topics_found",
			Help: "Topics found by the last analysis.",
		},
	)
	score := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seo_authority_score",
			Help: "Authority score of the last run.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_runs_total",
			Help: "Total analysis runs by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(stageDuration, pages, topics, score, runs)

	return &Metrics{
		Registry:      registry,
		StageDuration: stageDuration,
		PagesCrawled:  pages,
		TopicsFound:   topics,
		Score:         score,
		RunsTotal:     runs,
	}
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddPages increments the crawled pages counter.
func (m *Metrics) AddPages(n int) {
	if m == nil {
		return
	}
	m.PagesCrawled.Add(float64(n))
}

// SetTopics records the topic count of an analysis.
func (m *Metrics) SetTopics(n int) {
	if m == nil {
		return
	}
	m.TopicsFound.Set(float64(n))
}

// SetScore records the authority score of a run.
func (m *Metrics) SetScore(score float64) {
	if m == nil {
		return
	}
	m.Score.Set(score)
}

// IncRun increments the runs counter for outcome.
func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// snapshot keeps the figures the CLI summary prints.
type snapshot struct {
	mu             sync.Mutex
	pages          int
	topics         int
	outliers       int
	warnings       int
	score          float64
	grade          string
	reportLocation string
	stages         map[string]time.Duration
}

func newSnapshot() *snapshot {
	return &snapshot{stages: make(map[string]time.Duration)}
}

func (s *snapshot) addStage(stage string, d time.Duration) {
	s.mu.Lock()
	s.stages[stage] += d
	s.mu.Unlock()
}

func (s *snapshot) update(fn func(s *snapshot)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func (s *snapshot) values() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stages := make(map[string]time.Duration, len(s.stages))
	for k, v := range s.stages {
		stages[k] = v
	}

	return map[string]interface{}{
		"pages_crawled":   s.pages,
		"topics_found":    s.topics,
		"outliers":        s.outliers,
		"warnings":        s.warnings,
		"authority_score": s.score,
		"grade":           s.grade,
		"report_location": s.reportLocation,
		"stage_durations": stages,
	}
}
