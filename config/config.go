package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds analyzer configuration.
type Config struct {
	SeedURL          string
	MaxPages         int
	MaxFetches       int // 0 means 10x MaxPages
	MinTopicSize     int
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	Render           bool
	MaxBodySize      int
	ContentCap       int
	MinContentLength int

	EmbeddingProvider  string // hashing, ollama, or openai
	EmbeddingURL       string
	EmbeddingModel     string
	EmbeddingAPIKey    string
	EmbeddingDim       int
	EmbeddingBatchSize int
	EmbeddingCacheSize int

	Reducer          string // pca or remote
	ReducerURL       string
	Components       int
	MaxNeighbors     int
	Seed             int64
	MinSamples       int
	OutlierThreshold float64

	TopN                int
	KeyphraseCandidates int
	Diversity           float64
	TopicTextCap        int

	MozAccessID   string
	MozSecretKey  string
	MozEndpoint   string
	RDAPEndpoint  string
	DomainTimeout time.Duration

	InsightsProvider string // none, claude, or openai
	InsightsModel    string
	InsightsURL      string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	InsightsInterval time.Duration

	OutputDir         string
	OutputFormat      string // csv, json, or dual
	Sink              string // file, postgres, s3, or supabase
	DatabaseURL       string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	SupabaseURL       string
	SupabaseKey       string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults suited to small marketing sites.
func DefaultConfig() *Config {
	return &Config{
		MaxPages:         20,
		MinTopicSize:     2,
		Parallelism:      4,
		Delay:            500 * time.Millisecond,
		RandomDelay:      0,
		Timeout:          10 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     200 * time.Millisecond,
		RetryBackoffMax:  2 * time.Second,
		UserAgent:        "Mozilla/5.0 (compatible; TopicalAuthorityBot/1.0; +https://github.com/aluiziolira/go-topical-authority)",
		RespectRobotsTxt: true,
		MaxBodySize:      5 << 20,
		ContentCap:       5000,
		MinContentLength: 50,

		EmbeddingProvider:  "hashing",
		EmbeddingModel:     "nomic-embed-text",
		EmbeddingDim:       384,
		EmbeddingBatchSize: 32,
		EmbeddingCacheSize: 4096,

		Reducer:          "pca",
		Components:       5,
		MaxNeighbors:     15,
		Seed:             42,
		OutlierThreshold: 0.9,

		TopN:                10,
		KeyphraseCandidates: 20,
		Diversity:           0.5,
		TopicTextCap:        10000,

		MozEndpoint:   "https://lsapi.seomoz.com/v2/url_metrics",
		RDAPEndpoint:  "https://rdap.org",
		DomainTimeout: 20 * time.Second,

		InsightsProvider: "none",
		InsightsInterval: time.Second,

		OutputDir:    "output",
		OutputFormat: "json",
		Sink:         "file",
		S3Region:     "us-east-1",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SeedURL != "" {
		parsedURL, err := url.Parse(c.SeedURL)
		if err != nil {
			return fmt.Errorf("invalid seed URL: %w", err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("seed URL must include a host")
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("seed URL scheme must be http or https")
		}
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.MaxFetches < 0 {
		return fmt.Errorf("max fetches cannot be negative")
	}
	if c.MinTopicSize < 2 {
		return fmt.Errorf("min topic size must be at least 2")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Timeout > 20*time.Second {
		return fmt.Errorf("timeout cannot exceed 20s")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ContentCap <= 0 {
		return fmt.Errorf("content cap must be positive")
	}
	if c.MinContentLength < 0 {
		return fmt.Errorf("min content length cannot be negative")
	}

	switch c.EmbeddingProvider {
	case "hashing":
		if c.EmbeddingDim <= 0 {
			return fmt.Errorf("embedding dim must be positive")
		}
	case "ollama", "openai":
		if c.EmbeddingURL == "" {
			return fmt.Errorf("embedding URL is required for %s embeddings", c.EmbeddingProvider)
		}
		if c.EmbeddingModel == "" {
			return fmt.Errorf("embedding model cannot be empty")
		}
	default:
		return fmt.Errorf("embedding provider must be hashing, ollama, or openai")
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive")
	}
	if c.EmbeddingCacheSize < 0 {
		return fmt.Errorf("embedding cache size cannot be negative")
	}

	switch c.Reducer {
	case "pca":
	case "remote":
		if c.ReducerURL == "" {
			return fmt.Errorf("reducer URL is required for the remote reducer")
		}
	default:
		return fmt.Errorf("reducer must be pca or remote")
	}
	if c.Components <= 0 {
		return fmt.Errorf("components must be positive")
	}
	if c.MaxNeighbors < 2 {
		return fmt.Errorf("max neighbors must be at least 2")
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("min samples cannot be negative")
	}
	if c.OutlierThreshold <= 0 || c.OutlierThreshold > 1 {
		return fmt.Errorf("outlier threshold must be in (0, 1]")
	}

	if c.TopN <= 0 {
		return fmt.Errorf("top n must be positive")
	}
	if c.KeyphraseCandidates < c.TopN {
		return fmt.Errorf("keyphrase candidates (%d) cannot be fewer than top n (%d)", c.KeyphraseCandidates, c.TopN)
	}
	if c.Diversity < 0 || c.Diversity > 1 {
		return fmt.Errorf("diversity must be in [0, 1]")
	}
	if c.TopicTextCap <= 0 {
		return fmt.Errorf("topic text cap must be positive")
	}
	if c.DomainTimeout <= 0 {
		return fmt.Errorf("domain timeout must be positive")
	}

	switch c.InsightsProvider {
	case "none", "":
	case "claude", "openai":
		if c.InsightsInterval < 0 {
			return fmt.Errorf("insights interval cannot be negative")
		}
	default:
		return fmt.Errorf("insights provider must be none, claude, or openai")
	}

	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	switch c.Sink {
	case "file":
		if c.OutputDir == "" {
			return fmt.Errorf("output dir cannot be empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres sink")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 sink")
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("supabase URL and key are required for the supabase sink")
		}
	default:
		return fmt.Errorf("sink must be file, postgres, s3, or supabase")
	}

	return nil
}
