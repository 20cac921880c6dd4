package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a Go duration ("750ms", "2s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// LoadEnv overlays environment variables onto cfg. Unset variables leave the
// existing value untouched.
func LoadEnv(cfg *Config) error {
	strs := map[string]*string{
		"SEO_SEED_URL":           &cfg.SeedURL,
		"SEO_USER_AGENT":         &cfg.UserAgent,
		"SEO_EMBEDDING_PROVIDER": &cfg.EmbeddingProvider,
		"SEO_EMBEDDING_URL":      &cfg.EmbeddingURL,
		"SEO_EMBEDDING_MODEL":    &cfg.EmbeddingModel,
		"SEO_REDUCER":            &cfg.Reducer,
		"SEO_REDUCER_URL":        &cfg.ReducerURL,
		"SEO_INSIGHTS_PROVIDER":  &cfg.InsightsProvider,
		"SEO_INSIGHTS_MODEL":     &cfg.InsightsModel,
		"SEO_INSIGHTS_URL":       &cfg.InsightsURL,
		"SEO_OUTPUT_DIR":         &cfg.OutputDir,
		"SEO_OUTPUT_FORMAT":      &cfg.OutputFormat,
		"SEO_SINK":               &cfg.Sink,
		"SEO_METRICS_ADDR":       &cfg.MetricsAddr,
		"SEO_RDAP_ENDPOINT":      &cfg.RDAPEndpoint,
		"MOZ_ACCESS_ID":          &cfg.MozAccessID,
		"MOZ_SECRET_KEY":         &cfg.MozSecretKey,
		"ANTHROPIC_API_KEY":      &cfg.AnthropicAPIKey,
		"OPENAI_API_KEY":         &cfg.OpenAIAPIKey,
		"EMBEDDING_API_KEY":      &cfg.EmbeddingAPIKey,
		"DATABASE_URL":           &cfg.DatabaseURL,
		"SUPABASE_URL":           &cfg.SupabaseURL,
		"SUPABASE_SERVICE_KEY":   &cfg.SupabaseKey,
		"S3_BUCKET":              &cfg.S3Bucket,
		"S3_ENDPOINT":            &cfg.S3Endpoint,
		"AWS_REGION":             &cfg.S3Region,
		"AWS_ACCESS_KEY_ID":      &cfg.S3AccessKeyID,
		"AWS_SECRET_ACCESS_KEY":  &cfg.S3SecretAccessKey,
	}
	for key, dst := range strs {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"SEO_MAX_PAGES":      &cfg.MaxPages,
		"SEO_MIN_TOPIC_SIZE": &cfg.MinTopicSize,
		"SEO_PARALLEL":       &cfg.Parallelism,
		"SEO_MAX_RETRIES":    &cfg.MaxRetries,
		"SEO_TOP_N":          &cfg.TopN,
		"SEO_EMBEDDING_DIM":  &cfg.EmbeddingDim,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"SEO_DELAY":          &cfg.Delay,
		"SEO_TIMEOUT":        &cfg.Timeout,
		"SEO_DOMAIN_TIMEOUT": &cfg.DomainTimeout,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvFloat("SEO_DIVERSITY"); err != nil {
		return err
	} else if ok {
		cfg.Diversity = value
	}
	if value, ok, err := EnvBool("SEO_RENDER"); err != nil {
		return err
	} else if ok {
		cfg.Render = value
	}
	if value, ok, err := EnvBool("SEO_RESPECT_ROBOTS"); err != nil {
		return err
	} else if ok {
		cfg.RespectRobotsTxt = value
	}
	if value, ok, err := EnvBool("S3_USE_PATH_STYLE"); err != nil {
		return err
	} else if ok {
		cfg.S3UsePathStyle = value
	}

	return nil
}
