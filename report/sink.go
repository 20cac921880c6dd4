package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/models"
)

// Sink persists reports.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Save stores r and returns where it went.
	Save(ctx context.Context, r *models.Report) (string, error)
}

// FallbackSink saves through Primary and, when that fails, through Secondary.
type FallbackSink struct {
	Primary   Sink
	Secondary Sink
}

// Name implements Sink.
func (f *FallbackSink) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Save implements Sink.
func (f *FallbackSink) Save(ctx context.Context, r *models.Report) (string, error) {
	location, err := f.Primary.Save(ctx, r)
	if err == nil {
		return location, nil
	}
	slog.Warn("primary sink failed, using fallback",
		slog.String("sink", f.Primary.Name()),
		slog.String("fallback", f.Secondary.Name()),
		slog.Any("error", err),
	)

	location, secondaryErr := f.Secondary.Save(ctx, r)
	if secondaryErr != nil {
		return "", errors.Join(err, secondaryErr)
	}
	return location, nil
}

// NewSink builds the sink selected by cfg. Remote sinks fall back to the
// file sink.
func NewSink(ctx context.Context, cfg *config.Config) (Sink, error) {
	file := NewFileSink(cfg.OutputDir, cfg.OutputFormat)

	var primary Sink
	switch cfg.Sink {
	case "file", "":
		return file, nil
	case "postgres":
		pg, err := NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		primary = pg
	case "s3":
		s3Sink, err := NewS3Sink(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		primary = s3Sink
	case "supabase":
		primary = NewSupabaseSink(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	return &FallbackSink{Primary: primary, Secondary: file}, nil
}
