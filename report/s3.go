package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aluiziolira/go-topical-authority/models"
)

// S3Config contains S3 storage configuration.
type S3Config struct {
	Endpoint        string // optional, for MinIO or Spaces
	Region          string
	Bucket          string
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
	UsePathStyle    bool
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads reports as JSON objects.
type S3Sink struct {
	client objectPutter
	bucket string
}

// NewS3Sink creates an S3 client from cfg.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Sink{client: client, bucket: cfg.Bucket}, nil
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

// Save implements Sink.
func (s *S3Sink) Save(ctx context.Context, r *models.Report) (string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	key := ObjectKey(r)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// ObjectKey returns reports/YYYY/MM/<id>.json for the report's analysis time.
func ObjectKey(r *models.Report) string {
	t := r.AnalyzedAt.UTC()
	return path.Join("reports", fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), r.ID+".json")
}
