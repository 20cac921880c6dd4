package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/gocolly/colly/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Result is a successfully fetched HTML page. Body is UTF-8 when ContentType
// declares a charset; otherwise the parser sniffs the encoding.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Elapsed     time.Duration
}

// Fetcher retrieves single pages through a shared colly backend.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     retryPolicy
	Metrics   *Metrics

	requestCount int64
	errorCount   int64
	retryCount   int64
}

// Option customises a Fetcher.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	registry  *prometheus.Registry
}

// WithTransport replaces the base HTTP transport. It is still wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithRegistry registers the fetch metrics on a shared registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New builds a fetcher configured from cfg.
func New(cfg *config.Config, opts ...Option) (*Fetcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt

	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(otelhttp.NewTransport(transport))

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			base:       cfg.RetryBackoff,
			max:        cfg.RetryBackoffMax,
		},
		Metrics: NewMetrics(o.registry),
	}, nil
}

// Fetch retrieves rawURL, retrying transient failures with exponential
// backoff. Redirects are followed and reported through FinalURL.
//
// Cancelling ctx stops a request before it is sent or once its headers
// arrive. The colly backend cannot interrupt a request waiting on headers,
// so that wait is bounded by the configured timeout instead.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return res, nil
		}

		category := ErrorLabel(err)
		atomic.AddInt64(&f.errorCount, 1)
		f.Metrics.IncError(category)

		if ctx.Err() != nil || !Retryable(err) || attempt >= f.retry.maxRetries {
			return nil, err
		}

		delay := f.retry.backoff(attempt + 1)
		atomic.AddInt64(&f.retryCount, 1)
		f.Metrics.IncRetries()
		slog.Debug("retrying fetch",
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, ErrTimeout{Err: err}
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout{Err: err}
	}

	c := f.collector.Clone()
	var (
		result   *Result
		fetchErr error
		start    time.Time
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		start = time.Now()
		atomic.AddInt64(&f.requestCount, 1)
		f.Metrics.IncRequest("started")
	})

	c.OnResponseHeaders(func(r *colly.Response) {
		if err := ctx.Err(); err != nil {
			fetchErr = ErrTimeout{Err: err}
			r.Request.Abort()
			return
		}
		if r.StatusCode >= http.StatusMultipleChoices {
			return
		}
		if ct := r.Headers.Get("Content-Type"); ct != "" && !isHTML(ct) {
			fetchErr = ErrContentType{ContentType: ct}
			r.Request.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		elapsed := time.Since(start)
		f.Metrics.ObserveResponse(elapsed, len(r.Body))
		f.Metrics.IncRequest("completed")

		contentType := r.Headers.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(r.Body)
			if !isHTML(contentType) {
				fetchErr = ErrContentType{ContentType: contentType}
				return
			}
		}
		result = &Result{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: normalizedContentType(contentType),
			Body:        r.Body,
			Elapsed:     elapsed,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if fetchErr != nil {
			return
		}
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = classifyError(err, statusCode)
	})

	visitErr := c.Visit(rawURL)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		if errors.Is(visitErr, colly.ErrRobotsTxtBlocked) {
			return nil, ErrForbidden{Err: visitErr}
		}
		if ctx.Err() != nil {
			return nil, ErrTimeout{Err: ctx.Err()}
		}
		return nil, classifyError(visitErr, 0)
	}
	if result == nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout{Err: ctx.Err()}
		}
		return nil, fmt.Errorf("fetch %s: no response", rawURL)
	}
	return result, nil
}

// Stats returns request, error and retry counters.
func (f *Fetcher) Stats() (requests, errs, retries int) {
	return int(atomic.LoadInt64(&f.requestCount)),
		int(atomic.LoadInt64(&f.errorCount)),
		int(atomic.LoadInt64(&f.retryCount))
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// normalizedContentType reports UTF-8 for responses whose declared charset
// colly has already transcoded.
func normalizedContentType(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if _, ok := params["charset"]; ok {
		return mediaType + "; charset=utf-8"
	}
	return mediaType
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{StatusCode: statusCode, Err: wrapped}
		case statusCode >= 203:
			return ErrStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
