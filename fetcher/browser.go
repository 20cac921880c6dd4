package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome for sites that build their
// content client-side. It satisfies the same contract as Fetcher.
type BrowserFetcher struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
	retry      retryPolicy
	settle     time.Duration
	// render performs one attempt; tests replace it.
	render func(ctx context.Context, rawURL string) (*Result, error)
}

// NewBrowserFetcher starts a headless browser shared by all fetches.
func NewBrowserFetcher(cfg *config.Config) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Headless,
		chromedp.DisableGPU,
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b := &BrowserFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		timeout: cfg.Timeout,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			base:       cfg.RetryBackoff,
			max:        cfg.RetryBackoffMax,
		},
		settle: 500 * time.Millisecond,
	}
	b.render = b.renderPage
	return b, nil
}

// Fetch navigates a fresh tab to rawURL and returns the rendered DOM.
// Error statuses of the main document fail the fetch like they do for
// Fetcher; only retryable failures are attempted again.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := b.render(ctx, rawURL)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || attempt >= b.retry.maxRetries || !Retryable(err) {
			return nil, err
		}
		if err := sleep(ctx, b.retry.backoff(attempt+1)); err != nil {
			return nil, ErrTimeout{Err: err}
		}
	}
}

func (b *BrowserFetcher) renderPage(ctx context.Context, rawURL string) (*Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	timeoutCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	resp, err := chromedp.RunResponse(timeoutCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return nil, classifyError(err, 0)
	}
	if resp == nil {
		return nil, fmt.Errorf("render %s: no document response", rawURL)
	}
	if err := checkDocument(int(resp.Status), resp.MimeType); err != nil {
		return nil, err
	}

	var location, pageHTML string
	err = chromedp.Run(timeoutCtx,
		chromedp.Sleep(b.settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &pageHTML),
	)
	if err != nil {
		return nil, classifyError(err, 0)
	}

	return &Result{
		URL:         rawURL,
		FinalURL:    location,
		StatusCode:  int(resp.Status),
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(pageHTML),
		Elapsed:     time.Since(start),
	}, nil
}

// checkDocument rejects non-2xx and non-HTML main documents.
func checkDocument(status int, mimeType string) error {
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		if err := classifyError(nil, status); err != nil {
			return err
		}
		return ErrStatus{StatusCode: status, Err: fmt.Errorf("http status %d", status)}
	}
	if mimeType != "" && !isHTML(mimeType) {
		return ErrContentType{ContentType: mimeType}
	}
	return nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
