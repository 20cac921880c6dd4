// Package crawler walks a site breadth-first and turns its pages into
// PageRecords.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/fetcher"
	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/aluiziolira/go-topical-authority/parser"
	"golang.org/x/time/rate"
)

// ErrInvalidSeed is returned for seed URLs that cannot start a crawl.
var ErrInvalidSeed = errors.New("crawler: invalid seed url")

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// Result is the outcome of one crawl.
type Result struct {
	Pages []*models.PageRecord
	Stats models.CrawlStats
}

// Crawler performs bounded breadth-first crawls over same-origin links.
// The frontier and visited set are owned by a single dispatcher goroutine;
// workers only fetch and parse.
type Crawler struct {
	cfg     *config.Config
	fetcher Fetcher
}

// New builds a crawler around f.
func New(cfg *config.Config, f Fetcher) *Crawler {
	return &Crawler{cfg: cfg, fetcher: f}
}

type job struct {
	seq int
	url string
}

type outcome struct {
	job
	finalURL string
	page     *models.PageRecord
	links    []string
	err      error
}

// Crawl visits seedURL and its same-origin links until maxPages records are
// collected, the frontier drains, the fetch budget runs out or ctx ends.
// An empty crawl is not an error.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxPages int) (*Result, error) {
	seed, err := normalizeSeed(seedURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		return nil, fmt.Errorf("max pages must be positive")
	}

	maxFetches := c.cfg.MaxFetches
	if maxFetches <= 0 {
		maxFetches = 10 * maxPages
	}
	workers := c.cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}

	limit := rate.Inf
	if c.cfg.Delay > 0 {
		limit = rate.Every(c.cfg.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan job)
	outcomes := make(chan outcome)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes <- c.process(ctx, limiter, j)
			}
		}()
	}

	stats := models.CrawlStats{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	origins := map[string]struct{}{origin(seed): {}}
	seen := map[string]struct{}{seed.String(): {}}
	visited := make(map[string]struct{})
	frontier := []string{seed.String()}
	type ranked struct {
		seq  int
		page *models.PageRecord
	}
	var accepted []ranked

	inFlight, dispatched := 0, 0
	stopping := false
	ctxDone := ctx.Done()

	for {
		canDispatch := !stopping &&
			len(frontier) > 0 &&
			dispatched < maxFetches &&
			len(accepted)+inFlight < maxPages
		if !canDispatch && inFlight == 0 {
			break
		}

		var sendCh chan<- job
		var next job
		if canDispatch {
			sendCh = jobs
			next = job{seq: dispatched, url: frontier[0]}
		}

		select {
		case sendCh <- next:
			frontier = frontier[1:]
			dispatched++
			inFlight++

		case out := <-outcomes:
			inFlight--
			stats.Requests++
			if out.err != nil {
				category := fetcher.ErrorLabel(out.err)
				stats.ErrorCount++
				stats.ErrorsByType[category]++
				stats.FailedURLs = append(stats.FailedURLs, out.url)
				slog.Warn("fetch failed",
					slog.String("url", out.url),
					slog.String("category", category),
					slog.Any("error", out.err),
				)
				continue
			}

			stats.Succeeded++
			visited[out.url] = struct{}{}
			if out.finalURL != "" {
				visited[out.finalURL] = struct{}{}
				seen[out.finalURL] = struct{}{}
				if out.seq == 0 {
					if final, err := url.Parse(out.finalURL); err == nil {
						origins[origin(final)] = struct{}{}
					}
				}
			}

			if out.page == nil {
				stats.ThinPages++
			} else if len(accepted) < maxPages {
				accepted = append(accepted, ranked{seq: out.seq, page: out.page})
			}

			for _, link := range out.links {
				if _, ok := seen[link]; ok {
					continue
				}
				u, err := url.Parse(link)
				if err != nil {
					continue
				}
				if _, ok := origins[origin(u)]; !ok {
					continue
				}
				seen[link] = struct{}{}
				frontier = append(frontier, link)
			}

		case <-ctxDone:
			stopping = true
			ctxDone = nil
		}
	}

	close(jobs)
	wg.Wait()

	stats.EndTime = time.Now()
	stats.Truncated = len(frontier) > 0 && (dispatched >= maxFetches || ctx.Err() != nil)

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].seq < accepted[j].seq })
	pages := make([]*models.PageRecord, len(accepted))
	for i, r := range accepted {
		pages[i] = r.page
	}

	slog.Info("crawl finished",
		slog.String("seed", seed.String()),
		slog.Int("pages", len(pages)),
		slog.Int("requests", stats.Requests),
		slog.Int("errors", stats.ErrorCount),
		slog.Int("visited", len(visited)),
		slog.Duration("duration", stats.Duration()),
	)

	return &Result{Pages: pages, Stats: stats}, nil
}

func (c *Crawler) process(ctx context.Context, limiter *rate.Limiter, j job) outcome {
	out := outcome{job: j}
	if err := limiter.Wait(ctx); err != nil {
		out.err = fetcher.ErrTimeout{Err: err}
		return out
	}

	res, err := c.fetcher.Fetch(ctx, j.url)
	if err != nil {
		out.err = err
		return out
	}
	out.finalURL = res.FinalURL

	base, err := url.Parse(res.FinalURL)
	if err != nil || res.FinalURL == "" {
		base, _ = url.Parse(j.url)
	}
	doc, err := parser.Extract(res.Body, res.ContentType, base)
	if err != nil {
		out.err = err
		return out
	}
	out.links = doc.Links

	page, err := parser.NewPageRecord(j.url, doc, c.cfg.ContentCap, c.cfg.MinContentLength)
	if err != nil {
		slog.Debug("skipping thin page", slog.String("url", j.url))
		return out
	}
	page.FinalURL = res.FinalURL
	out.page = page
	return out
}

func normalizeSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
