package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/go-topical-authority/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMozEndpoint is the Moz URL metrics API.
const DefaultMozEndpoint = "https://lsapi.seomoz.com/v2/url_metrics"

// MetricsProvider reports backlink authority for a registrable domain.
// Metrics never returns an error: failures are expressed through Status.
type MetricsProvider interface {
	Name() string
	Configured() bool
	Metrics(ctx context.Context, domain string) models.DomainMetrics
}

// Moz queries the Moz Links API with basic authentication.
type Moz struct {
	accessID   string
	secretKey  string
	endpoint   string
	httpClient *http.Client
}

// NewMoz returns a Moz provider. A nil client gets a traced default.
func NewMoz(accessID, secretKey, endpoint string, hc *http.Client) *Moz {
	if endpoint == "" {
		endpoint = DefaultMozEndpoint
	}
	if hc == nil {
		hc = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Moz{accessID: accessID, secretKey: secretKey, endpoint: endpoint, httpClient: hc}
}

// Name implements MetricsProvider.
func (m *Moz) Name() string { return "moz" }

// Configured reports whether both credentials are present.
func (m *Moz) Configured() bool {
	return m.accessID != "" && m.secretKey != ""
}

type mozRequest struct {
	Targets []string `json:"targets"`
}

type mozResult struct {
	DomainAuthority           *float64 `json:"domain_authority"`
	PageAuthority             *float64 `json:"page_authority"`
	SpamScore                 *float64 `json:"spam_score"`
	RootDomainsToRootDomain   *int64   `json:"root_domains_to_root_domain"`
	ExternalLinksToRootDomain *int64   `json:"external_links_to_root_domain"`
}

type mozResponse struct {
	Results []mozResult `json:"results"`
}

// Metrics implements MetricsProvider.
func (m *Moz) Metrics(ctx context.Context, domain string) models.DomainMetrics {
	out := models.DomainMetrics{Domain: domain, Provider: m.Name()}
	if !m.Configured() {
		out.Status = models.StatusUnavailable
		out.Message = "MOZ_ACCESS_ID or MOZ_SECRET_KEY not configured"
		return out
	}

	result, err := m.fetch(ctx, domain)
	if err != nil {
		out.Status = models.StatusError
		out.Message = err.Error()
		return out
	}

	out.Status = models.StatusSuccess
	out.DomainAuthority = result.DomainAuthority
	out.PageAuthority = result.PageAuthority
	out.SpamScore = result.SpamScore
	out.RootDomainsLinking = result.RootDomainsToRootDomain
	out.ExternalLinks = result.ExternalLinksToRootDomain
	return out
}

func (m *Moz) fetch(ctx context.Context, domain string) (*mozResult, error) {
	body, err := json.Marshal(mozRequest{Targets: []string{domain}})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(m.accessID, m.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, errors.New("request timeout")
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, errors.New("authentication failed")
	case http.StatusTooManyRequests:
		return nil, errors.New("rate limit exceeded")
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded mozResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, errors.New("no results returned")
	}
	return &decoded.Results[0], nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
