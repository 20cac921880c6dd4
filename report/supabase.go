package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aluiziolira/go-topical-authority/models"
)

// SupabaseSink inserts reports into the seo_reports table over the REST API.
type SupabaseSink struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewSupabaseSink creates a sink for the project at baseURL, authenticated
// with a service key.
func NewSupabaseSink(baseURL, key string, hc *http.Client) *SupabaseSink {
	if hc == nil {
		hc = &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &SupabaseSink{baseURL: strings.TrimRight(baseURL, "/"), key: key, client: hc}
}

// Name implements Sink.
func (s *SupabaseSink) Name() string { return "supabase" }

type supabaseRow struct {
	ID      string         `json:"id"`
	Payload *models.Report `json:"payload"`
}

// Save implements Sink.
func (s *SupabaseSink) Save(ctx context.Context, r *models.Report) (string, error) {
	body, err := json.Marshal(supabaseRow{ID: r.ID, Payload: r})
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/seo_reports", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("supabase insert failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return "supabase:seo_reports/" + r.ID, nil
}
