package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/jarcoal/httpmock"
)

type stubProvider struct {
	available bool
	reply     string
	err       error
	prompts   []string
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Complete(_ context.Context, _, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func testReport() *models.Report {
	return &models.Report{
		URL:        "https://site.test",
		TotalPages: 5,
		Topics: []models.TopicSummary{
			{TopicID: 0, DocumentCount: 5, Keyphrases: []models.Keyphrase{{Text: "espresso", Score: 0.8}}},
		},
		Authority: &models.AuthorityScore{Score: 70, Grade: "B"},
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		summary  string
		nRecs    int
		firstRec string
	}{
		{
			name:     "fenced json",
			reply:    "Here you go:\n```json\n{\"summary\": \"Focused site.\", \"recommendations\": [\"Add guides\", \"Earn links\"]}\n```",
			summary:  "Focused site.",
			nRecs:    2,
			firstRec: "Add guides",
		},
		{
			name:     "raw json with quick wins",
			reply:    `{"summary": "ok", "quick_wins": ["Fix titles"]}`,
			summary:  "ok",
			nRecs:    1,
			firstRec: "Fix titles",
		},
		{
			name:    "plain text",
			reply:   "The site is fine.",
			summary: "The site is fine.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, recs := ParseReply(tt.reply)
			if summary != tt.summary || len(recs) != tt.nRecs {
				t.Fatalf("summary=%q recs=%v", summary, recs)
			}
			if tt.nRecs > 0 && recs[0] != tt.firstRec {
				t.Fatalf("first rec = %q", recs[0])
			}
		})
	}

	long := strings.Repeat("x", 900)
	if summary, _ := ParseReply(long); len(summary) != 500 {
		t.Fatalf("plain text summary not truncated: %d", len(summary))
	}
}

func TestGenerateStatuses(t *testing.T) {
	unavailable := NewGenerator(&stubProvider{}, 0).Generate(context.Background(), testReport())
	if unavailable.Status != models.StatusUnavailable {
		t.Fatalf("status = %s, want unavailable", unavailable.Status)
	}
	if none := NewGenerator(nil, 0).Generate(context.Background(), testReport()); none.Provider != "none" {
		t.Fatalf("provider = %q", none.Provider)
	}

	failing := NewGenerator(&stubProvider{available: true, err: errors.New("quota")}, 0).
		Generate(context.Background(), testReport())
	if failing.Status != models.StatusError || failing.Message != "quota" {
		t.Fatalf("failing = %+v", failing)
	}

	stub := &stubProvider{available: true, reply: `{"summary":"s","recommendations":["r"]}`}
	ok := NewGenerator(stub, 0).Generate(context.Background(), testReport())
	if ok.Status != models.StatusSuccess || ok.Summary != "s" || ok.Recommendations[0] != "r" {
		t.Fatalf("ok = %+v", ok)
	}
	if !strings.Contains(stub.prompts[0], "espresso") || !strings.Contains(stub.prompts[0], "70.00 (B)") {
		t.Fatalf("prompt missing report data: %s", stub.prompts[0])
	}
}

func TestClaudeAPIComplete(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", anthropicAPIURL,
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("x-api-key") != "key" || req.Header.Get("anthropic-version") != anthropicAPIVersion {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":{"message":"bad key"}}`), nil
			}
			var body claudeRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			if body.System == "" || body.Messages[0].Role != "user" {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":{"message":"bad body"}}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"content":[{"type":"text","text":"hello "},{"type":"tool_use"},{"type":"text","text":"world"}]}`), nil
		})

	c := NewClaudeAPI("key", "", &http.Client{Transport: transport})
	got, err := c.Complete(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("reply = %q", got)
	}

	bad := NewClaudeAPI("wrong", "", &http.Client{Transport: transport})
	if _, err := bad.Complete(context.Background(), "system", "prompt"); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestOpenAICompatibleComplete(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "http://llama.test:8080/v1/chat/completions",
		httpmock.NewStringResponder(http.StatusOK,
			`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"fine\"}"}}]}`))

	o := NewOpenAICompatible("http://llama.test:8080/", "", "local", &http.Client{Transport: transport})
	if !o.Available() {
		t.Fatalf("local server without key should be available")
	}
	got, err := o.Complete(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != `{"summary":"fine"}` {
		t.Fatalf("reply = %q", got)
	}

	if NewOpenAICompatible("", "", "", nil).Available() {
		t.Fatalf("hosted OpenAI without key should be unavailable")
	}
}
