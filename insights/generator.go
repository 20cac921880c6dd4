package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aluiziolira/go-topical-authority/models"
	"github.com/aluiziolira/go-topical-authority/parser"
	"golang.org/x/time/rate"
)

const systemPrompt = "You are an expert SEO consultant. Provide clear, actionable, data-driven " +
	"recommendations. Always respond in valid JSON format."

var jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Generator asks a provider for recommendations about a report.
type Generator struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewGenerator builds a generator that calls provider at most once per
// interval. A nil provider makes every result unavailable.
func NewGenerator(provider Provider, interval time.Duration) *Generator {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Generator{provider: provider, limiter: rate.NewLimiter(limit, 1)}
}

type modelNamer interface {
	Model() string
}

type structuredReply struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	QuickWins       []string `json:"quick_wins"`
}

// Generate never fails; problems are reported through the result status.
func (g *Generator) Generate(ctx context.Context, report *models.Report) *models.Insights {
	if g == nil || g.provider == nil || !g.provider.Available() {
		name := "none"
		if g != nil && g.provider != nil {
			name = g.provider.Name()
		}
		return &models.Insights{
			Provider: name,
			Status:   models.StatusUnavailable,
			Message:  "no text-generation provider configured",
		}
	}

	out := &models.Insights{Provider: g.provider.Name()}
	if m, ok := g.provider.(modelNamer); ok {
		out.Model = m.Model()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		out.Status = models.StatusError
		out.Message = err.Error()
		return out
	}

	reply, err := g.provider.Complete(ctx, systemPrompt, BuildPrompt(report))
	if err != nil {
		slog.Warn("insights generation failed",
			slog.String("provider", out.Provider),
			slog.Any("error", err),
		)
		out.Status = models.StatusError
		out.Message = err.Error()
		return out
	}

	out.Status = models.StatusSuccess
	out.Summary, out.Recommendations = ParseReply(reply)
	return out
}

// ParseReply extracts a summary and recommendations from a JSON reply,
// optionally wrapped in a ```json fence. Replies that are not JSON become
// the summary, truncated to 500 characters.
func ParseReply(reply string) (summary string, recommendations []string) {
	body := strings.TrimSpace(reply)
	if m := jsonFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var parsed structuredReply
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return parser.Truncate(reply, 500), nil
	}
	recommendations = parsed.Recommendations
	if len(recommendations) == 0 {
		recommendations = parsed.QuickWins
	}
	return parsed.Summary, recommendations
}

// BuildPrompt renders the fixed analysis prompt for report.
func BuildPrompt(r *models.Report) string {
	var b strings.Builder
	b.WriteString("Analyze this website's topical authority and provide actionable recommendations.\n\n")
	fmt.Fprintf(&b, "Website: %s\nPages analyzed: %d\n", r.URL, r.TotalPages)
	fmt.Fprintf(&b, "Topics: %d (outlier pages: %d)\n", r.Metrics.TotalTopics, r.Metrics.Outliers)
	fmt.Fprintf(&b, "Topical consistency: %.2f\nSemantic relevance: %.2f\n",
		r.Metrics.TopicalConsistency, r.Metrics.SemanticRelevance)

	if r.Authority != nil {
		fmt.Fprintf(&b, "Authority score: %.2f (%s)\n", r.Authority.Score, r.Authority.Grade)
	}

	dm := r.DomainMetrics
	b.WriteString("\nAuthority metrics:\n")
	fmt.Fprintf(&b, "- Domain Authority: %s\n", optional(dm.DomainAuthority))
	fmt.Fprintf(&b, "- Spam Score: %s\n", optional(dm.SpamScore))
	fmt.Fprintf(&b, "- Domain age (years): %s\n", optional(dm.DomainAgeYears))

	b.WriteString("\nTopics:\n")
	for _, t := range r.Topics {
		phrases := make([]string, 0, len(t.Keyphrases))
		for _, k := range t.Keyphrases {
			phrases = append(phrases, k.Text)
		}
		fmt.Fprintf(&b, "- Topic %d (%d pages): %s\n", t.TopicID, t.DocumentCount, strings.Join(phrases, ", "))
	}

	if len(r.Keywords) > 0 {
		fmt.Fprintf(&b, "\nTop keywords (of %d words):\n", r.TotalWords)
		for i, k := range r.Keywords {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %d occurrences (%.2f%%)\n", k.Keyword, k.Count, k.Percent)
		}
	}

	b.WriteString("\nRespond with a JSON object with the keys summary (2-3 sentences) and " +
		"recommendations (array of 5-7 prioritized actions).\n")
	return b.String()
}

func optional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}
