package scoring

import (
	"testing"

	"github.com/aluiziolira/go-topical-authority/models"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestComputeScenarios(t *testing.T) {
	tests := []struct {
		name        string
		relevance   float64
		consistency float64
		metrics     models.DomainMetrics
		wantScore   float64
		wantGrade   string
		wantBQ      float64
		wantAge     float64
	}{
		{
			name:        "no credentials",
			relevance:   0.8,
			consistency: 0.8,
			metrics:     models.DomainMetrics{Status: models.StatusUnavailable},
			wantScore:   70,
			wantGrade:   "B",
			wantBQ:      50,
			wantAge:     0,
		},
		{
			name:        "full metrics with age",
			relevance:   0.9,
			consistency: 0.9,
			metrics: models.DomainMetrics{
				Status:             models.StatusSuccess,
				DomainAuthority:    f64(60),
				SpamScore:          f64(10),
				RootDomainsLinking: i64(150),
				DomainAgeYears:     f64(5),
			},
			wantScore: 90.35,
			wantGrade: "A+",
			wantBQ:    61.05,
			wantAge:   10,
		},
		{
			name:        "provider error is neutral",
			relevance:   0.5,
			consistency: 0.5,
			metrics:     models.DomainMetrics{Status: models.StatusError, DomainAuthority: f64(99)},
			wantScore:   50,
			wantGrade:   "D",
			wantBQ:      50,
		},
		{
			name:        "success with absent fields",
			relevance:   0,
			consistency: 0,
			metrics:     models.DomainMetrics{Status: models.StatusSuccess},
			wantScore:   16.67,
			wantGrade:   "F",
			wantBQ:      50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.relevance, tt.consistency, tt.metrics)
			if got.Score != tt.wantScore {
				t.Fatalf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Grade != tt.wantGrade {
				t.Fatalf("grade = %q, want %q", got.Grade, tt.wantGrade)
			}
			if got.Components.BacklinkQuality != tt.wantBQ {
				t.Fatalf("backlink quality = %v, want %v", got.Components.BacklinkQuality, tt.wantBQ)
			}
			if got.Components.DomainAgeBonus != tt.wantAge {
				t.Fatalf("age bonus = %v, want %v", got.Components.DomainAgeBonus, tt.wantAge)
			}
			if got.Interpretation != Interpret(tt.wantGrade) {
				t.Fatalf("interpretation = %q", got.Interpretation)
			}
		})
	}
}

func TestComputeClampsAt100(t *testing.T) {
	got := Compute(1, 1, models.DomainMetrics{
		Status:             models.StatusSuccess,
		DomainAuthority:    f64(100),
		SpamScore:          f64(0),
		RootDomainsLinking: i64(1_000_000),
		DomainAgeYears:     f64(30),
	})
	if got.Score != 100 || got.Grade != "A+" {
		t.Fatalf("score = %v grade = %s, want 100 A+", got.Score, got.Grade)
	}
}

func TestGradeBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A+"}, {90, "A+"}, {89.99, "A"}, {80.0, "A"}, {79.99, "B"},
		{70, "B"}, {69.99, "C"}, {60, "C"}, {50, "D"}, {49.99, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.score); got != tt.want {
			t.Fatalf("GradeFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	base := func() models.DomainMetrics {
		return models.DomainMetrics{
			Status:             models.StatusSuccess,
			DomainAuthority:    f64(40),
			SpamScore:          f64(20),
			RootDomainsLinking: i64(30),
		}
	}

	prev := -1.0
	for _, r := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1} {
		s := Compute(r, 0.5, base()).Score
		if s < prev {
			t.Fatalf("score decreased as relevance rose to %v", r)
		}
		prev = s
	}

	prev = -1.0
	for _, c := range []float64{0, 0.3, 0.7, 1} {
		s := Compute(0.5, c, base()).Score
		if s < prev {
			t.Fatalf("score decreased as consistency rose to %v", c)
		}
		prev = s
	}

	prev = -1.0
	for _, da := range []float64{0, 25, 50, 100, 150} {
		m := base()
		m.DomainAuthority = f64(da)
		s := Compute(0.5, 0.5, m).Score
		if s < prev {
			t.Fatalf("score decreased as domain authority rose to %v", da)
		}
		prev = s
	}

	prev = 101.0
	for _, spam := range []float64{0, 10, 30, 50, 80} {
		m := base()
		m.SpamScore = f64(spam)
		s := Compute(0.5, 0.5, m).Score
		if s > prev {
			t.Fatalf("score increased as spam rose to %v", spam)
		}
		prev = s
	}
}

func TestAgeBonus(t *testing.T) {
	if AgeBonus(nil) != 0 || AgeBonus(f64(-1)) != 0 {
		t.Fatalf("unknown or negative age should give 0")
	}
	if AgeBonus(f64(2.5)) != 5 || AgeBonus(f64(12)) != 10 {
		t.Fatalf("age bonus scaling wrong")
	}
}

func TestScoreUsesAnalysis(t *testing.T) {
	analysis := &models.SiteAnalysis{SemanticRelevance: 0.8, TopicalConsistency: 0.8}
	if got := Score(analysis, models.DomainMetrics{Status: models.StatusUnavailable}); got.Score != 70 {
		t.Fatalf("score = %v, want 70", got.Score)
	}
	if got := Score(nil, models.DomainMetrics{}); got.Grade != "F" {
		t.Fatalf("nil analysis grade = %q", got.Grade)
	}
}
