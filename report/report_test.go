package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-topical-authority/config"
	"github.com/aluiziolira/go-topical-authority/models"
)

func sampleAnalysis() *models.SiteAnalysis {
	return &models.SiteAnalysis{
		SeedURL: "https://www.coffee.test/",
		Pages: []*models.PageRecord{
			{URL: "https://www.coffee.test/"},
			{URL: "https://www.coffee.test/espresso"},
			{URL: "https://www.coffee.test/grinders"},
		},
		Topics: []models.TopicSummary{
			{
				TopicID:       0,
				DocumentCount: 2,
				Keyphrases:    []models.Keyphrase{{Text: "espresso", Score: 0.7}, {Text: "crema", Score: 0.5}},
				SampleURLs:    []string{"https://www.coffee.test/", "https://www.coffee.test/espresso"},
			},
		},
		TopicalConsistency: 1,
		SemanticRelevance:  0.82,
		Outliers:           1,
		Warnings:           []string{"topic 0: keyword extraction failed"},
	}
}

func sampleReport() *models.Report {
	score := &models.AuthorityScore{Score: 77.5, Grade: "B"}
	return Assemble(sampleAnalysis(), models.DomainMetrics{Status: models.StatusUnavailable}, score, nil, nil)
}

func TestAssemble(t *testing.T) {
	r := sampleReport()

	if r.ID == "" {
		t.Fatalf("report id not assigned")
	}
	if r.Domain != "coffee.test" {
		t.Fatalf("domain = %q", r.Domain)
	}
	if r.TotalPages != 3 || r.Metrics.TotalTopics != 1 || r.Metrics.Outliers != 1 {
		t.Fatalf("unexpected counts: %+v pages=%d", r.Metrics, r.TotalPages)
	}
	if r.Metrics.SemanticRelevance != 0.82 || r.Authority.Grade != "B" {
		t.Fatalf("metrics not copied: %+v", r)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v", r.Warnings)
	}

	other := sampleReport()
	if other.ID == r.ID {
		t.Fatalf("report ids should be unique")
	}
}

func TestAssembleEmptyAnalysis(t *testing.T) {
	r := Assemble(&models.SiteAnalysis{SeedURL: "https://empty.test"}, models.DomainMetrics{}, nil, nil, nil)
	if r.Authority != nil || r.TotalPages != 0 {
		t.Fatalf("empty analysis should carry no score: %+v", r)
	}
	if r.Topics == nil {
		t.Fatalf("topics should encode as an empty list")
	}
}

func TestFileSinkJSON(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	location, err := NewFileSink(dir, "json").Save(context.Background(), r)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != filepath.Join(dir, "report-"+r.ID+".json") {
		t.Fatalf("location = %q", location)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded models.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.ID != r.ID || decoded.Authority.Score != 77.5 || len(decoded.Topics) != 1 {
		t.Fatalf("decoded report mismatch: %+v", decoded)
	}
}

func TestFileSinkDual(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	location, err := NewFileSink(dir, "dual").Save(context.Background(), r)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	paths := strings.Split(location, ",")
	if len(paths) != 2 {
		t.Fatalf("dual output should write two files, got %q", location)
	}

	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want header plus one topic", len(records))
	}
	if records[0][0] != "report_id" || records[0][4] != "score" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[4] != "77.50" || row[5] != "B" || row[6] != "0" || row[8] != "espresso; crema" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestCSVWriterWithoutTopics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	r := Assemble(&models.SiteAnalysis{SeedURL: "https://solo.test"}, models.DomainMetrics{},
		&models.AuthorityScore{Score: 41, Grade: "F"}, nil, nil)
	if err := w.Write(r); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][5] != "F" || records[1][6] != "" {
		t.Fatalf("unexpected records: %v", records)
	}
}

type stubSink struct {
	name  string
	err   error
	saved int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Save(_ context.Context, r *models.Report) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved++
	return s.name + ":" + r.ID, nil
}

func TestFallbackSink(t *testing.T) {
	r := sampleReport()

	primary := &stubSink{name: "primary"}
	secondary := &stubSink{name: "secondary"}
	sink := &FallbackSink{Primary: primary, Secondary: secondary}
	if loc, err := sink.Save(context.Background(), r); err != nil || loc != "primary:"+r.ID {
		t.Fatalf("primary save: loc=%q err=%v", loc, err)
	}

	primary.err = errors.New("connection refused")
	loc, err := sink.Save(context.Background(), r)
	if err != nil || loc != "secondary:"+r.ID || secondary.saved != 1 {
		t.Fatalf("fallback save: loc=%q err=%v", loc, err)
	}

	secondary.err = errors.New("disk full")
	if _, err := sink.Save(context.Background(), r); err == nil ||
		!strings.Contains(err.Error(), "connection refused") || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("both failures should be reported, got %v", err)
	}
	if sink.Name() != "primary+secondary" {
		t.Fatalf("name = %q", sink.Name())
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkSave(t *testing.T) {
	r := sampleReport()
	r.AnalyzedAt = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	putter := &fakePutter{}
	sink := &S3Sink{client: putter, bucket: "reports-bucket"}

	loc, err := sink.Save(context.Background(), r)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	wantKey := "reports/2026/03/" + r.ID + ".json"
	if loc != "s3://reports-bucket/"+wantKey || *putter.input.Key != wantKey {
		t.Fatalf("loc=%q key=%q", loc, *putter.input.Key)
	}
	if *putter.input.ContentType != "application/json" || !json.Valid(putter.body) {
		t.Fatalf("unexpected upload body or content type")
	}

	putter.err = errors.New("access denied")
	if _, err := sink.Save(context.Background(), r); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestNewS3SinkRequiresBucket(t *testing.T) {
	if _, err := NewS3Sink(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	if _, err := NewS3Sink(context.Background(), S3Config{Bucket: "b"}); err == nil {
		t.Fatalf("expected error for missing region")
	}
}

func TestSupabaseSink(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://proj.supabase.test/rest/v1/seo_reports",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("apikey") != "service-key" ||
				req.Header.Get("Authorization") != "Bearer service-key" ||
				req.Header.Get("Prefer") != "return=representation" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"message":"invalid key"}`), nil
			}
			var row map[string]json.RawMessage
			if err := json.NewDecoder(req.Body).Decode(&row); err != nil {
				return nil, err
			}
			if _, ok := row["payload"]; !ok {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"missing payload"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusCreated, `[{}]`), nil
		})

	hc := &http.Client{Transport: transport}
	r := sampleReport()

	loc, err := NewSupabaseSink("https://proj.supabase.test/", "service-key", hc).Save(context.Background(), r)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if loc != "supabase:seo_reports/"+r.ID {
		t.Fatalf("loc = %q", loc)
	}

	_, err = NewSupabaseSink("https://proj.supabase.test", "wrong", hc).Save(context.Background(), r)
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestPendingMigrations(t *testing.T) {
	all := pendingMigrations(0)
	if len(all) != len(postgresMigrations) {
		t.Fatalf("pending = %d, want %d", len(all), len(postgresMigrations))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Version <= all[i-1].Version {
			t.Fatalf("migrations out of order at %d", i)
		}
	}
	if !strings.Contains(all[0].Up, "seo_reports") {
		t.Fatalf("first migration should create seo_reports")
	}
	if got := pendingMigrations(all[len(all)-1].Version); len(got) != 0 {
		t.Fatalf("no migrations should be pending, got %d", len(got))
	}
}

func TestNewSinkFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	sink, err := NewSink(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if sink.Name() != "file" {
		t.Fatalf("sink = %q", sink.Name())
	}

	cfg.Sink = "supabase"
	cfg.SupabaseURL = "https://proj.supabase.test"
	cfg.SupabaseKey = "k"
	sink, err = NewSink(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if sink.Name() != "supabase+file" {
		t.Fatalf("sink = %q", sink.Name())
	}
}
