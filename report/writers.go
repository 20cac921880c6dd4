package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-topical-authority/models"
)

var csvHeader = []string{
	"report_id", "url", "domain", "analyzed_at", "score", "grade",
	"topic_id", "document_count", "keyphrases", "sample_urls",
}

// CSVWriter writes one row per topic of a report.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{file: f, writer: writer}, nil
}

// Write appends the topic rows of r. A report without topics still gets one
// row so the score is recorded.
func (cw *CSVWriter) Write(r *models.Report) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	score, grade := "", ""
	if r.Authority != nil {
		score = strconv.FormatFloat(r.Authority.Score, 'f', 2, 64)
		grade = r.Authority.Grade
	}
	prefix := []string{r.ID, r.URL, r.Domain, r.AnalyzedAt.Format(time.RFC3339), score, grade}

	var rows [][]string
	for _, t := range r.Topics {
		phrases := make([]string, 0, len(t.Keyphrases))
		for _, k := range t.Keyphrases {
			phrases = append(phrases, k.Text)
		}
		row := append(append([]string{}, prefix...),
			strconv.Itoa(t.TopicID),
			strconv.Itoa(t.DocumentCount),
			strings.Join(phrases, "; "),
			strings.Join(t.SampleURLs, " "),
		)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		rows = append(rows, append(append([]string{}, prefix...), "", "", "", ""))
	}

	if err := cw.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Name returns the output path.
func (cw *CSVWriter) Name() string { return cw.file.Name() }

// JSONWriter writes a report as indented JSON.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "  ")
	return &JSONWriter{file: f, writer: buffer, encoder: encoder}, nil
}

// Write encodes r.
func (jw *JSONWriter) Write(r *models.Report) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.encoder.Encode(r); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Name returns the output path.
func (jw *JSONWriter) Name() string { return jw.file.Name() }

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
