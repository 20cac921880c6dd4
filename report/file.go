package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-topical-authority/models"
)

// FileSink writes reports into a directory as JSON, CSV, or both.
type FileSink struct {
	dir    string
	format string
}

// NewFileSink returns a sink writing into dir. format is json, csv, or dual.
func NewFileSink(dir, format string) *FileSink {
	if format == "" {
		format = "json"
	}
	return &FileSink{dir: dir, format: format}
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// Save implements Sink. For dual output the location lists both files.
func (s *FileSink) Save(_ context.Context, r *models.Report) (string, error) {
	base := filepath.Join(s.dir, "report-"+r.ID)

	var written []string
	if s.format == "json" || s.format == "dual" {
		path, err := writeJSON(base+".json", r)
		if err != nil {
			return "", err
		}
		written = append(written, path)
	}
	if s.format == "csv" || s.format == "dual" {
		path, err := writeCSV(base+".csv", r)
		if err != nil {
			return "", err
		}
		written = append(written, path)
	}
	if len(written) == 0 {
		return "", fmt.Errorf("unsupported output format %q", s.format)
	}
	return strings.Join(written, ","), nil
}

func writeJSON(path string, r *models.Report) (string, error) {
	w, err := NewJSONWriter(path)
	if err != nil {
		return "", err
	}
	if err := w.Write(r); err != nil {
		w.Close()
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("JSON close failed: %w", err)
	}
	return w.Name(), nil
}

func writeCSV(path string, r *models.Report) (string, error) {
	w, err := NewCSVWriter(path)
	if err != nil {
		return "", err
	}
	if err := w.Write(r); err != nil {
		w.Close()
		return "", fmt.Errorf("CSV write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("CSV close failed: %w", err)
	}
	return w.Name(), nil
}
