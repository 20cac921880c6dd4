package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aluiziolira/go-topical-authority/models"
)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
}

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_seo_reports_table",
		Up: `
			CREATE TABLE IF NOT EXISTS seo_reports (
				id TEXT PRIMARY KEY,
				url TEXT NOT NULL,
				payload JSONB NOT NULL,
				score DOUBLE PRECISION,
				grade TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW()
			);
		`,
	},
	{
		Version: 2,
		Name:    "add_seo_reports_indexes",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_seo_reports_url ON seo_reports(url);
			CREATE INDEX IF NOT EXISTS idx_seo_reports_created_at ON seo_reports(created_at);
		`,
	},
}

const upsertReport = `
	INSERT INTO seo_reports (id, url, payload, score, grade, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		url = EXCLUDED.url,
		payload = EXCLUDED.payload,
		score = EXCLUDED.score,
		grade = EXCLUDED.grade
`

// PostgresSink stores reports in the seo_reports table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects to dsn and applies pending migrations.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresSink{db: conn}, nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }

// Save implements Sink.
func (s *PostgresSink) Save(ctx context.Context, r *models.Report) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	var score sql.NullFloat64
	var grade sql.NullString
	if r.Authority != nil {
		score = sql.NullFloat64{Float64: r.Authority.Score, Valid: true}
		grade = sql.NullString{String: r.Authority.Grade, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, upsertReport, r.ID, r.URL, payload, score, grade, r.AnalyzedAt); err != nil {
		return "", fmt.Errorf("upsert report: %w", err)
	}
	return "postgres:seo_reports/" + r.ID, nil
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS seo_schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		);
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM seo_schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range pendingMigrations(current) {
		if err := runMigration(ctx, db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
		slog.Info("applied migration", slog.Int("version", m.Version), slog.String("name", m.Name))
	}
	return nil
}

func pendingMigrations(current int) []Migration {
	sorted := make([]Migration, len(postgresMigrations))
	copy(sorted, postgresMigrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	var pending []Migration
	for _, m := range sorted {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending
}

func runMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO seo_schema_version (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
