// Package database is the PostgreSQL persistence layer for quality
// issues, review cycles, and prompt revisions.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
)

// Database wraps the PostgreSQL connection used by the review pipeline.
type Database struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and initializes the schema.
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	d := &Database{db: db}

	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// NewFromEnv builds the connection from POSTGRES_* environment
// variables. Used by tests and container deployments.
func NewFromEnv() (*Database, error) {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "homeai")
	password := envOr("POSTGRES_PASSWORD", "homeai")
	dbname := envOr("POSTGRES_DB", "homeai")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
	return New(dsn)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	n := 1
	out := strings.Builder{}
	for _, ch := range query {
		if ch == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// initSchema creates the tables used by the review pipeline. The
// tenants table is owned by the main backend; it is created here only
// so the service can run against an empty development database.
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS quality_issues (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		issue_category TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'medium',
		agent_name TEXT,
		tool_name TEXT,
		user_phone TEXT,
		message_in TEXT,
		message_out TEXT,
		error_code TEXT,
		error_message TEXT,
		stack_trace TEXT,
		qa_analysis TEXT,
		qa_suggestion TEXT,
		qa_confidence REAL,
		admin_insight TEXT,
		correlation_id TEXT,
		is_resolved BOOLEAN NOT NULL DEFAULT false,
		resolved_at TIMESTAMPTZ,
		resolved_by TEXT,
		resolution_notes TEXT,
		fix_status TEXT,
		fix_error TEXT,
		fix_result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS qa_review_cycles (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		period_start TIMESTAMPTZ NOT NULL,
		period_end TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		issues_analyzed_count INTEGER,
		improvements_applied_count INTEGER,
		analysis_result TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS prompt_revisions (
		id TEXT PRIMARY KEY,
		review_cycle_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		original_prompt TEXT NOT NULL,
		improved_prompt TEXT NOT NULL,
		improvement_reason TEXT,
		changes_summary TEXT,
		issues_addressed TEXT,
		confidence REAL,
		commit_sha TEXT,
		commit_url TEXT,
		is_rolled_back BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_quality_issues_tenant_created
		ON quality_issues(tenant_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_quality_issues_resolved
		ON quality_issues(is_resolved);
	CREATE INDEX IF NOT EXISTS idx_qa_review_cycles_tenant
		ON qa_review_cycles(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_prompt_revisions_tenant_agent
		ON prompt_revisions(tenant_id, agent_name, created_at);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
