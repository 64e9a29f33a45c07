package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// CreateCycle inserts a new review cycle in the running state and
// returns its ID.
func (d *Database) CreateCycle(ctx context.Context, cycle *models.ReviewCycle) (string, error) {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.CreatedAt.IsZero() {
		cycle.CreatedAt = time.Now().UTC()
	}
	cycle.Status = models.CycleStatusRunning

	query := `
		INSERT INTO qa_review_cycles (
			id, tenant_id, triggered_by, period_start, period_end,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		cycle.ID,
		cycle.TenantID,
		cycle.TriggeredBy,
		cycle.PeriodStart,
		cycle.PeriodEnd,
		cycle.Status,
		cycle.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create review cycle: %w", err)
	}
	return cycle.ID, nil
}

// CompleteCycle marks a cycle as completed with its final counts and
// the serialized analysis result. This is the cycle's single terminal
// update on the success path.
func (d *Database) CompleteCycle(ctx context.Context, cycleID string, issuesCount, improvementsCount int, analysisJSON string) error {
	query := `
		UPDATE qa_review_cycles
		SET status = ?,
		    issues_analyzed_count = ?,
		    improvements_applied_count = ?,
		    analysis_result = ?,
		    completed_at = ?
		WHERE id = ?
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		models.CycleStatusCompleted,
		issuesCount,
		improvementsCount,
		analysisJSON,
		time.Now().UTC(),
		cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete review cycle: %w", err)
	}
	return nil
}

// FailCycle marks a cycle as failed with the captured error text. This
// is the cycle's single terminal update on the failure path.
func (d *Database) FailCycle(ctx context.Context, cycleID, errMsg string) error {
	query := `
		UPDATE qa_review_cycles
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		models.CycleStatusFailed,
		errMsg,
		time.Now().UTC(),
		cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark review cycle failed: %w", err)
	}
	return nil
}

// GetCycle retrieves a review cycle by ID.
func (d *Database) GetCycle(ctx context.Context, id string) (*models.ReviewCycle, error) {
	query := `
		SELECT id, tenant_id, triggered_by, period_start, period_end,
		       status, issues_analyzed_count, improvements_applied_count,
		       analysis_result, error_message, created_at, completed_at
		FROM qa_review_cycles
		WHERE id = ?
	`

	cycle := &models.ReviewCycle{}
	var (
		issuesCount, improvementsCount sql.NullInt64
		analysisResult, errorMessage   sql.NullString
		completedAt                    sql.NullTime
	)

	err := d.db.QueryRowContext(ctx, rebind(query), id).Scan(
		&cycle.ID,
		&cycle.TenantID,
		&cycle.TriggeredBy,
		&cycle.PeriodStart,
		&cycle.PeriodEnd,
		&cycle.Status,
		&issuesCount,
		&improvementsCount,
		&analysisResult,
		&errorMessage,
		&cycle.CreatedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review cycle not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review cycle: %w", err)
	}

	cycle.IssuesAnalyzed = int(issuesCount.Int64)
	cycle.ImprovementsApplied = int(improvementsCount.Int64)
	cycle.AnalysisResult = analysisResult.String
	cycle.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		cycle.CompletedAt = &t
	}

	return cycle, nil
}
