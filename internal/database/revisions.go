package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// CreateRevision inserts a new prompt revision record and returns its
// ID. Revisions are immutable once written.
func (d *Database) CreateRevision(ctx context.Context, rev *models.PromptRevision) (string, error) {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}

	changesJSON, err := rev.ChangesJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal changes: %w", err)
	}
	issuesJSON, err := rev.IssuesAddressedJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal issues addressed: %w", err)
	}

	query := `
		INSERT INTO prompt_revisions (
			id, review_cycle_id, tenant_id, agent_name,
			original_prompt, improved_prompt, improvement_reason,
			changes_summary, issues_addressed, confidence,
			commit_sha, commit_url, is_rolled_back, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, rebind(query),
		rev.ID,
		rev.ReviewCycleID,
		rev.TenantID,
		rev.AgentName,
		rev.OriginalPrompt,
		rev.ImprovedPrompt,
		rev.ImprovementReason,
		string(changesJSON),
		string(issuesJSON),
		rev.Confidence,
		rev.CommitSHA,
		rev.CommitURL,
		rev.IsRolledBack,
		rev.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create prompt revision: %w", err)
	}
	return rev.ID, nil
}

// CountRecentRevisions returns how many non-rolled-back revisions exist
// for (tenant, agent) created at or after since. Used by the cooldown
// gate; always read fresh, never cached.
func (d *Database) CountRecentRevisions(ctx context.Context, tenantID, agentName string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM prompt_revisions
		WHERE tenant_id = ? AND agent_name = ?
		  AND created_at >= ? AND is_rolled_back = false
	`

	var count int
	err := d.db.QueryRowContext(ctx, rebind(query), tenantID, agentName, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent revisions: %w", err)
	}
	return count, nil
}

// ListRevisionsByCycle returns the revisions created by one review
// cycle, oldest-first.
func (d *Database) ListRevisionsByCycle(ctx context.Context, cycleID string) ([]*models.PromptRevision, error) {
	query := `
		SELECT id, review_cycle_id, tenant_id, agent_name,
		       original_prompt, improved_prompt, improvement_reason,
		       changes_summary, issues_addressed, confidence,
		       commit_sha, commit_url, is_rolled_back, created_at
		FROM prompt_revisions
		WHERE review_cycle_id = ?
		ORDER BY created_at ASC
	`

	rows, err := d.db.QueryContext(ctx, rebind(query), cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.PromptRevision
	for rows.Next() {
		rev := &models.PromptRevision{}
		var (
			reason, changesJSON, issuesJSON sql.NullString
			confidence                      sql.NullFloat64
			commitSHA, commitURL            sql.NullString
		)

		err := rows.Scan(
			&rev.ID,
			&rev.ReviewCycleID,
			&rev.TenantID,
			&rev.AgentName,
			&rev.OriginalPrompt,
			&rev.ImprovedPrompt,
			&reason,
			&changesJSON,
			&issuesJSON,
			&confidence,
			&commitSHA,
			&commitURL,
			&rev.IsRolledBack,
			&rev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt revision: %w", err)
		}

		rev.ImprovementReason = reason.String
		rev.Confidence = confidence.Float64
		rev.CommitSHA = commitSHA.String
		rev.CommitURL = commitURL.String
		if err := rev.SetChangesFromJSON([]byte(changesJSON.String)); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
		if err := rev.SetIssuesAddressedFromJSON([]byte(issuesJSON.String)); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues addressed: %w", err)
		}

		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}
