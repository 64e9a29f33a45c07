package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

const issueColumns = `id, tenant_id, issue_type, issue_category, severity,
	agent_name, tool_name, user_phone, message_in, message_out,
	error_code, error_message, stack_trace,
	qa_analysis, qa_suggestion, qa_confidence,
	admin_insight, correlation_id,
	is_resolved, resolved_at, resolved_by, resolution_notes,
	fix_status, fix_error, fix_result, created_at`

// CreateIssue inserts a new quality issue and returns its ID.
func (d *Database) CreateIssue(ctx context.Context, issue *models.QualityIssue) (string, error) {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO quality_issues (
			id, tenant_id, issue_type, issue_category, severity,
			agent_name, tool_name, user_phone, message_in, message_out,
			error_code, error_message, stack_trace,
			qa_analysis, qa_suggestion, qa_confidence,
			admin_insight, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		issue.ID,
		issue.TenantID,
		issue.IssueType,
		issue.Category,
		issue.Severity,
		nullString(issue.AgentName),
		nullString(issue.ToolName),
		nullString(issue.UserPhone),
		nullString(issue.MessageIn),
		nullString(issue.MessageOut),
		nullString(issue.ErrorCode),
		nullString(issue.ErrorMessage),
		nullString(issue.StackTrace),
		nullString(issue.QAAnalysis),
		nullString(issue.QASuggestion),
		issue.QAConfidence,
		nullString(issue.AdminInsight),
		nullString(issue.CorrelationID),
		issue.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create quality issue: %w", err)
	}
	return issue.ID, nil
}

// FetchUnresolvedIssues returns the unresolved quality issues for a
// tenant created at or after since, ordered newest-first.
func (d *Database) FetchUnresolvedIssues(ctx context.Context, tenantID string, since time.Time) ([]*models.QualityIssue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM quality_issues
		WHERE tenant_id = ?
		  AND is_resolved = false
		  AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := d.db.QueryContext(ctx, rebind(query), tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unresolved issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.QualityIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// GetIssue retrieves a single quality issue by ID.
func (d *Database) GetIssue(ctx context.Context, id string) (*models.QualityIssue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM quality_issues
		WHERE id = ?
	`

	row := d.db.QueryRowContext(ctx, rebind(query), id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quality issue not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// SetFixStatus updates the fix-tracking fields of an issue.
func (d *Database) SetFixStatus(ctx context.Context, id string, status models.FixStatus, fixErr string) error {
	query := `
		UPDATE quality_issues
		SET fix_status = ?, fix_error = ?
		WHERE id = ?
	`

	_, err := d.db.ExecContext(ctx, rebind(query), status, nullString(fixErr), id)
	if err != nil {
		return fmt.Errorf("failed to update fix status: %w", err)
	}
	return nil
}

// CompleteFix marks an issue's fix as completed and the issue itself as
// resolved, recording who resolved it and the serialized fix result.
func (d *Database) CompleteFix(ctx context.Context, id, fixResult, resolvedBy, notes string) error {
	query := `
		UPDATE quality_issues
		SET fix_status = ?,
		    fix_error = NULL,
		    fix_result = ?,
		    is_resolved = true,
		    resolved_at = ?,
		    resolved_by = ?,
		    resolution_notes = ?
		WHERE id = ?
	`

	result, err := d.db.ExecContext(ctx, rebind(query),
		models.FixStatusCompleted,
		fixResult,
		time.Now().UTC(),
		resolvedBy,
		notes,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete fix: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("quality issue not found: %s", id)
	}
	return nil
}

// scanner abstracts over *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(s scanner) (*models.QualityIssue, error) {
	issue := &models.QualityIssue{}
	var (
		agentName, toolName, userPhone       sql.NullString
		messageIn, messageOut                sql.NullString
		errorCode, errorMessage, stackTrace  sql.NullString
		qaAnalysis, qaSuggestion             sql.NullString
		qaConfidence                         sql.NullFloat64
		adminInsight, correlationID          sql.NullString
		resolvedAt                           sql.NullTime
		resolvedBy, resolutionNotes          sql.NullString
		fixStatus, fixError, fixResult       sql.NullString
	)

	err := s.Scan(
		&issue.ID,
		&issue.TenantID,
		&issue.IssueType,
		&issue.Category,
		&issue.Severity,
		&agentName,
		&toolName,
		&userPhone,
		&messageIn,
		&messageOut,
		&errorCode,
		&errorMessage,
		&stackTrace,
		&qaAnalysis,
		&qaSuggestion,
		&qaConfidence,
		&adminInsight,
		&correlationID,
		&issue.IsResolved,
		&resolvedAt,
		&resolvedBy,
		&resolutionNotes,
		&fixStatus,
		&fixError,
		&fixResult,
		&issue.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan quality issue: %w", err)
	}

	issue.AgentName = agentName.String
	issue.ToolName = toolName.String
	issue.UserPhone = userPhone.String
	issue.MessageIn = messageIn.String
	issue.MessageOut = messageOut.String
	issue.ErrorCode = errorCode.String
	issue.ErrorMessage = errorMessage.String
	issue.StackTrace = stackTrace.String
	issue.QAAnalysis = qaAnalysis.String
	issue.QASuggestion = qaSuggestion.String
	issue.QAConfidence = qaConfidence.Float64
	issue.AdminInsight = adminInsight.String
	issue.CorrelationID = correlationID.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		issue.ResolvedAt = &t
	}
	issue.ResolvedBy = resolvedBy.String
	issue.ResolutionNotes = resolutionNotes.String
	issue.FixStatus = models.FixStatus(fixStatus.String)
	issue.FixError = fixError.String
	issue.FixResult = fixResult.String

	return issue, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
