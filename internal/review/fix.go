package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// fixTriggeredBy marks cycles and resolutions originating from the
// single-issue fix endpoint.
const fixTriggeredBy = "admin-fix"

// FixSingleIssue runs a targeted patch attempt for one issue, outside
// the batch gates. The issue is marked resolved only after a revision
// was actually committed; every other outcome leaves it unresolved
// with a recorded fix error, and the tracking cycle always reaches a
// terminal state.
func (r *Reviewer) FixSingleIssue(ctx context.Context, issueID string) (*models.PromptRevision, error) {
	ctx, span := tracer.Start(ctx, "review.fix_issue", trace.WithAttributes(
		attribute.String("issue_id", issueID),
	))
	defer span.End()

	if err := r.issues.SetFixStatus(ctx, issueID, models.FixStatusInProgress, ""); err != nil {
		return nil, fmt.Errorf("failed to mark issue %s in progress: %w", issueID, err)
	}

	issue, err := r.issues.GetIssue(ctx, issueID)
	if err != nil {
		err = fmt.Errorf("failed to load issue %s: %w", issueID, err)
		r.failFix(issueID, err)
		return nil, err
	}

	now := time.Now().UTC()
	cycleID, err := r.cycles.CreateCycle(ctx, &models.ReviewCycle{
		TenantID:    issue.TenantID,
		TriggeredBy: fixTriggeredBy,
		PeriodStart: now,
		PeriodEnd:   now,
	})
	if err != nil {
		err = fmt.Errorf("failed to create fix cycle: %w", err)
		r.failFix(issueID, err)
		return nil, err
	}

	if issue.AgentName == "" {
		err := fmt.Errorf("issue %s has no associated agent name, cannot target a prompt", issueID)
		r.failCycle(cycleID, err)
		r.failFix(issueID, err)
		return nil, err
	}

	rev, err := r.improveAgentPrompt(ctx, cycleID, issue.TenantID, issue.AgentName, []*models.QualityIssue{issue}, buildFixProposals(issue), fixTriggeredBy)
	if err != nil {
		r.failCycle(cycleID, err)
		r.failFix(issueID, err)
		return nil, err
	}
	if rev == nil {
		if cerr := r.cycles.CompleteCycle(ctx, cycleID, 1, 0, `{"message":"no prompt change needed"}`); cerr != nil {
			log.Printf("[Review] failed to complete fix cycle %s: %v", cycleID, cerr)
		}
		err := fmt.Errorf("model produced no applicable prompt change for issue %s", issueID)
		r.failFix(issueID, err)
		return nil, err
	}

	if cerr := r.cycles.CompleteCycle(ctx, cycleID, 1, 1, `{"fix_applied":true}`); cerr != nil {
		log.Printf("[Review] failed to complete fix cycle %s: %v", cycleID, cerr)
	}

	fixResult, merr := json.Marshal(rev.Summary())
	if merr != nil {
		fixResult = []byte(`{}`)
	}
	notes := fmt.Sprintf("Fix applied via prompt revision %s (commit %s)", rev.ID, rev.CommitSHA)
	if err := r.issues.CompleteFix(ctx, issueID, string(fixResult), fixTriggeredBy, notes); err != nil {
		return rev, fmt.Errorf("revision %s committed but issue %s resolution failed: %w", rev.ID, issueID, err)
	}

	log.Printf("[Review] issue %s fixed via revision %s agent=%s", issueID, rev.ID, issue.AgentName)
	return rev, nil
}

// buildFixProposals synthesizes a proposals block from the issue's own
// QA evidence, standing in for the batch diagnostic stage.
func buildFixProposals(issue *models.QualityIssue) string {
	var b []byte
	b = fmt.Appendf(b, "Corregir el siguiente problema del agente %s:\n", issue.AgentName)
	b = fmt.Appendf(b, "- Categoría: %s, Severidad: %s\n", issue.Category, issue.Severity)
	if issue.QAAnalysis != "" {
		b = fmt.Appendf(b, "- Análisis QA: %s\n", issue.QAAnalysis)
	}
	if issue.QASuggestion != "" {
		b = fmt.Appendf(b, "- Sugerencia QA: %s\n", issue.QASuggestion)
	}
	if issue.AdminInsight != "" {
		b = fmt.Appendf(b, "- Nota del administrador: %s\n", issue.AdminInsight)
	}
	if issue.ErrorMessage != "" {
		b = fmt.Appendf(b, "- Error técnico: %s\n", issue.ErrorMessage)
	}
	return string(b)
}

// failFix records a failed fix attempt on the issue. Runs on a fresh
// context so the bookkeeping survives a cancelled request.
func (r *Reviewer) failFix(issueID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.issues.SetFixStatus(ctx, issueID, models.FixStatusFailed, cause.Error()); err != nil {
		log.Printf("[Review] failed to record fix failure for issue %s: %v", issueID, err)
	}
}
