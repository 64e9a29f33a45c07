package review

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// commitRevision pushes an approved edit to the document store and
// records the immutable revision row. A store write failure abandons
// the attempt: no revision row exists without a commit backing it.
func (r *Reviewer) commitRevision(ctx context.Context, cycleID, tenantID, agentName string, p *patchProposal, agentIssues []*models.QualityIssue, triggeredBy string) (*models.PromptRevision, error) {
	author := fmt.Sprintf("QA Reviewer (triggered by %s)", triggeredBy)
	commit, err := r.docs.UpdatePrompt(ctx, agentName, p.improvement.ImprovedPrompt, author)
	if err != nil {
		if r.metrics != nil {
			r.metrics.PromptCommitErrors.Inc()
		}
		return nil, fmt.Errorf("failed to commit prompt for %s: %w", agentName, err)
	}
	if r.metrics != nil {
		r.metrics.PromptCommits.Inc()
	}

	issueIDs := make([]string, 0, len(agentIssues))
	for _, issue := range agentIssues {
		issueIDs = append(issueIDs, issue.ID)
	}

	rev := &models.PromptRevision{
		ReviewCycleID:     cycleID,
		TenantID:          tenantID,
		AgentName:         agentName,
		OriginalPrompt:    p.currentPrompt,
		ImprovedPrompt:    p.improvement.ImprovedPrompt,
		ImprovementReason: revisionReason(p.improvement),
		Changes:           p.improvement.Changes,
		IssuesAddressed:   issueIDs,
		Confidence:        p.improvement.Confidence,
		CommitSHA:         commit.CommitSHA,
		CommitURL:         commit.CommitURL,
	}
	id, err := r.revisions.CreateRevision(ctx, rev)
	if err != nil {
		return nil, fmt.Errorf("prompt for %s committed (%s) but revision record failed: %w", agentName, commit.CommitSHA, err)
	}
	rev.ID = id

	log.Printf("[Review] committed prompt revision %s agent=%s commit=%s", id, agentName, commit.CommitSHA)
	return rev, nil
}

// revisionReason prefers the model's own rationale, falling back to a
// digest of the per-section changes.
func revisionReason(imp *Improvement) string {
	if imp.Reason != "" {
		return imp.Reason
	}
	var lines []string
	for _, c := range imp.Changes {
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", c.Section, c.Change, c.Reason))
	}
	if len(lines) == 0 {
		return "prompt updated"
	}
	return strings.Join(lines, "\n")
}
