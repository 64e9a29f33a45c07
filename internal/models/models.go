// Package models defines the persistent records of the QA review
// pipeline: quality issues, review cycles, and prompt revisions.
package models

import (
	"encoding/json"
	"time"
)

// IssueType discriminates the two kinds of quality issues.
type IssueType string

const (
	// IssueTypeHardError is a technical failure caught by runtime error
	// handlers (API failures, timeouts, exceptions).
	IssueTypeHardError IssueType = "hard_error"
	// IssueTypeSoftError is a behavioral problem detected by the QA
	// analysis agent (misinterpretations, hallucinations, ...).
	IssueTypeSoftError IssueType = "soft_error"
)

// Severity levels for quality issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CycleStatus is the state of a review cycle. A cycle is created as
// running and receives exactly one terminal update.
type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "running"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusFailed    CycleStatus = "failed"
)

// FixStatus tracks the progress of a single-issue fix.
type FixStatus string

const (
	FixStatusInProgress FixStatus = "in_progress"
	FixStatusCompleted  FixStatus = "completed"
	FixStatusFailed     FixStatus = "failed"
)

// QualityIssue is one recorded instance of an agent failing, either
// technically (hard error) or behaviorally (soft error). Issues are
// append-only: they are mutated only to mark resolution or fix outcome,
// never deleted.
type QualityIssue struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	IssueType     IssueType `json:"issue_type"`
	Category      string    `json:"issue_category"`
	Severity      Severity  `json:"severity"`
	AgentName     string    `json:"agent_name,omitempty"`
	ToolName      string    `json:"tool_name,omitempty"`
	UserPhone     string    `json:"user_phone,omitempty"`
	MessageIn     string    `json:"message_in,omitempty"`
	MessageOut    string    `json:"message_out,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	StackTrace    string    `json:"stack_trace,omitempty"`
	QAAnalysis    string    `json:"qa_analysis,omitempty"`
	QASuggestion  string    `json:"qa_suggestion,omitempty"`
	QAConfidence  float64   `json:"qa_confidence,omitempty"`
	AdminInsight  string    `json:"admin_insight,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	IsResolved      bool       `json:"is_resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`

	FixStatus FixStatus `json:"fix_status,omitempty"`
	FixError  string    `json:"fix_error,omitempty"`
	FixResult string    `json:"fix_result,omitempty"`
}

// IsHardError reports whether the issue is a technical failure.
func (q *QualityIssue) IsHardError() bool {
	return q.IssueType == IssueTypeHardError
}

// HasCriticalOverride reports whether the issue bypasses the
// minimum-issue gate: hallucinations and critical-severity issues are
// always eligible for a patch attempt.
func (q *QualityIssue) HasCriticalOverride() bool {
	return q.Category == "hallucination" || q.Severity == SeverityCritical
}

// ReviewCycle is one execution of the diagnose-then-patch pipeline over
// a tenant's unresolved issue backlog. Count fields are set exactly once
// at finalization.
type ReviewCycle struct {
	ID                  string      `json:"id"`
	TenantID            string      `json:"tenant_id"`
	TriggeredBy         string      `json:"triggered_by"`
	PeriodStart         time.Time   `json:"period_start"`
	PeriodEnd           time.Time   `json:"period_end"`
	Status              CycleStatus `json:"status"`
	IssuesAnalyzed      int         `json:"issues_analyzed_count"`
	ImprovementsApplied int         `json:"improvements_applied_count"`
	AnalysisResult      string      `json:"analysis_result,omitempty"` // JSON blob of analysis sections
	ErrorMessage        string      `json:"error_message,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
}

// PromptChange describes one edit applied to a prompt section.
type PromptChange struct {
	Section string `json:"section"`
	Change  string `json:"change"`
	Reason  string `json:"reason"`
}

// PromptRevision is an immutable record of one applied prompt edit,
// sufficient to understand and reverse the change. Created only when a
// patch is actually committed.
type PromptRevision struct {
	ID                string         `json:"id"`
	ReviewCycleID     string         `json:"review_cycle_id"`
	TenantID          string         `json:"tenant_id"`
	AgentName         string         `json:"agent_name"`
	OriginalPrompt    string         `json:"original_prompt"`
	ImprovedPrompt    string         `json:"improved_prompt"`
	ImprovementReason string         `json:"improvement_reason"`
	Changes           []PromptChange `json:"changes_summary"`
	IssuesAddressed   []string       `json:"issues_addressed"`
	Confidence        float64        `json:"confidence"`
	CommitSHA         string         `json:"commit_sha"`
	CommitURL         string         `json:"commit_url"`
	IsRolledBack      bool           `json:"is_rolled_back"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ChangesJSON serializes the change list for storage.
func (r *PromptRevision) ChangesJSON() ([]byte, error) {
	if r.Changes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Changes)
}

// IssuesAddressedJSON serializes the addressed-issue-id list for storage.
func (r *PromptRevision) IssuesAddressedJSON() ([]byte, error) {
	if r.IssuesAddressed == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.IssuesAddressed)
}

// SetChangesFromJSON loads the change list from its stored form.
func (r *PromptRevision) SetChangesFromJSON(data []byte) error {
	if len(data) == 0 {
		r.Changes = nil
		return nil
	}
	return json.Unmarshal(data, &r.Changes)
}

// SetIssuesAddressedFromJSON loads the addressed-issue-id list from its
// stored form.
func (r *PromptRevision) SetIssuesAddressedFromJSON(data []byte) error {
	if len(data) == 0 {
		r.IssuesAddressed = nil
		return nil
	}
	return json.Unmarshal(data, &r.IssuesAddressed)
}

// RevisionSummary is the caller-facing digest of an applied revision,
// returned by the trigger endpoints.
type RevisionSummary struct {
	RevisionID        string         `json:"revision_id"`
	AgentName         string         `json:"agent_name"`
	ImprovementReason string         `json:"improvement_reason"`
	Changes           []PromptChange `json:"changes_summary"`
	Confidence        float64        `json:"confidence"`
	CommitSHA         string         `json:"commit_sha"`
	CommitURL         string         `json:"commit_url"`
	IsRolledBack      bool           `json:"is_rolled_back"`
}

// Summary converts a revision into its caller-facing digest.
func (r *PromptRevision) Summary() RevisionSummary {
	return RevisionSummary{
		RevisionID:        r.ID,
		AgentName:         r.AgentName,
		ImprovementReason: r.ImprovementReason,
		Changes:           r.Changes,
		Confidence:        r.Confidence,
		CommitSHA:         r.CommitSHA,
		CommitURL:         r.CommitURL,
		IsRolledBack:      r.IsRolledBack,
	}
}

// ReviewResult is the complete outcome of one review cycle, returned by
// the synchronous trigger variant.
type ReviewResult struct {
	CycleID             string            `json:"cycle_id"`
	Status              CycleStatus       `json:"status"`
	IssuesAnalyzed      int               `json:"issues_analyzed"`
	ImprovementsApplied int               `json:"improvements_applied"`
	Analysis            map[string]string `json:"analysis,omitempty"`
	Revisions           []RevisionSummary `json:"revisions"`
	Message             string            `json:"message,omitempty"`
}
