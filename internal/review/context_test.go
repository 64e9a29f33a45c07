package review

import (
	"strings"
	"testing"
	"time"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

func TestBuildConversationLogEmpty(t *testing.T) {
	if got := BuildConversationLog(nil); got != noConversationIssues {
		t.Errorf("got %q", got)
	}
}

func TestBuildAPILogEmpty(t *testing.T) {
	if got := BuildAPILog(nil); got != noTechnicalErrors {
		t.Errorf("got %q", got)
	}
}

func TestBuildConversationLog(t *testing.T) {
	created := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)
	issues := []*models.QualityIssue{
		{
			IssueType:    models.IssueTypeSoftError,
			Category:     "wrong_info",
			Severity:     models.SeverityHigh,
			AgentName:    "finance",
			MessageIn:    "cuanto gasté este mes",
			MessageOut:   "gastaste 100 dólares",
			QAAnalysis:   "amount reported in wrong currency",
			QAConfidence: 0.9,
			CreatedAt:    created,
		},
		{
			IssueType: models.IssueTypeSoftError,
			Category:  "tone",
			Severity:  models.SeverityLow,
			CreatedAt: created,
		},
	}

	got := BuildConversationLog(issues)

	if !strings.Contains(got, "--- Interaction #1 ---") || !strings.Contains(got, "--- Interaction #2 ---") {
		t.Errorf("missing numbered headers:\n%s", got)
	}
	if !strings.Contains(got, "Agent: finance") {
		t.Errorf("missing agent line:\n%s", got)
	}
	if !strings.Contains(got, "Confidence: 0.90") {
		t.Errorf("missing confidence:\n%s", got)
	}
	// Second issue has no agent or messages: placeholders, not blanks.
	if !strings.Contains(got, "Agent: unknown") || !strings.Contains(got, "User said: N/A") {
		t.Errorf("missing placeholders:\n%s", got)
	}
	if strings.Contains(got, "Admin Insight") {
		t.Errorf("admin insight line should be omitted when empty:\n%s", got)
	}
}

func TestBuildAPILogTruncatesStackTrace(t *testing.T) {
	issue := &models.QualityIssue{
		IssueType:    models.IssueTypeHardError,
		Category:     "api_failure",
		Severity:     models.SeverityCritical,
		ErrorMessage: "timeout",
		StackTrace:   strings.Repeat("x", 2000),
		CreatedAt:    time.Now(),
	}

	got := BuildAPILog([]*models.QualityIssue{issue})
	idx := strings.Index(got, "Stack Trace:\n")
	if idx < 0 {
		t.Fatalf("missing stack trace:\n%s", got)
	}
	trace := strings.TrimRight(got[idx+len("Stack Trace:\n"):], "\n")
	if len(trace) != 500 {
		t.Errorf("stack trace length = %d, want 500", len(trace))
	}
}

func TestBuildMetrics(t *testing.T) {
	issues := []*models.QualityIssue{
		{IssueType: models.IssueTypeSoftError, Category: "wrong_info", Severity: models.SeverityHigh, AgentName: "finance"},
		{IssueType: models.IssueTypeSoftError, Category: "wrong_info", Severity: models.SeverityLow, AgentName: "finance"},
		{IssueType: models.IssueTypeHardError, Category: "api_failure", Severity: models.SeverityHigh, AgentName: "router"},
	}

	got := BuildMetrics(issues)

	for _, want := range []string{
		"Total issues: 3",
		"Soft errors (quality): 2",
		"Hard errors (technical): 1",
		"  - finance: 2",
		"  - router: 1",
		"  - wrong_info: 2",
		"  - high: 2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	// Highest count first within each breakdown.
	if strings.Index(got, "- finance: 2") > strings.Index(got, "- router: 1") {
		t.Errorf("agents not sorted by count:\n%s", got)
	}
}

func TestPartitionIssues(t *testing.T) {
	issues := []*models.QualityIssue{
		{IssueType: models.IssueTypeHardError},
		{IssueType: models.IssueTypeSoftError},
		{IssueType: models.IssueTypeHardError},
	}
	soft, hard := PartitionIssues(issues)
	if len(soft) != 1 || len(hard) != 2 {
		t.Errorf("soft=%d hard=%d", len(soft), len(hard))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hél" {
		t.Errorf("got %q", got)
	}
	if got := truncate("ok", 10); got != "ok" {
		t.Errorf("got %q", got)
	}
}
