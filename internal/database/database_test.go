package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"WHERE id = ?", "WHERE id = $1"},
		{"VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		if got := rebind(tt.in); got != tt.want {
			t.Errorf("rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// openTestDB connects using POSTGRES_* env vars, skipping the test when
// no database is reachable.
func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewFromEnv()
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testTenant(t *testing.T, db *Database) string {
	t.Helper()
	id := "tenant-" + uuid.NewString()
	_, err := db.db.Exec(rebind("INSERT INTO tenants (id, name, active) VALUES (?, ?, true)"), id, "test tenant")
	if err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	return id
}

func TestIssueLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := testTenant(t, db)

	issue := &models.QualityIssue{
		TenantID:     tenantID,
		IssueType:    models.IssueTypeSoftError,
		Category:     "wrong_info",
		Severity:     models.SeverityHigh,
		AgentName:    "finance",
		MessageIn:    "cuanto gasté",
		MessageOut:   "no sé",
		QAAnalysis:   "respuesta evasiva",
		QAConfidence: 0.8,
	}
	id, err := db.CreateIssue(ctx, issue)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.GetIssue(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AgentName != "finance" || got.Category != "wrong_info" {
		t.Errorf("got %+v", got)
	}
	if got.IsResolved {
		t.Error("new issue must be unresolved")
	}

	unresolved, err := db.FetchUnresolvedIssues(ctx, tenantID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].ID != id {
		t.Errorf("unresolved = %+v", unresolved)
	}

	if err := db.SetFixStatus(ctx, id, models.FixStatusInProgress, ""); err != nil {
		t.Fatalf("set fix status: %v", err)
	}
	if err := db.CompleteFix(ctx, id, `{"ok":true}`, "admin-fix", "fixed in revision rev-1"); err != nil {
		t.Fatalf("complete fix: %v", err)
	}

	got, err = db.GetIssue(ctx, id)
	if err != nil {
		t.Fatalf("get after fix: %v", err)
	}
	if !got.IsResolved || got.ResolvedBy != "admin-fix" || got.FixStatus != models.FixStatusCompleted {
		t.Errorf("after fix: %+v", got)
	}

	// Resolved issues drop out of the unresolved list.
	unresolved, err = db.FetchUnresolvedIssues(ctx, tenantID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("fetch after fix: %v", err)
	}
	if len(unresolved) != 0 {
		t.Errorf("unresolved after fix = %d", len(unresolved))
	}
}

func TestFetchUnresolvedIssuesOrderAndWindow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := testTenant(t, db)

	now := time.Now().UTC()
	for i, age := range []time.Duration{48 * time.Hour, 2 * time.Hour, time.Hour} {
		_, err := db.CreateIssue(ctx, &models.QualityIssue{
			TenantID:  tenantID,
			IssueType: models.IssueTypeSoftError,
			Category:  fmt.Sprintf("cat-%d", i),
			Severity:  models.SeverityLow,
			CreatedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := db.FetchUnresolvedIssues(ctx, tenantID, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("issues in window = %d, want 2", len(got))
	}
	// Newest first.
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Errorf("not ordered newest-first: %v, %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestCycleLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := testTenant(t, db)

	now := time.Now().UTC()
	id, err := db.CreateCycle(ctx, &models.ReviewCycle{
		TenantID:    tenantID,
		TriggeredBy: "cron",
		PeriodStart: now.AddDate(0, 0, -30),
		PeriodEnd:   now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.GetCycle(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.CycleStatusRunning {
		t.Errorf("new cycle status = %s", got.Status)
	}

	if err := db.CompleteCycle(ctx, id, 5, 2, `{"summary":"ok"}`); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = db.GetCycle(ctx, id)
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if got.Status != models.CycleStatusCompleted || got.IssuesAnalyzed != 5 || got.ImprovementsApplied != 2 {
		t.Errorf("completed cycle = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at must be set")
	}

	failedID, err := db.CreateCycle(ctx, &models.ReviewCycle{
		TenantID: tenantID, TriggeredBy: "cron", PeriodStart: now, PeriodEnd: now,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := db.FailCycle(ctx, failedID, "provider unreachable"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, err = db.GetCycle(ctx, failedID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.CycleStatusFailed || got.ErrorMessage != "provider unreachable" {
		t.Errorf("failed cycle = %+v", got)
	}
}

func TestRevisions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := testTenant(t, db)

	now := time.Now().UTC()
	cycleID, err := db.CreateCycle(ctx, &models.ReviewCycle{
		TenantID: tenantID, TriggeredBy: "cron", PeriodStart: now, PeriodEnd: now,
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	rev := &models.PromptRevision{
		ReviewCycleID:     cycleID,
		TenantID:          tenantID,
		AgentName:         "finance",
		OriginalPrompt:    "v1",
		ImprovedPrompt:    "v2",
		ImprovementReason: "moneda equivocada",
		Changes:           []models.PromptChange{{Section: "moneda", Change: "regla", Reason: "errores"}},
		IssuesAddressed:   []string{"issue-1", "issue-2"},
		Confidence:        0.8,
		CommitSHA:         "abc123",
		CommitURL:         "https://example.test/abc123",
	}
	id, err := db.CreateRevision(ctx, rev)
	if err != nil {
		t.Fatalf("create revision: %v", err)
	}
	if id == "" {
		t.Fatal("empty revision id")
	}

	n, err := db.CountRecentRevisions(ctx, tenantID, "finance", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("recent revisions = %d", n)
	}

	// Another agent for the same tenant is not on cooldown.
	n, err = db.CountRecentRevisions(ctx, tenantID, "router", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count other agent: %v", err)
	}
	if n != 0 {
		t.Errorf("router revisions = %d", n)
	}

	listed, err := db.ListRevisionsByCycle(ctx, cycleID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed = %d", len(listed))
	}
	got := listed[0]
	if got.AgentName != "finance" || got.CommitSHA != "abc123" {
		t.Errorf("listed revision = %+v", got)
	}
	if len(got.Changes) != 1 || got.Changes[0].Section != "moneda" {
		t.Errorf("changes round-trip = %+v", got.Changes)
	}
	if len(got.IssuesAddressed) != 2 {
		t.Errorf("issues addressed = %v", got.IssuesAddressed)
	}
}

func TestActiveTenantIDs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	activeID := testTenant(t, db)

	inactiveID := "tenant-" + uuid.NewString()
	if _, err := db.db.Exec(rebind("INSERT INTO tenants (id, name, active) VALUES (?, ?, false)"), inactiveID, "inactive"); err != nil {
		t.Fatalf("insert inactive: %v", err)
	}

	ids, err := db.ActiveTenantIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[activeID] {
		t.Error("active tenant missing")
	}
	if seen[inactiveID] {
		t.Error("inactive tenant must be excluded")
	}
}
