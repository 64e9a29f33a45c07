package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pablodma/homeAssistant-asistant/internal/config"
	"github.com/pablodma/homeAssistant-asistant/internal/models"
	"github.com/pablodma/homeAssistant-asistant/internal/review"
)

type fakeRunner struct {
	submitErr   error
	syncResult  *models.ReviewResult
	syncErr     error
	fixRevision *models.PromptRevision
	fixErr      error

	tenants    []string
	tenantsErr error

	submitted    []string
	sweepStarted bool
	sweepTenants []string
	lastDays     int
	lastTrigger  string
}

func (f *fakeRunner) SubmitReview(tenantID, triggeredBy string, days int) error {
	f.submitted = append(f.submitted, tenantID)
	f.lastDays = days
	f.lastTrigger = triggeredBy
	return f.submitErr
}

func (f *fakeRunner) RunSync(_ context.Context, tenantID, triggeredBy string, days int) (*models.ReviewResult, error) {
	f.submitted = append(f.submitted, tenantID)
	f.lastDays = days
	f.lastTrigger = triggeredBy
	return f.syncResult, f.syncErr
}

func (f *fakeRunner) ActiveTenants(_ context.Context) ([]string, error) {
	return f.tenants, f.tenantsErr
}

func (f *fakeRunner) SubmitAll(tenants []string, triggeredBy string, days int) {
	f.sweepStarted = true
	f.sweepTenants = tenants
	f.lastDays = days
	f.lastTrigger = triggeredBy
}

func (f *fakeRunner) FixIssue(_ context.Context, _ string) (*models.PromptRevision, error) {
	return f.fixRevision, f.fixErr
}

func newTestServer(runner ReviewRunner) *Server {
	cfg := config.Default()
	cfg.Server.EnableAuth = false
	return NewServer(runner, cfg)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleReviewStartsBackgroundCycle(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(runner).SetupRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review", `{"tenant_id":"t-1"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"t-1"}, runner.submitted)
	assert.Equal(t, defaultReviewDays, runner.lastDays)
	assert.Equal(t, defaultTriggeredBy, runner.lastTrigger)
	assert.Contains(t, rec.Body.String(), `"started"`)
}

func TestHandleReviewValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing tenant", `{"days":7}`},
		{"days too small", `{"tenant_id":"t-1","days":-1}`},
		{"days too large", `{"tenant_id":"t-1","days":366}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			handler := newTestServer(runner).SetupRoutes()
			rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, runner.submitted)
		})
	}
}

func TestHandleReviewBusyTenant(t *testing.T) {
	runner := &fakeRunner{submitErr: review.ErrTenantBusy}
	handler := newTestServer(runner).SetupRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review", `{"tenant_id":"t-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleReviewMethodNotAllowed(t *testing.T) {
	handler := newTestServer(&fakeRunner{}).SetupRoutes()
	rec := doJSON(t, handler, http.MethodGet, "/internal/qa-review", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleReviewSync(t *testing.T) {
	runner := &fakeRunner{syncResult: &models.ReviewResult{
		CycleID:             "cycle-1",
		Status:              models.CycleStatusCompleted,
		IssuesAnalyzed:      4,
		ImprovementsApplied: 1,
	}}
	handler := newTestServer(runner).SetupRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review/sync", `{"tenant_id":"t-1","days":7,"triggered_by":"admin"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, runner.lastDays)
	assert.Equal(t, "admin", runner.lastTrigger)
	assert.Contains(t, rec.Body.String(), `"cycle-1"`)
	assert.Contains(t, rec.Body.String(), `"issues_analyzed":4`)
}

func TestHandleReviewAll(t *testing.T) {
	runner := &fakeRunner{tenants: []string{"t-1", "t-2"}}
	handler := newTestServer(runner).SetupRoutes()

	// Empty body is fine for the sweep: defaults apply.
	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review/all", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, runner.sweepStarted)
	assert.Equal(t, []string{"t-1", "t-2"}, runner.sweepTenants)
	assert.Equal(t, defaultReviewDays, runner.lastDays)
	assert.Contains(t, rec.Body.String(), `"tenants_count":2`)
	assert.Contains(t, rec.Body.String(), `"t-1"`)
}

func TestHandleReviewAllListFailure(t *testing.T) {
	runner := &fakeRunner{tenantsErr: assert.AnError}
	handler := newTestServer(runner).SetupRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review/all", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, runner.sweepStarted)
}

func TestHandleFixIssue(t *testing.T) {
	runner := &fakeRunner{fixRevision: &models.PromptRevision{
		ID:        "rev-1",
		AgentName: "finance",
		CommitSHA: "abc123",
	}}
	handler := newTestServer(runner).SetupRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review/fix-issue", `{"issue_id":"issue-9"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rev-1"`)
	assert.Contains(t, rec.Body.String(), `"finance"`)
}

func TestHandleFixIssueValidation(t *testing.T) {
	handler := newTestServer(&fakeRunner{}).SetupRoutes()
	rec := doJSON(t, handler, http.MethodPost, "/internal/qa-review/fix-issue", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.Default()
	cfg.Server.EnableAuth = true
	cfg.Server.APIKeys = []string{"secret"}
	handler := NewServer(&fakeRunner{}, cfg).SetupRoutes()

	// Health stays open
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing key rejected
	rec = doJSON(t, handler, http.MethodPost, "/internal/qa-review", `{"tenant_id":"t-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid key accepted
	req := httptest.NewRequest(http.MethodPost, "/internal/qa-review", strings.NewReader(`{"tenant_id":"t-1"}`))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
