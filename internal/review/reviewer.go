package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pablodma/homeAssistant-asistant/internal/config"
	"github.com/pablodma/homeAssistant-asistant/internal/github"
	"github.com/pablodma/homeAssistant-asistant/internal/metrics"
	"github.com/pablodma/homeAssistant-asistant/internal/models"
	"github.com/pablodma/homeAssistant-asistant/internal/provider"
)

var tracer = otel.Tracer("qa-review")

// IssueStore is the slice of issue persistence the reviewer needs.
type IssueStore interface {
	FetchUnresolvedIssues(ctx context.Context, tenantID string, since time.Time) ([]*models.QualityIssue, error)
	GetIssue(ctx context.Context, id string) (*models.QualityIssue, error)
	SetFixStatus(ctx context.Context, id string, status models.FixStatus, fixErr string) error
	CompleteFix(ctx context.Context, id, fixResult, resolvedBy, notes string) error
}

// CycleStore records cycle lifecycle transitions.
type CycleStore interface {
	CreateCycle(ctx context.Context, cycle *models.ReviewCycle) (string, error)
	CompleteCycle(ctx context.Context, cycleID string, issuesCount, improvementsCount int, analysisJSON string) error
	FailCycle(ctx context.Context, cycleID, errMsg string) error
}

// RevisionStore persists applied revisions and answers cooldown reads.
type RevisionStore interface {
	CreateRevision(ctx context.Context, rev *models.PromptRevision) (string, error)
	CountRecentRevisions(ctx context.Context, tenantID, agentName string, since time.Time) (int, error)
}

// TenantStore lists the tenants eligible for review.
type TenantStore interface {
	ActiveTenantIDs(ctx context.Context) ([]string, error)
}

// DocumentStore reads and version-commits agent prompt documents.
type DocumentStore interface {
	IsConfigured() bool
	GetPrompt(ctx context.Context, agentName string) (string, error)
	UpdatePrompt(ctx context.Context, agentName, content, author string) (*github.CommitResult, error)
}

// TemplateLoader serves the local fallback copy of the analysis
// template.
type TemplateLoader interface {
	Get(agentName string) (string, error)
}

// improverAgent names the meta-prompt document holding the diagnostic
// analysis template.
const improverAgent = "prompt-improver"

const (
	analysisMaxTokens  = 8000
	improveMaxTokens   = 16000
	improveTemperature = 0.2
)

// Deps collects everything a Reviewer needs.
type Deps struct {
	Issues    IssueStore
	Cycles    CycleStore
	Revisions RevisionStore
	Tenants   TenantStore
	Docs      DocumentStore
	Generator provider.Generator
	Templates TemplateLoader
	Metrics   *metrics.Metrics
	Config    config.ReviewConfig
	Model     string
}

// Reviewer runs the diagnose-then-patch pipeline: fetch a tenant's
// unresolved issues, have a model diagnose them, and commit minimal
// prompt edits for the worst offending agents.
type Reviewer struct {
	issues    IssueStore
	cycles    CycleStore
	revisions RevisionStore
	tenants   TenantStore
	docs      DocumentStore
	generator provider.Generator
	templates TemplateLoader
	metrics   *metrics.Metrics
	cfg       config.ReviewConfig
	model     string
}

func New(deps Deps) *Reviewer {
	return &Reviewer{
		issues:    deps.Issues,
		cycles:    deps.Cycles,
		revisions: deps.Revisions,
		tenants:   deps.Tenants,
		docs:      deps.Docs,
		generator: deps.Generator,
		templates: deps.Templates,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
		model:     deps.Model,
	}
}

// RunReview executes one full review cycle for a tenant over the last
// days of issues. The cycle row is created up front in 'running' state
// and always reaches a terminal state before return.
func (r *Reviewer) RunReview(ctx context.Context, tenantID, triggeredBy string, days int) (*models.ReviewResult, error) {
	ctx, span := tracer.Start(ctx, "review.cycle", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("triggered_by", triggeredBy),
	))
	defer span.End()

	now := time.Now().UTC()
	cycle := &models.ReviewCycle{
		TenantID:    tenantID,
		TriggeredBy: triggeredBy,
		PeriodStart: now.AddDate(0, 0, -days),
		PeriodEnd:   now,
	}
	cycleID, err := r.cycles.CreateCycle(ctx, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to create review cycle: %w", err)
	}
	log.Printf("[Review] cycle %s started tenant=%s triggered_by=%s days=%d", cycleID, tenantID, triggeredBy, days)

	start := time.Now()
	result, err := r.runCycle(ctx, cycleID, tenantID, triggeredBy, cycle.PeriodStart)
	if err != nil {
		r.failCycle(cycleID, err)
		if r.metrics != nil {
			r.metrics.CyclesTotal.WithLabelValues(string(models.CycleStatusFailed)).Inc()
		}
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.CyclesTotal.WithLabelValues(string(models.CycleStatusCompleted)).Inc()
		r.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		r.metrics.IssuesAnalyzed.Add(float64(result.IssuesAnalyzed))
		r.metrics.ImprovementsApplied.Add(float64(result.ImprovementsApplied))
	}
	log.Printf("[Review] cycle %s completed issues=%d improvements=%d", cycleID, result.IssuesAnalyzed, result.ImprovementsApplied)
	return result, nil
}

func (r *Reviewer) runCycle(ctx context.Context, cycleID, tenantID, triggeredBy string, since time.Time) (*models.ReviewResult, error) {
	issues, err := r.issues.FetchUnresolvedIssues(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unresolved issues: %w", err)
	}

	if len(issues) == 0 {
		if err := r.cycles.CompleteCycle(ctx, cycleID, 0, 0, `{"message":"no unresolved issues"}`); err != nil {
			return nil, fmt.Errorf("failed to complete empty cycle: %w", err)
		}
		return &models.ReviewResult{
			CycleID:   cycleID,
			Status:    models.CycleStatusCompleted,
			Revisions: []models.RevisionSummary{},
			Message:   "no unresolved issues in the selected period",
		}, nil
	}

	soft, hard := PartitionIssues(issues)
	convLog := BuildConversationLog(soft)
	apiLog := BuildAPILog(hard)
	metricsBlock := BuildMetrics(issues)

	template, err := r.loadAnalysisTemplate(ctx)
	if err != nil {
		return nil, err
	}

	sections, err := r.analyze(ctx, template, convLog, apiLog, metricsBlock)
	if err != nil {
		return nil, err
	}

	var revisions []*models.PromptRevision
	if proposals := sections["automated_fixes"]; proposals != "" {
		revisions, err = r.processImprovements(ctx, cycleID, tenantID, proposals, issues, triggeredBy)
		if err != nil {
			return nil, err
		}
	} else {
		log.Printf("[Review] cycle %s produced no automated fix proposals", cycleID)
	}

	analysisJSON, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis: %w", err)
	}
	if err := r.cycles.CompleteCycle(ctx, cycleID, len(issues), len(revisions), string(analysisJSON)); err != nil {
		return nil, fmt.Errorf("failed to complete cycle: %w", err)
	}

	summaries := make([]models.RevisionSummary, 0, len(revisions))
	for _, rev := range revisions {
		summaries = append(summaries, rev.Summary())
	}
	return &models.ReviewResult{
		CycleID:             cycleID,
		Status:              models.CycleStatusCompleted,
		IssuesAnalyzed:      len(issues),
		ImprovementsApplied: len(revisions),
		Analysis:            sections,
		Revisions:           summaries,
	}, nil
}

// processImprovements walks the selected candidates through the gate
// and attempts a patch for each one that passes. Per-agent failures are
// logged and skipped; a cooldown read failure aborts the cycle because
// the gate cannot be trusted without it.
func (r *Reviewer) processImprovements(ctx context.Context, cycleID, tenantID, proposals string, issues []*models.QualityIssue, triggeredBy string) ([]*models.PromptRevision, error) {
	candidates := SelectCandidates(proposals, issues, r.cfg.KnownAgents)
	if len(candidates) == 0 {
		log.Printf("[Review] cycle %s: no known agent implicated by the issue batch", cycleID)
		return nil, nil
	}

	var revisions []*models.PromptRevision
	for _, cand := range candidates {
		elapsed, err := r.cooldownElapsed(ctx, tenantID, cand.Agent)
		if err != nil {
			return nil, fmt.Errorf("failed to check cooldown for %s: %w", cand.Agent, err)
		}
		verdict := Decide(GateInput{
			IssueCount:          len(cand.Issues),
			MinIssues:           r.cfg.MinIssues,
			HasCriticalOverride: hasCriticalOverride(cand.Issues),
			CooldownElapsed:     elapsed,
			BudgetRemaining:     r.cfg.MaxImprovements - len(revisions),
		})
		if !verdict.Proceed {
			if r.metrics != nil {
				r.metrics.GateSkips.WithLabelValues(string(verdict.Reason)).Inc()
			}
			log.Printf("[Review] cycle %s: skipping agent %s (%s)", cycleID, cand.Agent, verdict.Reason)
			if verdict.Reason == SkipBudgetExhausted {
				break
			}
			continue
		}

		rev, err := r.improveAgentPrompt(ctx, cycleID, tenantID, cand.Agent, cand.Issues, proposals, triggeredBy)
		if err != nil {
			log.Printf("[Review] cycle %s: patch attempt for agent %s failed: %v", cycleID, cand.Agent, err)
			continue
		}
		if rev == nil {
			continue
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// improveAgentPrompt runs one patch attempt end to end: propose an
// edit, then commit and record it. A nil revision with nil error means
// the model declined to modify or gave an inconclusive answer.
func (r *Reviewer) improveAgentPrompt(ctx context.Context, cycleID, tenantID, agentName string, agentIssues []*models.QualityIssue, proposals, triggeredBy string) (*models.PromptRevision, error) {
	ctx, span := tracer.Start(ctx, "review.improve", trace.WithAttributes(
		attribute.String("agent", agentName),
	))
	defer span.End()

	proposal, err := r.proposeImprovement(ctx, agentName, agentIssues, proposals)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, nil
	}
	return r.commitRevision(ctx, cycleID, tenantID, agentName, proposal, agentIssues, triggeredBy)
}

func (r *Reviewer) cooldownElapsed(ctx context.Context, tenantID, agentName string) (bool, error) {
	since := time.Now().UTC().Add(-r.cfg.Cooldown())
	n, err := r.revisions.CountRecentRevisions(ctx, tenantID, agentName, since)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func hasCriticalOverride(issues []*models.QualityIssue) bool {
	for _, issue := range issues {
		if issue.HasCriticalOverride() {
			return true
		}
	}
	return false
}

// loadAnalysisTemplate fetches the diagnostic template from the
// document store, falling back to the local bundled copy when the
// store is unconfigured or unreachable.
func (r *Reviewer) loadAnalysisTemplate(ctx context.Context) (string, error) {
	if r.docs != nil && r.docs.IsConfigured() {
		template, err := r.docs.GetPrompt(ctx, improverAgent)
		if err == nil {
			return template, nil
		}
		log.Printf("[Review] remote analysis template unavailable, using local copy: %v", err)
	}
	if r.templates == nil {
		return "", errors.New("analysis template not available: no document store and no local template dir")
	}
	template, err := r.templates.Get(improverAgent)
	if err != nil {
		return "", fmt.Errorf("analysis template not available: %w", err)
	}
	return template, nil
}

// failCycle records a terminal failed state. It runs on a fresh
// context so the transition is persisted even when the cycle's own
// context has expired.
func (r *Reviewer) failCycle(cycleID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.cycles.FailCycle(ctx, cycleID, cause.Error()); err != nil {
		log.Printf("[Review] failed to mark cycle %s as failed: %v", cycleID, err)
	}
	log.Printf("[Review] cycle %s failed: %v", cycleID, cause)
}

// RunReviewAll reviews every listed tenant sequentially. One tenant's
// failure never aborts the rest; the counts report how each fared.
func (r *Reviewer) RunReviewAll(ctx context.Context, tenantIDs []string, triggeredBy string, days int) (completed, failed int) {
	for _, tenantID := range tenantIDs {
		if _, err := r.RunReview(ctx, tenantID, triggeredBy, days); err != nil {
			log.Printf("[Review] tenant %s review failed: %v", tenantID, err)
			failed++
			continue
		}
		completed++
	}
	log.Printf("[Review] all-tenant run finished completed=%d failed=%d", completed, failed)
	return completed, failed
}

// ActiveTenants lists the tenants eligible for an all-tenant run.
func (r *Reviewer) ActiveTenants(ctx context.Context) ([]string, error) {
	return r.tenants.ActiveTenantIDs(ctx)
}

// generate wraps the provider call with instrumentation shared by the
// analysis and improvement stages.
func (r *Reviewer) generate(ctx context.Context, kind string, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	start := time.Now()
	resp, err := r.generator.Generate(ctx, req)
	if r.metrics != nil {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case resp.Truncated():
			outcome = "truncated"
			r.metrics.TruncatedResponses.Inc()
		}
		r.metrics.GenerationRequests.WithLabelValues(kind, outcome).Inc()
		r.metrics.GenerationLatency.Observe(time.Since(start).Seconds())
		if resp != nil {
			r.metrics.GenerationTokens.WithLabelValues("input").Add(float64(resp.Usage.InputTokens))
			r.metrics.GenerationTokens.WithLabelValues("output").Add(float64(resp.Usage.OutputTokens))
		}
	}
	return resp, err
}
