package review

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// ErrTenantBusy is returned when a review is requested for a tenant
// that already has one running. Overlapping cycles would race on the
// cooldown bookkeeping, so at most one runs per tenant at a time.
var ErrTenantBusy = errors.New("a review cycle is already running for this tenant")

// Runner schedules review cycles on top of a Reviewer: asynchronous
// fire-and-forget runs, synchronous runs, and the per-tenant mutual
// exclusion both share. Every cycle runs under the configured timeout
// so a stuck provider call cannot pin a tenant busy forever.
//
// The busy flag is in-process only: two service instances can still run
// overlapping cycles for one tenant. The cooldown gate reads fresh from
// the database, which bounds the damage to one extra revision.
type Runner struct {
	reviewer *Reviewer
	timeout  time.Duration

	mu     sync.Mutex
	active map[string]bool
	wg     sync.WaitGroup
}

func NewRunner(reviewer *Reviewer, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Runner{
		reviewer: reviewer,
		timeout:  timeout,
		active:   make(map[string]bool),
	}
}

// claim marks a tenant busy. Returns false if it already was.
func (r *Runner) claim(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[tenantID] {
		return false
	}
	r.active[tenantID] = true
	return true
}

func (r *Runner) release(tenantID string) {
	r.mu.Lock()
	delete(r.active, tenantID)
	r.mu.Unlock()
}

// SubmitReview starts a review cycle in the background and returns
// immediately. The caller gets an acknowledgement, not a result.
func (r *Runner) SubmitReview(tenantID, triggeredBy string, days int) error {
	if !r.claim(tenantID) {
		return ErrTenantBusy
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(tenantID)
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.reviewer.RunReview(ctx, tenantID, triggeredBy, days); err != nil {
			log.Printf("[Runner] background review for tenant %s failed: %v", tenantID, err)
		}
	}()
	return nil
}

// RunSync runs a review cycle inline and returns its full result. The
// tenant is claimed exactly like a background run, so a synchronous
// caller and the background path cannot overlap.
func (r *Runner) RunSync(ctx context.Context, tenantID, triggeredBy string, days int) (*models.ReviewResult, error) {
	if !r.claim(tenantID) {
		return nil, ErrTenantBusy
	}
	defer r.release(tenantID)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.reviewer.RunReview(ctx, tenantID, triggeredBy, days)
}

// ActiveTenants lists the tenants a sweep would cover.
func (r *Runner) ActiveTenants(ctx context.Context) ([]string, error) {
	return r.reviewer.ActiveTenants(ctx)
}

// SubmitAll starts a background sweep over the given tenants,
// sequentially, each cycle under its own timeout. Busy tenants are
// skipped rather than queued.
func (r *Runner) SubmitAll(tenants []string, triggeredBy string, days int) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		completed, failed, skipped := 0, 0, 0
		for _, tenantID := range tenants {
			if !r.claim(tenantID) {
				log.Printf("[Runner] skipping busy tenant %s", tenantID)
				skipped++
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			_, err := r.reviewer.RunReview(ctx, tenantID, triggeredBy, days)
			cancel()
			r.release(tenantID)
			if err != nil {
				log.Printf("[Runner] review for tenant %s failed: %v", tenantID, err)
				failed++
				continue
			}
			completed++
		}
		log.Printf("[Runner] sweep finished completed=%d failed=%d skipped=%d", completed, failed, skipped)
	}()
}

// FixIssue runs a single-issue fix inline under the cycle timeout.
func (r *Runner) FixIssue(ctx context.Context, issueID string) (*models.PromptRevision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.reviewer.FixSingleIssue(ctx, issueID)
}

// Shutdown waits for in-flight background cycles to finish, up to the
// given context's deadline.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
