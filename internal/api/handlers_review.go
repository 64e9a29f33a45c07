package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pablodma/homeAssistant-asistant/internal/review"
)

const (
	defaultReviewDays  = 30
	maxReviewDays      = 365
	defaultTriggeredBy = "cli"
)

type reviewRequest struct {
	TenantID    string `json:"tenant_id"`
	Days        int    `json:"days"`
	TriggeredBy string `json:"triggered_by"`
}

type fixIssueRequest struct {
	IssueID string `json:"issue_id"`
}

// normalize applies defaults and validates the window.
func (req *reviewRequest) normalize() error {
	if req.Days == 0 {
		req.Days = defaultReviewDays
	}
	if req.Days < 1 || req.Days > maxReviewDays {
		return fmt.Errorf("days must be between 1 and %d", maxReviewDays)
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = defaultTriggeredBy
	}
	return nil
}

// handleReview starts a background review cycle for one tenant and
// acknowledges immediately.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReviewRequest(w, r, true)
	if !ok {
		return
	}

	if err := s.runner.SubmitReview(req.TenantID, req.TriggeredBy, req.Days); err != nil {
		if errors.Is(err, review.ErrTenantBusy) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"status":    "started",
		"tenant_id": req.TenantID,
		"message":   "review running in background, results will be persisted",
	})
}

// handleReviewSync runs a review cycle inline and returns the full
// result, analysis included.
func (s *Server) handleReviewSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReviewRequest(w, r, true)
	if !ok {
		return
	}

	result, err := s.runner.RunSync(r.Context(), req.TenantID, req.TriggeredBy, req.Days)
	if err != nil {
		if errors.Is(err, review.ErrTenantBusy) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleReviewAll starts a background sweep over every active tenant.
// The tenant list is resolved up front so the caller learns what the
// sweep will cover.
func (s *Server) handleReviewAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReviewRequest(w, r, false)
	if !ok {
		return
	}

	tenants, err := s.runner.ActiveTenants(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.runner.SubmitAll(tenants, req.TriggeredBy, req.Days)
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":        "started",
		"tenants_count": len(tenants),
		"tenant_ids":    tenants,
		"message":       fmt.Sprintf("review started for %d tenants", len(tenants)),
	})
}

// handleFixIssue runs a targeted single-issue fix and returns the
// applied revision.
func (s *Server) handleFixIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fixIssueRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IssueID == "" {
		s.respondError(w, http.StatusBadRequest, "issue_id is required")
		return
	}

	rev, err := s.runner.FixIssue(r.Context(), req.IssueID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, rev.Summary())
}

// decodeReviewRequest parses and validates the shared trigger payload.
// An empty body is allowed when the tenant is not required.
func (s *Server) decodeReviewRequest(w http.ResponseWriter, r *http.Request, requireTenant bool) (*reviewRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var req reviewRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return nil, false
		}
	}
	if requireTenant && req.TenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return nil, false
	}
	if err := req.normalize(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}
