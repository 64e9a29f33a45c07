package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pablodma/homeAssistant-asistant/internal/config"
	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// ReviewRunner is the scheduling surface the HTTP layer drives.
type ReviewRunner interface {
	SubmitReview(tenantID, triggeredBy string, days int) error
	RunSync(ctx context.Context, tenantID, triggeredBy string, days int) (*models.ReviewResult, error)
	ActiveTenants(ctx context.Context) ([]string, error)
	SubmitAll(tenants []string, triggeredBy string, days int)
	FixIssue(ctx context.Context, issueID string) (*models.PromptRevision, error)
}

// Server is the HTTP API for triggering review cycles.
type Server struct {
	runner ReviewRunner
	config *config.Config
}

func NewServer(runner ReviewRunner, cfg *config.Config) *Server {
	return &Server{runner: runner, config: cfg}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	// Review triggers (internal surface, called by backend and admin tools)
	mux.HandleFunc("/internal/qa-review", s.handleReview)
	mux.HandleFunc("/internal/qa-review/sync", s.handleReviewSync)
	mux.HandleFunc("/internal/qa-review/all", s.handleReviewAll)
	mux.HandleFunc("/internal/qa-review/fix-issue", s.handleFixIssue)

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	handler = s.corsMiddleware(handler)
	handler = s.authMiddleware(handler)

	return handler
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "qa-reviewer"})
}

// Middleware

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[API] %s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Server.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.config.Server.AllowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware handles authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays open for probes
		if r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		// Skip auth if disabled, or enabled with no keys configured
		if !s.config.Server.EnableAuth || len(s.config.Server.APIKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			http.Error(w, "Missing API key", http.StatusUnauthorized)
			return
		}
		for _, key := range s.config.Server.APIKeys {
			if key == apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseJSON parses JSON request body
func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
