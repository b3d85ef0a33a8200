// Package http exposes the group ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"divvy/internal/middleware/trace"
	"divvy/internal/services"
)

type Server struct {
	http.Server
	svc         *services.LedgerService
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.LedgerService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		svc:         svc,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /groups", s.guard(s.handleCreateGroup))
	mux.HandleFunc("GET /groups", s.guard(s.handleListGroups))
	mux.HandleFunc("GET /groups/{id}", s.guard(s.handleGetGroup))
	mux.HandleFunc("GET /groups/{id}/summary", s.guard(s.handleGroupSummary))
	mux.HandleFunc("POST /groups/{id}/expenses", s.guard(s.handleRecordExpense))
	mux.HandleFunc("POST /groups/{id}/settlements", s.guard(s.handleSettle))
	mux.HandleFunc("GET /groups/{id}/balances", s.guard(s.handleBalances))
	mux.HandleFunc("GET /groups/{id}/members/{member_id}/balance", s.guard(s.handleMemberBalance))

	traced := trace.NewMiddleware(clientIP)
	s.Server.Handler = traced.Middleware(mux)

	return s
}

// guard applies rate limiting to mutating requests and sets the security
// headers on every response.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests,
				errorResponse{Error: "rate limit exceeded, try again later"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

// clientIP extracts the caller address, honouring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Shutdown gracefully stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
