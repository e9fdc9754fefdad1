// Package api implements the HTTP surface of the refill planning service.
package api

import (
	"net/http"
	"strings"

	"refillplan/internal/auth"
)

// getPrincipal extracts the caller's role.
//   - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
//   - Else, in dev mode only, falls back to the X-Role header.
//
// ok is false when a bearer token was sent and rejected.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return auth.Principal{}, false
		}
		return pr, true
	}
	if s.Auth == nil || s.Auth.Mode == "dev" {
		role := strings.ToLower(r.Header.Get("X-Role"))
		if role == "" {
			role = "user"
		}
		return auth.Principal{Role: role}, true
	}
	return auth.Principal{Role: "anonymous"}, true
}

// requireUser writes a 401 and reports false unless the caller is an
// authenticated user or admin.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) bool {
	p, ok := s.getPrincipal(r)
	if !ok || p.Role == "anonymous" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
		return false
	}
	return true
}

// requireAdmin writes a 401 or 403 and reports false unless the caller is an admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	p, ok := s.getPrincipal(r)
	if !ok || p.Role == "anonymous" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
		return false
	}
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return false
	}
	return true
}
