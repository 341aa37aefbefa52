package auth

import (
	"net/http"
	"strings"

	"github.com/esakrissa/modern-isoner/internal/platform/httpx"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Middleware extracts the bearer token and stores the caller identity in
// the request context. Requests without a valid token are rejected.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		userID, err := s.ParseToken(strings.TrimSpace(token))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), userID)))
	})
}
