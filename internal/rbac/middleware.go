package rbac

import (
	"log/slog"
	"net/http"

	"github.com/esakrissa/modern-isoner/internal/platform/httpx"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// DecisionObserver counts resolver outcomes. Satisfied by
// *observability.Metrics.
type DecisionObserver interface {
	RecordAuthzDecision(granted bool)
}

// Middleware wires permission checks for HTTP handlers. Fail-closed: a
// request without an authenticated caller, or whose caller lacks the
// permission, never reaches the next handler.
type Middleware struct {
	Service  *Service
	Logger   *slog.Logger
	Observer DecisionObserver
}

// Require ensures the current caller holds the named permission.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := shared.CallerFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			granted, err := m.Service.HasPermission(r.Context(), caller, permission)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.String("permission", permission), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if m.Observer != nil {
				m.Observer.RecordAuthzDecision(granted)
			}
			if !granted {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
