package calendar

import (
	"net/http"

	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/internal/tenancy"
)

// Guard rejects navigation with 423 Locked while the caller's onboarding is
// blocking. Mount it only on the routes onboarding should lock; the calendar
// routes themselves stay outside it. If the state cannot be read the request
// is allowed.
func (s *Service) Guard() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := tenancy.ScopeFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			state, err := s.Onboarding(r.Context(), scope.UserID)
			if err != nil {
				s.logger.Warn("calendar guard: onboarding state unavailable", "user_id", scope.UserID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if state.Blocking {
				handlers.WriteJSON(w, http.StatusLocked, map[string]any{
					"error":      "Finish connecting your calendar to continue",
					"onboarding": true,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
