package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/internal/tenancy"
)

const (
	clinicHeader = "X-Clinic-Id"
	doctorHeader = "X-Doctor-Id"
)

// narrowScope lets an admin view a single doctor's screens by sending
// X-Clinic-Id and X-Doctor-Id. Doctor callers are already pinned and the
// headers are ignored for them.
func narrowScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := tenancy.ScopeFromContext(r.Context())
		if !ok || scope.Role != tenancy.RoleAdmin {
			next.ServeHTTP(w, r)
			return
		}
		doctorID, err := headerInt(r, doctorHeader)
		if err != nil {
			handlers.JSONError(w, "invalid "+doctorHeader, http.StatusBadRequest)
			return
		}
		clinicID, err := headerInt(r, clinicHeader)
		if err != nil {
			handlers.JSONError(w, "invalid "+clinicHeader, http.StatusBadRequest)
			return
		}
		if doctorID == 0 && clinicID == 0 {
			next.ServeHTTP(w, r)
			return
		}
		scope.DoctorID = doctorID
		scope.ClinicID = clinicID
		next.ServeHTTP(w, r.WithContext(tenancy.WithScope(r.Context(), scope)))
	})
}

func headerInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
