package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const scopeKey ctxKey = "clinic.scope"

// Role is the console role carried in the caller's token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

// Scope describes whose appointments a screen shows: every clinic for an
// admin, a single clinic/doctor pair for a doctor.
type Scope struct {
	UserID   string
	Role     Role
	ClinicID int
	DoctorID int
}

// AllClinics reports whether the scope spans every clinic.
func (s Scope) AllClinics() bool {
	return s.Role == RoleAdmin && s.DoctorID == 0
}

// Valid reports whether the scope can be used for a backend fetch.
func (s Scope) Valid() bool {
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleDoctor:
		return s.ClinicID > 0 && s.DoctorID > 0
	default:
		return false
	}
}

// ParseRole normalizes a role claim.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "superadmin", "super_admin":
		return RoleAdmin
	case "doctor":
		return RoleDoctor
	default:
		return ""
	}
}

// WithScope stores the caller's scope in context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext extracts the scope if present and usable.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(Scope)
	return scope, ok && scope.Valid()
}
