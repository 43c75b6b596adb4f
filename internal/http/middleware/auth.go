package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-console/internal/backend"
	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

type contextKey string

const consoleClaimsKey contextKey = "consoleClaims"

// ConsoleClaims is the token issued to console users. Clinic and doctor ids
// may arrive as numbers or numeric strings.
type ConsoleClaims struct {
	Role     string  `json:"role"`
	ClinicID flexInt `json:"clinic_id,omitempty"`
	DoctorID flexInt `json:"doctor_id,omitempty"`
	Email    string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

// Scope turns the claims into the caller's tenancy scope.
func (c ConsoleClaims) Scope() tenancy.Scope {
	return tenancy.Scope{
		UserID:   c.Subject,
		Role:     tenancy.ParseRole(c.Role),
		ClinicID: int(c.ClinicID),
		DoctorID: int(c.DoctorID),
	}
}

// ConsoleJWT validates the HMAC-signed console token, stores the caller's
// scope in context and forwards the raw token to backend calls.
func ConsoleJWT(secret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				handlers.JSONError(w, "console auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				handlers.JSONError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			claims := ConsoleClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Debug("console token rejected", "error", err)
				handlers.JSONError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			scope := claims.Scope()
			if !scope.Valid() {
				handlers.JSONError(w, "token does not grant console access", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), consoleClaimsKey, claims)
			ctx = tenancy.WithScope(ctx, scope)
			ctx = backend.WithAuthToken(ctx, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ConsoleClaimsFromContext returns the console JWT claims if present.
func ConsoleClaimsFromContext(ctx context.Context) (ConsoleClaims, bool) {
	claims, ok := ctx.Value(consoleClaimsKey).(ConsoleClaims)
	return claims, ok
}
