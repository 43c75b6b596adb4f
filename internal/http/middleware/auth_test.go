package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-console/internal/tenancy"
)

func signedConsoleToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(5 * time.Minute).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func serveAuth(secret, header string) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	mw := ConsoleJWT(secret, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestConsoleJWTMissingSecret(t *testing.T) {
	rec, seen := serveAuth("", "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestConsoleJWTMissingHeader(t *testing.T) {
	rec, seen := serveAuth("secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
	assert.JSONEq(t, `{"error":"missing authorization header"}`, rec.Body.String())
}

func TestConsoleJWTWrongSecret(t *testing.T) {
	token := signedConsoleToken(t, "wrong", jwt.MapClaims{"sub": "u1", "role": "admin"})
	rec, seen := serveAuth("secret", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestConsoleJWTExpired(t *testing.T) {
	token := signedConsoleToken(t, "secret", jwt.MapClaims{
		"sub": "u1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	rec, _ := serveAuth("secret", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsoleJWTAdminScope(t *testing.T) {
	token := signedConsoleToken(t, "secret", jwt.MapClaims{"sub": "admin-1", "role": "superadmin"})
	rec, seen := serveAuth("secret", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)

	scope, ok := tenancy.ScopeFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, tenancy.RoleAdmin, scope.Role)
	assert.Equal(t, "admin-1", scope.UserID)
	assert.True(t, scope.AllClinics())

	claims, ok := ConsoleClaimsFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, "superadmin", claims.Role)
}

func TestConsoleJWTDoctorScopeStringIDs(t *testing.T) {
	token := signedConsoleToken(t, "secret", jwt.MapClaims{
		"sub": "doc-9", "role": "doctor", "clinic_id": "3", "doctor_id": 9,
	})
	rec, seen := serveAuth("secret", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)

	scope, ok := tenancy.ScopeFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, tenancy.Scope{UserID: "doc-9", Role: tenancy.RoleDoctor, ClinicID: 3, DoctorID: 9}, scope)
}

func TestConsoleJWTDoctorWithoutIDsForbidden(t *testing.T) {
	token := signedConsoleToken(t, "secret", jwt.MapClaims{"sub": "doc-9", "role": "doctor"})
	rec, seen := serveAuth("secret", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, seen)
}

func TestConsoleJWTUnknownRoleForbidden(t *testing.T) {
	token := signedConsoleToken(t, "secret", jwt.MapClaims{"sub": "p-1", "role": "patient"})
	rec, _ := serveAuth("secret", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
