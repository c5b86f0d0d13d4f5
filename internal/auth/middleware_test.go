package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/tenant"
)

type staticLoader struct {
	tenant *models.Tenant
	user   *models.User
}

func (l staticLoader) LoadPrincipal(_ context.Context, id uuid.UUID) (*models.Tenant, *models.User, error) {
	if l.user == nil || id != l.user.ID {
		return nil, nil, apperr.NotFound("test", "user %s", id)
	}
	return l.tenant, l.user, nil
}

func setup(status models.UserStatus) (*JWTMiddleware, *models.User) {
	tn := &models.Tenant{ID: uuid.New(), Name: "acme", Status: models.TenantActive}
	u := &models.User{ID: uuid.New(), TenantID: tn.ID, Email: "a@acme.io", Status: status}
	return NewJWTMiddleware("test-secret", staticLoader{tenant: tn, user: u}), u
}

func serve(m *JWTMiddleware, token string) (*httptest.ResponseRecorder, *tenant.Principal) {
	var seen *tenant.Principal
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tenant.PrincipalFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/permissions", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticateSetsPrincipal(t *testing.T) {
	m, u := setup(models.UserActive)
	token, err := m.IssueToken(u, time.Hour)
	require.NoError(t, err)

	rec, p := serve(m, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, p)
	assert.Equal(t, u.ID, p.User.ID)
	assert.Equal(t, u.TenantID, p.Tenant.ID)
}

func TestAuthenticateRejects(t *testing.T) {
	m, u := setup(models.UserActive)

	expired, err := m.IssueToken(u, -time.Minute)
	require.NoError(t, err)

	other := NewJWTMiddleware("other-secret", nil)
	forged, err := other.IssueToken(u, time.Hour)
	require.NoError(t, err)

	wrongTenant := *u
	wrongTenant.TenantID = uuid.New()
	mismatched, err := m.IssueToken(&wrongTenant, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TenantID:         u.TenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID.String()},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing":         "",
		"garbage":         "not-a-jwt",
		"expired":         expired,
		"forged":          forged,
		"tenant mismatch": mismatched,
		"no expiry":       noExp,
	} {
		rec, p := serve(m, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Nil(t, p, name)
	}
}

func TestAuthenticateRejectsDisabledUser(t *testing.T) {
	m, u := setup(models.UserDisabled)
	token, err := m.IssueToken(u, time.Hour)
	require.NoError(t, err)

	rec, _ := serve(m, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
