package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(Config{Secret: "test-secret"})
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(Config{})
	assert.Error(t, err)
}

func TestGenerateAndValidateServiceToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateServiceToken("proxy")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "service:proxy", claims.Subject)
	assert.Contains(t, claims.Roles, "service:proxy")
	assert.Equal(t, "catsync", claims.Issuer)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	// Wrong secret
	other, err := NewTokenService(Config{Secret: "other-secret"})
	require.NoError(t, err)
	token, err := other.GenerateServiceToken("proxy")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	// Wrong issuer
	foreign, err := NewTokenService(Config{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)
	token, err = foreign.GenerateServiceToken("proxy")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	// Expired
	expired, err := NewTokenService(Config{Secret: "test-secret", TokenTTL: -time.Minute})
	require.NoError(t, err)
	token, err = expired.GenerateServiceToken("proxy")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	var gotClaims *Claims
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/products", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bad token
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token
	token, err := svc.GenerateServiceToken("client")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "service:client", gotClaims.Subject)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, "catsync", c.Issuer)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.NoError(t, c.Validate())

	c = Config{Enabled: true}
	assert.Error(t, c.Validate())
	c.Secret = "s"
	assert.NoError(t, c.Validate())
}
