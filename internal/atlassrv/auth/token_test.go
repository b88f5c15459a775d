package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/common/uuid"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newAuth() *Authenticator {
	return NewAuthenticator(config.AuthConfig{SigningKey: testKey, Issuer: "atlas", ClockSkew: "1m"})
}

func TestCreateAndValidateToken(t *testing.T) {
	a := newAuth()
	user := uuid.New()
	token, expiry, err := a.CreateToken(user, true, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	uc, err := a.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user, uc.UserID)
	assert.True(t, uc.Admin)
}

func TestValidateTokenRejects(t *testing.T) {
	a := newAuth()
	user := uuid.New()

	expired, _, err := a.CreateToken(user, false, -2*time.Minute)
	require.NoError(t, err)

	other := NewAuthenticator(config.AuthConfig{SigningKey: "ffffffffffffffffffffffffffffffff", Issuer: "atlas"})
	wrongKey, _, err := other.CreateToken(user, false, time.Hour)
	require.NoError(t, err)

	foreign := NewAuthenticator(config.AuthConfig{SigningKey: testKey, Issuer: "someone-else"})
	wrongIssuer, _, err := foreign.CreateToken(user, false, time.Hour)
	require.NoError(t, err)

	noExpiry, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.String(), "iss": "atlas",
	}).SignedString([]byte(testKey))
	require.NoError(t, signErr)

	badSubject, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid", "iss": "atlas", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, signErr)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"bad subject":  badSubject,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.ValidateToken(context.Background(), token)
			require.Error(t, err)
			assert.Equal(t, http.StatusUnauthorized, err.StatusCode())
		})
	}

	// within clock skew
	recent, _, err := a.CreateToken(user, false, -30*time.Second)
	require.NoError(t, err)
	_, err = a.ValidateToken(context.Background(), recent)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	a := newAuth()
	user := uuid.New()
	var seen *atlascommon.UserContext
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = atlascommon.GetUserContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	userOnly := a.UserMiddleware(final)
	adminOnly := a.UserMiddleware(AdminMiddleware(final))

	userToken, _, _ := a.CreateToken(user, false, time.Hour)
	adminToken, _, _ := a.CreateToken(user, true, time.Hour)

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
	}{
		{"no header", userOnly, "", http.StatusUnauthorized},
		{"basic auth", userOnly, "Basic abc", http.StatusUnauthorized},
		{"bad token", userOnly, "Bearer nope", http.StatusUnauthorized},
		{"user", userOnly, "Bearer " + userToken, http.StatusNoContent},
		{"user on admin route", adminOnly, "Bearer " + userToken, http.StatusForbidden},
		{"admin", adminOnly, "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, user, seen.UserID)
			}
		})
	}
}
