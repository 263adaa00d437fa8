package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menusam/partner-billing/pkg/auth"
	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "auth-gateway"}

func mintTestToken(t *testing.T, role enums.ActorRole, establishmentID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, auth.AccessTokenPayload{
		UserID:          uuid.New(),
		Role:            role,
		EstablishmentID: establishmentID,
	})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func call(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	establishmentID := uuid.New()
	partner := mintTestToken(t, enums.ActorRolePartner, &establishmentID)
	foreign := config.JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}

	cases := map[string]struct {
		cfg    config.JWTConfig
		header string
	}{
		"missing header": {testJWT, ""},
		"empty bearer":   {testJWT, "Bearer   "},
		"garbage token":  {testJWT, "Bearer invalid"},
		"foreign issuer": {foreign, "Bearer " + partner},
		"wrong secret":   {config.JWTConfig{Secret: "other", Issuer: testJWT.Issuer}, "Bearer " + partner},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := call(Auth(tc.cfg, nil)(okHandler()), tc.header)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthStoresCaller(t *testing.T) {
	establishmentID := uuid.New()
	token := mintTestToken(t, enums.ActorRolePartner, &establishmentID)

	var caller Caller
	var found bool
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, found = CallerFromContext(r.Context())
	}))

	for _, header := range []string{"Bearer " + token, "bearer " + token, token} {
		found = false
		resp := call(handler, header)
		require.Equal(t, http.StatusOK, resp.Code)
		require.True(t, found)
		assert.NotEqual(t, uuid.Nil, caller.UserID)
		assert.Equal(t, enums.ActorRolePartner, caller.Role)
		est, ok := caller.Establishment()
		assert.True(t, ok)
		assert.Equal(t, establishmentID, est)
	}
}

func TestRequireRole(t *testing.T) {
	admin := "Bearer " + mintTestToken(t, enums.ActorRoleAdmin, nil)

	resp := call(Auth(testJWT, nil)(RequireRole(enums.ActorRolePartner, nil)(okHandler())), admin)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = call(Auth(testJWT, nil)(RequireRole(enums.ActorRoleAdmin, nil)(okHandler())), admin)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRequireRoleWithoutCaller(t *testing.T) {
	resp := call(RequireRole(enums.ActorRoleAdmin, nil)(okHandler()), "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequirePartnerRoleNeedsEstablishment(t *testing.T) {
	handler := RequireRole(enums.ActorRolePartner, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithCaller(req.Context(), Caller{UserID: uuid.New(), Role: enums.ActorRolePartner}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	establishmentID := uuid.New()
	req = req.WithContext(WithCaller(req.Context(), Caller{UserID: uuid.New(), Role: enums.ActorRolePartner, EstablishmentID: &establishmentID}))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
