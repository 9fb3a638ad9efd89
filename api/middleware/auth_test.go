package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemi-ng/pickup-backend/pkg/auth"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "jemi"}

func signed(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.SignAccessToken(testJWT, auth.AccessTokenClaims{UserID: userID, Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingOrInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer invalid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, header)
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	userID := uuid.New()
	var gotID uuid.UUID
	var gotRole enums.Role
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserUUIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+signed(t, userID, enums.RoleStaff))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, enums.RoleStaff, gotRole)
}

func TestRequireOrderManager(t *testing.T) {
	handler := RequireOrderManager(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[enums.Role]int{
		enums.RoleCustomer: http.StatusForbidden,
		enums.RoleStaff:    http.StatusNoContent,
		enums.RoleAdmin:    http.StatusNoContent,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), uuid.New(), role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, want, resp.Code, role)
	}
}

func TestRecovererRendersInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "req-123", resp.Header().Get(requestIDHeader))

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(resp.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}
