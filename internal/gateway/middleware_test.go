package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

func setupTestGateway() *Service {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:      testSecret,
			AccessTokenTTL: 3600,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
		},
	}

	return &Service{
		config:         cfg,
		logger:         logger.New("error"),
		tokenValidator: NewTokenValidator(&cfg.JWT),
		rateLimiter:    NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute),
		proxies:        make(map[string]*httputil.ReverseProxy),
	}
}

func signedToken(t *testing.T, s *Service, role types.UserRole) string {
	t.Helper()
	validator := s.tokenValidator.(*TokenValidator)
	token, err := validator.GenerateToken(&types.UserClaims{
		UserID: "user-1",
		Role:   role,
	})
	require.NoError(t, err)
	return token.AccessToken
}

func decodeErrorEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Error   map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.False(t, envelope.Success)
	return envelope.Error
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	s := setupTestGateway()
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	}))

	req := httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeErrorEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "SESSION_EXPIRED", errBody["code"])
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	s := setupTestGateway()
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with an invalid token")
	}))

	req := httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeErrorEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "SESSION_EXPIRED", errBody["code"])
}

func TestAuthMiddleware_ValidTokenAttachesClaims(t *testing.T) {
	s := setupTestGateway()

	var gotClaims *types.UserClaims
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = claimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, s, types.RoleDoctor))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "user-1", gotClaims.UserID)
	assert.Equal(t, types.RoleDoctor, gotClaims.Role)
}

func TestAuthMiddleware_SkipsPublicPaths(t *testing.T) {
	s := setupTestGateway()
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func requestWithClaims(req *http.Request, claims *types.UserClaims) *http.Request {
	ctx := context.WithValue(req.Context(), claimsContextKey, claims)
	return req.WithContext(ctx)
}

func TestRoleGuard_DeniesWrongRole(t *testing.T) {
	s := setupTestGateway()
	handler := s.roleGuardMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for a disallowed role")
	}))

	req := httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil)
	req = requestWithClaims(req, &types.UserClaims{UserID: "user-1", Role: types.RolePatient})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	errBody := decodeErrorEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "ROLE_NOT_ALLOWED", errBody["code"])
}

func TestRoleGuard_AllowsMatchingRole(t *testing.T) {
	s := setupTestGateway()

	cases := []struct {
		path string
		role types.UserRole
	}{
		{"/api/v1/doctor/appointments", types.RoleDoctor},
		{"/api/v1/staff/invoices", types.RoleStaff},
		{"/api/v1/staff/invoices", types.RoleAdmin},
		{"/api/v1/patient/patients/p1/profile", types.RolePatient},
		{"/api/v1/admin/discount-codes", types.RoleManagement},
	}

	for _, tc := range cases {
		handler := s.roleGuardMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", tc.path, nil)
		req = requestWithClaims(req, &types.UserClaims{UserID: "user-1", Role: tc.role})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "%s as %s", tc.path, tc.role)
	}
}

func TestRateLimitMiddleware_Rejects(t *testing.T) {
	s := setupTestGateway()
	s.rateLimiter = NewRateLimiter(1, time.Minute)

	handler := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	claims := &types.UserClaims{UserID: "user-1", Role: types.RoleDoctor}

	req := requestWithClaims(httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil), claims)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = requestWithClaims(httptest.NewRequest("GET", "/api/v1/doctor/appointments", nil), claims)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestHandleProxy_RoutesAndStripsArea(t *testing.T) {
	var gotPath, gotUserID, gotRole string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUserID = r.Header.Get("X-User-ID")
		gotRole = r.Header.Get("X-User-Role")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	s := setupTestGateway()
	target, err := url.Parse(backend.URL)
	require.NoError(t, err)
	s.proxies["visit"] = httputil.NewSingleHostReverseProxy(target)

	req := httptest.NewRequest("GET", "/api/v1/doctor/appointments/apt-1", nil)
	req = requestWithClaims(req, &types.UserClaims{UserID: "user-1", Role: types.RoleDoctor})
	rec := httptest.NewRecorder()
	s.handleProxy(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/v1/appointments/apt-1", gotPath)
	assert.Equal(t, "user-1", gotUserID)
	assert.Equal(t, "doctor", gotRole)
}

func TestHandleProxy_UnknownResource(t *testing.T) {
	s := setupTestGateway()

	req := httptest.NewRequest("GET", "/api/v1/doctor/unknown-thing/1", nil)
	req = requestWithClaims(req, &types.UserClaims{UserID: "user-1", Role: types.RoleDoctor})
	rec := httptest.NewRecorder()
	s.handleProxy(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSplitArea(t *testing.T) {
	area, rest := splitArea("/api/v1/doctor/appointments/apt-1")
	assert.Equal(t, "doctor", area)
	assert.Equal(t, "appointments/apt-1", rest)

	area, rest = splitArea("/api/v1/staff")
	assert.Equal(t, "staff", area)
	assert.Equal(t, "", rest)
}
