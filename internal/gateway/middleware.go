package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// claimsFromContext returns the authenticated user's claims, or nil on
// unauthenticated paths.
func claimsFromContext(ctx context.Context) *types.UserClaims {
	claims, _ := ctx.Value(claimsContextKey).(*types.UserClaims)
	return claims
}

// sessionExpiredError is the uniform 401 body for missing, invalid, or
// expired tokens; clients treat it as a signal to re-authenticate.
func sessionExpiredError() *types.ClinicError {
	return types.NewAuthenticationError("SESSION_EXPIRED", "Your session has expired. Please sign in again.")
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", sessionExpiredError()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", sessionExpiredError()
	}

	return parts[1], nil
}

// isPublicPath reports whether a path bypasses auth, role guard, and rate
// limiting.
func isPublicPath(path string) bool {
	return path == "/health" || path == "/metrics" || path == "/api/v1/auth/refresh"
}

// corsMiddleware handles CORS headers and preflight requests
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with status and duration
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.HTTPRequest(r.Method, r.URL.Path, r.RemoteAddr,
			recorder.statusCode, time.Since(start).Milliseconds())
	})
}

// authMiddleware validates the bearer token and attaches the user claims to
// the request context
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		claims, validateErr := s.tokenValidator.ValidateJWT(tokenString)
		if validateErr != nil {
			s.logger.WithError(validateErr).Warn("Token validation failed")
			s.writeError(w, sessionExpiredError())
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// roleGuardMiddleware enforces the role required by the path's area prefix
func (s *Service) roleGuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		area, _ := splitArea(r.URL.Path)
		allowed, guarded := roleAreas[area]
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}

		claims := claimsFromContext(r.Context())
		if claims == nil {
			s.writeError(w, sessionExpiredError())
			return
		}

		for _, role := range allowed {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}

		s.logger.WithFields(map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
			"area":    area,
		}).Warn("Access denied by role guard")
		s.writeError(w, types.NewAuthorizationError("ROLE_NOT_ALLOWED",
			"your role does not grant access to this area"))
	})
}

// rateLimitMiddleware applies per-user rate limiting
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.RateLimit.Enabled || isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		claims := claimsFromContext(r.Context())
		if claims == nil {
			s.writeError(w, sessionExpiredError())
			return
		}

		allowed, err := s.rateLimiter.Allow(claims.UserID)
		if err != nil {
			s.writeError(w, types.NewInternalError("RATE_LIMIT_CHECK_FAILED", "rate limit check failed", err))
			return
		}
		if !allowed {
			s.logger.WithField("user_id", claims.UserID).Warn("Rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			s.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"success": false,
				"error": map[string]interface{}{
					"type":    "rate_limit",
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "too many requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// splitArea splits /api/v1/{area}/{rest} into its area prefix and remainder
func splitArea(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	parts := strings.SplitN(strings.Trim(trimmed, "/"), "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// firstSegment returns the first path segment of rest
func firstSegment(rest string) string {
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// statusRecorder captures the response status code for logging
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// writeSuccess writes a success envelope
func (s *Service) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	s.writeJSON(w, statusCode, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// writeError writes the error envelope for a ClinicError
func (s *Service) writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	payload := map[string]interface{}{
		"type":    types.ErrorTypeInternal,
		"code":    "INTERNAL_ERROR",
		"message": "internal error",
	}

	if clinicErr, ok := err.(*types.ClinicError); ok {
		statusCode = clinicErr.HTTPStatus()
		payload["type"] = clinicErr.Type
		payload["code"] = clinicErr.Code
		payload["message"] = clinicErr.Message
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   payload,
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
