package gateway

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/monitoring"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Service implements the API Gateway: token validation, role-guarded
// routing, rate limiting, and reverse proxying to the domain services.
type Service struct {
	config         *config.Config
	logger         *logger.Logger
	tokenValidator interfaces.TokenValidator
	rateLimiter    interfaces.RateLimiter
	router         *mux.Router
	server         *http.Server
	metrics        *monitoring.MetricsCollector
	health         *monitoring.HealthManager

	proxies map[string]*httputil.ReverseProxy
}

// resourceServices maps the first resource segment of a proxied path to the
// downstream service that owns it.
var resourceServices = map[string]string{
	"appointments":   "visit",
	"invoices":       "billing",
	"discount-codes": "billing",
	"patients":       "patient",
}

// roleAreas maps the role prefix of a proxied path to the roles allowed
// through it.
var roleAreas = map[string][]types.UserRole{
	"doctor":  {types.RoleDoctor},
	"staff":   {types.RoleStaff, types.RoleAdmin},
	"patient": {types.RolePatient},
	"admin":   {types.RoleAdmin, types.RoleManagement},
}

// New creates a new API Gateway service
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	metrics := monitoring.NewMetricsCollector("api-gateway")
	health := monitoring.NewHealthManager("api-gateway", "1.0.0")

	s := &Service{
		config:         cfg,
		logger:         log,
		tokenValidator: NewTokenValidator(&cfg.JWT),
		rateLimiter:    NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute),
		router:         mux.NewRouter(),
		metrics:        metrics,
		health:         health,
		proxies:        make(map[string]*httputil.ReverseProxy),
	}

	downstreams := map[string]string{
		"visit":   cfg.Services.VisitURL,
		"billing": cfg.Services.BillingURL,
		"patient": cfg.Services.PatientURL,
	}
	for name, rawURL := range downstreams {
		target, err := url.Parse(rawURL)
		if err != nil {
			return nil, types.NewInternalError("INVALID_SERVICE_URL", "invalid downstream service URL: "+rawURL, err)
		}
		s.proxies[name] = httputil.NewSingleHostReverseProxy(target)
		health.RegisterChecker(name, monitoring.NewHTTPHealthChecker(rawURL+"/health", 5*time.Second))
	}

	s.setupRoutes()
	s.setupMiddleware()

	return s, nil
}

// setupRoutes sets up the routing
func (s *Service) setupRoutes() {
	s.router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.router.HandleFunc("/api/v1/auth/refresh", s.handleRefreshToken).Methods("POST")

	// All domain requests go through the proxy handler
	s.router.PathPrefix("/api/v1/").HandlerFunc(s.handleProxy)
}

// setupMiddleware sets up middleware. Order matters: metrics and logging
// observe everything, auth runs before the role guard and rate limiter.
func (s *Service) setupMiddleware() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.metrics.HTTPMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
	s.router.Use(s.roleGuardMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}

// handleProxy routes /api/v1/{area}/{resource}/... to the service owning
// the resource, stripping the role area so downstream services see
// /api/v1/{resource}/...
func (s *Service) handleProxy(w http.ResponseWriter, r *http.Request) {
	area, rest := splitArea(r.URL.Path)
	if _, ok := roleAreas[area]; !ok {
		s.writeError(w, types.NewNotFoundError("UNKNOWN_ROUTE", "unknown route"))
		return
	}

	resource := firstSegment(rest)
	serviceName, ok := resourceServices[resource]
	if !ok {
		s.writeError(w, types.NewNotFoundError("UNKNOWN_RESOURCE", "unknown resource: "+resource))
		return
	}

	proxy := s.proxies[serviceName]

	claims := claimsFromContext(r.Context())
	if claims != nil {
		r.Header.Set("X-User-ID", claims.UserID)
		r.Header.Set("X-User-Role", string(claims.Role))
	}

	r.URL.Path = "/api/v1/" + rest
	proxy.ServeHTTP(w, r)
}

// handleRefreshToken exchanges a still-valid token for a fresh one
func (s *Service) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, refreshErr := s.tokenValidator.RefreshToken(tokenString)
	if refreshErr != nil {
		s.logger.WithError(refreshErr).Warn("Token refresh failed")
		s.writeError(w, sessionExpiredError())
		return
	}

	s.writeSuccess(w, http.StatusOK, token)
}

// Start starts the API Gateway server
func (s *Service) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	if rl, ok := s.rateLimiter.(*RateLimiter); ok && s.config.RateLimit.Enabled {
		interval := time.Duration(s.config.RateLimit.CleanupInterval) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		rl.StartCleanup(interval)
	}

	s.logger.WithField("addr", addr).Info("Starting API Gateway")
	return s.server.ListenAndServe()
}

// Stop stops the API Gateway server
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Stopping API Gateway")
	return s.server.Shutdown(ctx)
}
