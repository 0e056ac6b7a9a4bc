package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
		[]string{"database", "service"},
	)

	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Visit workflow metrics
	visitStageSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visit_stage_saves_total",
			Help: "Total number of visit workflow stage saves",
		},
		[]string{"stage", "status", "service"},
	)

	appointmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_status_transitions_total",
			Help: "Total number of appointment status transitions",
		},
		[]string{"from", "to", "status", "service"},
	)

	// Billing metrics
	invoiceFinalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_finalizations_total",
			Help: "Total number of invoice finalizations",
		},
		[]string{"payment_method", "status", "service"},
	)

	discountApplicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_applications_total",
			Help: "Total number of discount code applications",
		},
		[]string{"status", "service"},
	)

	// Profile gate metrics
	profileChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_completeness_checks_total",
			Help: "Total number of profile completeness checks",
		},
		[]string{"result", "service"},
	)

	// Broker metrics
	brokerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_events_total",
			Help: "Total number of broker events published or consumed",
		},
		[]string{"topic", "direction", "status", "service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	// Register metrics
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		dbConnectionsActive,
		dbQueryDuration,
		visitStageSavesTotal,
		appointmentTransitionsTotal,
		invoiceFinalizationsTotal,
		discountApplicationsTotal,
		profileChecksTotal,
		brokerEventsTotal,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBConnection records database connection metrics
func (m *MetricsCollector) RecordDBConnection(database string, activeConnections int) {
	dbConnectionsActive.WithLabelValues(database, m.serviceName).Set(float64(activeConnections))
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordStageSave records a visit workflow stage save attempt
func (m *MetricsCollector) RecordStageSave(stage string, success bool) {
	visitStageSavesTotal.WithLabelValues(stage, statusLabel(success), m.serviceName).Inc()
}

// RecordStatusTransition records an appointment status transition attempt
func (m *MetricsCollector) RecordStatusTransition(from, to string, success bool) {
	appointmentTransitionsTotal.WithLabelValues(from, to, statusLabel(success), m.serviceName).Inc()
}

// RecordFinalization records an invoice finalization attempt
func (m *MetricsCollector) RecordFinalization(paymentMethod string, success bool) {
	invoiceFinalizationsTotal.WithLabelValues(paymentMethod, statusLabel(success), m.serviceName).Inc()
}

// RecordDiscountApplication records a discount code application attempt
func (m *MetricsCollector) RecordDiscountApplication(success bool) {
	discountApplicationsTotal.WithLabelValues(statusLabel(success), m.serviceName).Inc()
}

// RecordProfileCheck records a profile completeness check result
func (m *MetricsCollector) RecordProfileCheck(result string) {
	profileChecksTotal.WithLabelValues(result, m.serviceName).Inc()
}

// RecordBrokerEvent records a broker publish or consume
func (m *MetricsCollector) RecordBrokerEvent(topic, direction string, success bool) {
	brokerEventsTotal.WithLabelValues(topic, direction, statusLabel(success), m.serviceName).Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
