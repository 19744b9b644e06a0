package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authorization code flow
	AuthCodesIssuedTotal   *prometheus.CounterVec
	AuthCodeExchangeTotal  *prometheus.CounterVec
	AuthCodesPendingGauge  prometheus.Gauge

	// Tokens
	TokensIssuedTotal        *prometheus.CounterVec
	TokensRevokedTotal       *prometheus.CounterVec
	TokensRefreshedTotal     *prometheus.CounterVec
	TokenReuseDetectedTotal  prometheus.Counter
	TokenValidationTotal     *prometheus.CounterVec
	TokenIntrospectionTotal  *prometheus.CounterVec
	RefreshTokensActiveGauge prometheus.Gauge
	TokenGenerationDuration  prometheus.Histogram
	TokenValidationDuration  prometheus.Histogram

	// Authentication
	LoginTotal              *prometheus.CounterVec
	LogoutTotal             prometheus.Counter
	LogoutTokensRevoked     prometheus.Counter
	IdentityAPICallDuration *prometheus.HistogramVec

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=true, returns Prometheus-based Metrics; if enabled=false,
// returns NoopMetrics. sync.Once guards double registration.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		AuthCodesIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_auth_codes_issued_total",
				Help: "Total number of authorization codes issued",
			},
			[]string{"result"}, // success, error
		),
		AuthCodeExchangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_auth_code_exchange_total",
				Help: "Total number of authorization code exchange attempts",
			},
			[]string{"result"}, // success, expired, replayed, invalid
		),
		AuthCodesPendingGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_auth_codes_pending",
				Help: "Current number of unexpired, unredeemed authorization codes",
			},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type", "grant_type"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"reason"},
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of refresh token exchanges",
			},
			[]string{"result"},
		),
		TokenReuseDetectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_token_reuse_detected_total",
				Help: "Total number of refresh token reuse detections",
			},
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validation_total",
				Help: "Total number of access token validations",
			},
			[]string{"result"}, // valid, invalid, expired
		),
		TokenIntrospectionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_introspection_total",
				Help: "Total number of introspection requests",
			},
			[]string{"active"},
		),
		RefreshTokensActiveGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_refresh_tokens_active",
				Help: "Current number of active refresh tokens",
			},
		),
		TokenGenerationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to mint a token set",
				Buckets: prometheus.DefBuckets,
			},
		),
		TokenValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_validation_duration_seconds",
				Help:    "Time taken to validate an access token",
				Buckets: prometheus.DefBuckets,
			},
		),

		LoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"provider", "result"},
		),
		LogoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logout_total",
				Help: "Total number of logout requests",
			},
		),
		LogoutTokensRevoked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logout_tokens_revoked_total",
				Help: "Total number of refresh tokens revoked by logout",
			},
		),
		IdentityAPICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_api_call_duration_seconds",
				Help:    "Duration of external identity API calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}
}

// RecordAuthCodeIssued records authorization code issuance
func (m *Metrics) RecordAuthCodeIssued(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.AuthCodesIssuedTotal.WithLabelValues(result).Inc()
	if success {
		m.AuthCodesPendingGauge.Inc()
	}
}

// RecordAuthCodeExchange records an exchange attempt.
// result: success, expired, replayed, invalid
func (m *Metrics) RecordAuthCodeExchange(result string) {
	m.AuthCodeExchangeTotal.WithLabelValues(result).Inc()
	if result == resultSuccess {
		m.AuthCodesPendingGauge.Dec()
	}
}

// RecordTokenIssued records token issuance
func (m *Metrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokenGenerationDuration.Observe(generationTime.Seconds())
}

// RecordTokenRefresh records a refresh token exchange attempt
func (m *Metrics) RecordTokenRefresh(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.TokensRefreshedTotal.WithLabelValues(result).Inc()
}

// RecordTokenRevoked records token revocation
func (m *Metrics) RecordTokenRevoked(tokenType, reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
}

// RecordTokenReuseDetected records a refresh token reuse detection
func (m *Metrics) RecordTokenReuseDetected() {
	m.TokenReuseDetectedTotal.Inc()
}

// RecordTokenValidation records an access token validation
// result: valid, invalid, expired
func (m *Metrics) RecordTokenValidation(result string, duration time.Duration) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
	m.TokenValidationDuration.Observe(duration.Seconds())
}

// RecordTokenIntrospection records an introspection request
func (m *Metrics) RecordTokenIntrospection(active bool) {
	label := "true"
	if !active {
		label = "false"
	}
	m.TokenIntrospectionTotal.WithLabelValues(label).Inc()
}

// RecordLogin records a login attempt
func (m *Metrics) RecordLogin(provider string, success bool) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.LoginTotal.WithLabelValues(provider, result).Inc()
}

// RecordLogout records a logout and the size of the revocation it caused
func (m *Metrics) RecordLogout(tokensRevoked int) {
	m.LogoutTotal.Inc()
	m.LogoutTokensRevoked.Add(float64(tokensRevoked))
}

// RecordIdentityAPICall records an external identity API call duration
func (m *Metrics) RecordIdentityAPICall(operation string, duration time.Duration) {
	m.IdentityAPICallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveRefreshTokens sets the active refresh token gauge (periodic updates)
func (m *Metrics) SetActiveRefreshTokens(count int64) {
	m.RefreshTokensActiveGauge.Set(float64(count))
}

// SetPendingAuthCodes sets the pending authorization code gauge (periodic updates)
func (m *Metrics) SetPendingAuthCodes(count int64) {
	m.AuthCodesPendingGauge.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
