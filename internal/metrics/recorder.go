package metrics

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization code flow
	RecordAuthCodeIssued(success bool)
	RecordAuthCodeExchange(result string)

	// Token operations
	RecordTokenIssued(tokenType, grantType string, generationTime time.Duration)
	RecordTokenRefresh(success bool)
	RecordTokenRevoked(tokenType, reason string)
	RecordTokenReuseDetected()
	RecordTokenValidation(result string, duration time.Duration)
	RecordTokenIntrospection(active bool)

	// Authentication
	RecordLogin(provider string, success bool)
	RecordLogout(tokensRevoked int)
	RecordIdentityAPICall(operation string, duration time.Duration)

	// Gauge setters (periodic updates)
	SetActiveRefreshTokens(count int64)
	SetPendingAuthCodes(count int64)

	// Database operations
	RecordDatabaseQueryError(operation string)
}

// CounterStore defines the DB operations needed by CacheWrapper.
type CounterStore interface {
	CountActiveRefreshTokens() (int64, error)
	CountPendingAuthorizationCodes() (int64, error)
}
