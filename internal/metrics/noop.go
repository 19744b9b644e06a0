package metrics

import "time"

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NoopMetrics is a Recorder that does nothing. Used when metrics are
// disabled so call sites never need nil checks.
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-op metrics recorder
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthCodeIssued(success bool)                                     {}
func (n *NoopMetrics) RecordAuthCodeExchange(result string)                                  {}
func (n *NoopMetrics) RecordTokenIssued(tokenType, grantType string, d time.Duration)        {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                                       {}
func (n *NoopMetrics) RecordTokenRevoked(tokenType, reason string)                           {}
func (n *NoopMetrics) RecordTokenReuseDetected()                                             {}
func (n *NoopMetrics) RecordTokenValidation(result string, duration time.Duration)           {}
func (n *NoopMetrics) RecordTokenIntrospection(active bool)                                  {}
func (n *NoopMetrics) RecordLogin(provider string, success bool)                             {}
func (n *NoopMetrics) RecordLogout(tokensRevoked int)                                        {}
func (n *NoopMetrics) RecordIdentityAPICall(operation string, duration time.Duration)        {}
func (n *NoopMetrics) SetActiveRefreshTokens(count int64)                                    {}
func (n *NoopMetrics) SetPendingAuthCodes(count int64)                                       {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)                             {}
