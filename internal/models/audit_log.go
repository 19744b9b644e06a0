package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event types
const (
	EventAuthCodeIssued    = "auth_code.issued"
	EventAuthCodeExchanged = "auth_code.exchanged"
	EventAuthCodeReplayed  = "auth_code.replayed"
	EventTokenIssued       = "token.issued"
	EventTokenRefreshed    = "token.refreshed"
	EventTokenRevoked      = "token.revoked"
	EventTokenReuse        = "token.reuse_detected"
	EventLoginSuccess      = "login.success"
	EventLoginFailure      = "login.failure"
	EventLogout            = "logout"
	EventClientCreated     = "client.created"
	EventClientUpdated     = "client.updated"
	EventClientDeactivated = "client.deactivated"
	EventRateLimited       = "rate_limit.exceeded"
)

// Audit severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AuditDetails is a JSON column holding structured event context.
type AuditDetails map[string]any

// Value implements driver.Valuer.
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *AuditDetails) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("unsupported audit details type %T", value)
	}
}

// AuditLog is an append-only security event record. Token values never appear
// here in full; the audit service masks sensitive details before writing.
type AuditLog struct {
	ID        uint   `gorm:"primarykey"`
	EventType string `gorm:"index;not null"`
	Severity  string `gorm:"index;default:info"`
	ClientID  string `gorm:"index"`
	UserID    string `gorm:"index"`
	IPAddress string
	Details   AuditDetails `gorm:"type:json"`
	CreatedAt time.Time    `gorm:"index"`
}
