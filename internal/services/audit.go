package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/util"
)

const (
	auditBatchSize     = 100
	auditFlushInterval = 1 * time.Second
)

// AuditEntry is the data needed to record one security event.
type AuditEntry struct {
	EventType string
	Severity  string
	ClientID  string
	UserID    string
	IP        string
	Details   models.AuditDetails
}

// AuditService records security events asynchronously. Entries are buffered
// on a channel and flushed in batches, so audit writes never block the
// request path. A full buffer drops events rather than stalling requests.
type AuditService struct {
	store   *store.Store
	enabled bool

	logChan chan models.AuditLog

	batchBuffer []models.AuditLog
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// NewAuditService creates the audit service and starts its worker when
// enabled.
func NewAuditService(s *store.Store, enabled bool, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	service := &AuditService{
		store:       s,
		enabled:     enabled,
		logChan:     make(chan models.AuditLog, bufferSize),
		batchBuffer: make([]models.AuditLog, 0, auditBatchSize),
		batchTicker: time.NewTicker(auditFlushInterval),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.wg.Add(1)
		go service.worker()
		log.Printf("Audit service started with buffer size %d", bufferSize)
	} else {
		log.Println("Audit service is disabled")
	}

	return service
}

func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)

		case <-s.batchTicker.C:
			s.flushBatch()

		case <-s.shutdownCh:
			// Drain whatever is still queued, then flush once
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flushBatch()
					return
				}
			}
		}
	}
}

func (s *AuditService) addToBatch(entry models.AuditLog) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, entry)
	if len(s.batchBuffer) >= auditBatchSize {
		s.flushBatchUnsafe()
	}
}

func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// caller must hold batchMutex
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	if err := s.store.CreateAuditLogs(toWrite); err != nil {
		log.Printf("Failed to write audit log batch: %v", err)
	}
}

// Log records an event asynchronously.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) {
	if !s.enabled {
		return
	}

	if entry.IP == "" {
		entry.IP = util.GetIPFromContext(ctx)
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	record := models.AuditLog{
		EventType: entry.EventType,
		Severity:  entry.Severity,
		ClientID:  entry.ClientID,
		UserID:    entry.UserID,
		IPAddress: entry.IP,
		Details:   maskSensitiveDetails(entry.Details),
		CreatedAt: time.Now(),
	}

	select {
	case s.logChan <- record:
	default:
		log.Printf("WARNING: Audit log buffer full, dropping event: %s", entry.EventType)
	}
}

// List retrieves audit logs with pagination and filtering.
func (s *AuditService) List(
	filters store.AuditLogFilters,
	params store.PaginationParams,
) ([]models.AuditLog, store.PaginationResult, error) {
	return s.store.ListAuditLogs(filters, params)
}

// CleanupOldLogs deletes audit logs older than the retention period.
func (s *AuditService) CleanupOldLogs(retention time.Duration) (int64, error) {
	return s.store.DeleteAuditLogsBefore(time.Now().Add(-retention))
}

// Shutdown stops the worker after flushing pending entries.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	close(s.shutdownCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.batchTicker.Stop()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timed out: %w", ctx.Err())
	}
}

// fully redacted detail keys
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"client_secret": {},
	"secret":        {},
	"token":         {},
	"refresh_token": {},
	"access_token":  {},
	"code":          {},
	"code_verifier": {},
}

// maskSensitiveDetails redacts credentials and shortens token identifiers so
// full token material never reaches the audit table.
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return nil
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		lower := strings.ToLower(key)

		if _, redact := sensitiveKeys[lower]; redact {
			masked[key] = "[REDACTED]"
			continue
		}

		if lower == "token_prefix" || lower == "code_prefix" {
			masked[key] = value
			continue
		}

		// Shorten anything that looks like a full token identifier
		if strings.HasSuffix(lower, "_token_value") {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}
	return masked
}
