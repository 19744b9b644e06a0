package store

import (
	"time"

	"github.com/go-authcore/authcore/internal/models"
)

// AuditLogFilters narrows audit log queries. Zero values mean no filter.
type AuditLogFilters struct {
	EventType string
	Severity  string
	ClientID  string
	UserID    string
	From      time.Time
	To        time.Time
}

// CreateAuditLogs inserts a batch of audit entries in one statement.
func (s *Store) CreateAuditLogs(entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Create(&entries).Error
}

// ListAuditLogs returns a filtered page of audit entries, newest first.
func (s *Store) ListAuditLogs(
	filters AuditLogFilters,
	params PaginationParams,
) ([]models.AuditLog, PaginationResult, error) {
	query := s.db.Model(&models.AuditLog{})

	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.ClientID != "" {
		query = query.Where("client_id = ?", filters.ClientID)
	}
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if !filters.From.IsZero() {
		query = query.Where("created_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		query = query.Where("created_at <= ?", filters.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var entries []models.AuditLog
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&entries).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}

	return entries, CalculatePagination(total, params.Page, params.PageSize), nil
}

// DeleteAuditLogsBefore purges audit entries older than the cutoff.
func (s *Store) DeleteAuditLogsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
