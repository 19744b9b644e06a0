package store

import (
	"errors"
	"time"

	"github.com/go-authcore/authcore/internal/models"

	"gorm.io/gorm"
)

// CreateAuthorizationCode persists a new authorization code record.
func (s *Store) CreateAuthorizationCode(code *models.AuthorizationCode) error {
	return s.db.Create(code).Error
}

// GetAuthorizationCodeByHash looks up a code by its SHA-256 hash.
func (s *Store) GetAuthorizationCodeByHash(hash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	err := s.db.Where("code_hash = ?", hash).First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// MarkAuthorizationCodeUsed atomically claims a code for redemption. The
// conditional update guarantees exactly one concurrent exchange wins; every
// other caller gets ErrAuthCodeAlreadyUsed.
func (s *Store) MarkAuthorizationCodeUsed(id uint) error {
	now := time.Now()
	result := s.db.Model(&models.AuthorizationCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuthCodeAlreadyUsed
	}
	return nil
}

// DeleteExpiredAuthorizationCodes purges codes past their expiry.
func (s *Store) DeleteExpiredAuthorizationCodes() (int64, error) {
	result := s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.AuthorizationCode{})
	return result.RowsAffected, result.Error
}

// CountPendingAuthorizationCodes counts unexpired, unredeemed codes. Feeds
// the metrics gauges.
func (s *Store) CountPendingAuthorizationCodes() (int64, error) {
	var count int64
	err := s.db.Model(&models.AuthorizationCode{}).
		Where("used_at IS NULL AND expires_at > ?", time.Now()).
		Count(&count).Error
	return count, err
}
