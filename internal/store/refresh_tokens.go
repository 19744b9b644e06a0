package store

import (
	"errors"
	"time"

	"github.com/go-authcore/authcore/internal/models"

	"gorm.io/gorm"
)

// CreateRefreshToken persists a new refresh token record.
func (s *Store) CreateRefreshToken(token *models.RefreshToken) error {
	return s.db.Create(token).Error
}

// GetRefreshTokenByHash looks up a refresh token by its SHA-256 hash.
func (s *Store) GetRefreshTokenByHash(hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.Where("token_hash = ?", hash).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RotateRefreshToken atomically retires old and persists successor in one
// transaction. The conditional update on the old row is the rotation lock:
// if it matches no rows a concurrent request already rotated or revoked the
// token, and the caller must treat the presentation as reuse.
func (s *Store) RotateRefreshToken(old *models.RefreshToken, successor *models.RefreshToken) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = ?", old.ID, false).
			Updates(map[string]any{
				"revoked":          true,
				"revoked_at":       now,
				"revoked_reason":   models.RevokeReasonRotated,
				"replaced_by_hash": successor.TokenHash,
				"last_used_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRefreshTokenRotated
		}
		return tx.Create(successor).Error
	})
}

// RevokeRefreshToken revokes a single token. Revoking an already revoked
// token is a no-op, which keeps RFC 7009 revocation idempotent.
func (s *Store) RevokeRefreshToken(id uint, reason string) error {
	now := time.Now()
	return s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}

// RevokeChainFrom walks the replaced_by_hash chain starting at startHash and
// revokes every descendant token. The walk is bounded by maxDepth so a
// corrupted chain (a cycle) cannot hang the request. Returns the number of
// tokens revoked.
func (s *Store) RevokeChainFrom(startHash, reason string, maxDepth int) (int, error) {
	revoked := 0
	hash := startHash

	for depth := 0; depth < maxDepth && hash != ""; depth++ {
		token, err := s.GetRefreshTokenByHash(hash)
		if errors.Is(err, ErrRecordNotFound) {
			break
		}
		if err != nil {
			return revoked, err
		}

		if !token.Revoked {
			if err := s.RevokeRefreshToken(token.ID, reason); err != nil {
				return revoked, err
			}
			revoked++
		}
		hash = token.ReplacedByHash
	}

	return revoked, nil
}

// RevokeAllForUser revokes every active refresh token belonging to the user,
// across all clients. Used by logout.
func (s *Store) RevokeAllForUser(userID uint, reason string) (int64, error) {
	now := time.Now()
	result := s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return result.RowsAffected, result.Error
}

// GetRefreshTokenByCodeID returns the family root minted from the given
// authorization code, if any. Used to cascade when a code replay is detected.
func (s *Store) GetRefreshTokenByCodeID(codeID uint) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.Where("authorization_code_id = ?", codeID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// CountActiveRefreshTokens counts live tokens. Feeds the metrics gauges.
func (s *Store) CountActiveRefreshTokens() (int64, error) {
	var count int64
	err := s.db.Model(&models.RefreshToken{}).
		Where("revoked = ? AND expires_at > ?", false, time.Now()).
		Count(&count).Error
	return count, err
}

// DeleteExpiredRefreshTokens purges tokens whose expiry is older than the
// retention window. Recently expired rows are kept so reuse detection and
// audits still see them.
func (s *Store) DeleteExpiredRefreshTokens(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.Where("expires_at < ?", cutoff).Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
