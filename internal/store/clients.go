package store

import (
	"errors"

	"github.com/go-authcore/authcore/internal/models"

	"gorm.io/gorm"
)

// CreateClient persists a new client with its redirect URIs.
func (s *Store) CreateClient(client *models.OAuthClient) error {
	var count int64
	s.db.Model(&models.OAuthClient{}).Where("client_id = ?", client.ClientID).Count(&count)
	if count > 0 {
		return ErrClientIDConflict
	}
	return s.db.Create(client).Error
}

// GetActiveClientByClientID returns an active client with its redirect URIs.
// The hot path (authorize, token, revoke, introspect) must use this so
// deactivated clients disappear immediately.
func (s *Store) GetActiveClientByClientID(clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	err := s.db.Preload("RedirectURIs").
		Where("client_id = ? AND is_active = ?", clientID, true).
		First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetClientByClientID returns a client regardless of active state. Admin use.
func (s *Store) GetClientByClientID(clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	err := s.db.Preload("RedirectURIs").
		Where("client_id = ?", clientID).
		First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ListClients returns a page of clients with pagination metadata.
func (s *Store) ListClients(params PaginationParams) ([]models.OAuthClient, PaginationResult, error) {
	query := s.db.Model(&models.OAuthClient{})
	if params.Search != "" {
		query = query.Where("name LIKE ? OR client_id LIKE ?",
			"%"+params.Search+"%", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var clients []models.OAuthClient
	err := query.Preload("RedirectURIs").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&clients).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}

	return clients, CalculatePagination(total, params.Page, params.PageSize), nil
}

// UpdateClient saves client fields. Redirect URIs are managed separately.
func (s *Store) UpdateClient(client *models.OAuthClient) error {
	return s.db.Omit("RedirectURIs").Save(client).Error
}

// DeactivateClient soft-deletes a client. Existing rows are kept for audit.
func (s *Store) DeactivateClient(clientID string) error {
	result := s.db.Model(&models.OAuthClient{}).
		Where("client_id = ? AND is_active = ?", clientID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// RedirectURIExists reports whether any active client registered the URI.
func (s *Store) RedirectURIExists(uri string) (bool, error) {
	var count int64
	err := s.db.Model(&models.RedirectURI{}).
		Joins("JOIN o_auth_clients ON o_auth_clients.id = redirect_uris.client_id").
		Where("redirect_uris.uri = ? AND o_auth_clients.is_active = ?", uri, true).
		Count(&count).Error
	return count > 0, err
}

// AddRedirectURI registers a new redirect URI for a client.
func (s *Store) AddRedirectURI(uri *models.RedirectURI) error {
	return s.db.Create(uri).Error
}

// RemoveRedirectURI deletes a registered redirect URI by id.
func (s *Store) RemoveRedirectURI(clientID uint, uriID uint) error {
	result := s.db.Where("id = ? AND client_id = ?", uriID, clientID).
		Delete(&models.RedirectURI{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
