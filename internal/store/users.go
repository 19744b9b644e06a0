package store

import (
	"errors"
	"sort"

	"github.com/go-authcore/authcore/internal/models"

	"gorm.io/gorm"
)

// CreateUser persists a new user.
func (s *Store) CreateUser(user *models.User) error {
	var count int64
	s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", user.Username, user.Email).
		Count(&count)
	if count > 0 {
		return ErrUsernameConflict
	}
	return s.db.Create(user).Error
}

// GetUserByID returns a user by primary key.
func (s *Store) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByLogin returns an active user by username or email.
func (s *Store) GetUserByLogin(login string) (*models.User, error) {
	var user models.User
	err := s.db.Where("(username = ? OR email = ?) AND is_active = ?", login, login, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserClaims resolves the user's active roles and the flattened, distinct
// set of active permission keys granted through those roles. Both slices come
// back sorted so token claims are stable.
func (s *Store) GetUserClaims(userID uint) (roles []string, permissions []string, err error) {
	var activeRoles []models.Role
	err = s.db.
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND roles.is_active = ?", userID, true).
		Find(&activeRoles).Error
	if err != nil {
		return nil, nil, err
	}

	roles = make([]string, 0, len(activeRoles))
	roleIDs := make([]uint, 0, len(activeRoles))
	for _, r := range activeRoles {
		roles = append(roles, r.Name)
		roleIDs = append(roleIDs, r.ID)
	}
	sort.Strings(roles)

	if len(roleIDs) == 0 {
		return roles, []string{}, nil
	}

	var perms []models.Permission
	err = s.db.Distinct("permissions.*").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id IN ? AND permissions.is_active = ?", roleIDs, true).
		Find(&perms).Error
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(perms))
	permissions = make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		permissions = append(permissions, p.Key)
	}
	sort.Strings(permissions)

	return roles, permissions, nil
}
