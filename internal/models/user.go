package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a resource owner. In local identity mode users are stored here and
// authenticated with bcrypt; in httpapi mode this table only mirrors the
// subjects seen in tokens.
type User struct {
	ID           uint   `gorm:"primarykey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	FullName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Roles []Role `gorm:"many2many:user_roles;"`
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Role groups permissions. Inactive roles are excluded from claim projection.
type Role struct {
	ID          uint   `gorm:"primarykey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Permissions []Permission `gorm:"many2many:role_permissions;"`
}

// Permission is a single capability key, e.g. "orders:read".
type Permission struct {
	ID          uint   `gorm:"primarykey"`
	Key         string `gorm:"uniqueIndex;not null"`
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
