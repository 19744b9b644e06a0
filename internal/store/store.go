package store

import (
	"context"
	"log"

	"github.com/go-authcore/authcore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the database and exposes typed query methods for every entity.
type Store struct {
	db *gorm.DB
}

// New opens the database, runs migrations and seeds default data on first run.
func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.OAuthClient{},
		&models.RedirectURI{},
		&models.AuthorizationCode{},
		&models.RefreshToken{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	if err := store.seedData(); err != nil {
		log.Printf("Warning: failed to seed data: %v", err)
	}

	return store, nil
}

func (s *Store) seedData() error {
	// Default admin role with a couple of permissions
	var roleCount int64
	s.db.Model(&models.Role{}).Count(&roleCount)
	var adminRole models.Role
	if roleCount == 0 {
		adminRole = models.Role{
			Name:        "admin",
			Description: "Full administrative access",
			IsActive:    true,
			Permissions: []models.Permission{
				{Key: "users:read", Description: "Read user records", IsActive: true},
				{Key: "users:write", Description: "Modify user records", IsActive: true},
				{Key: "clients:manage", Description: "Manage OAuth clients", IsActive: true},
			},
		}
		if err := s.db.Create(&adminRole).Error; err != nil {
			return err
		}
	}

	// Default admin user with a one-time random password
	var userCount int64
	s.db.Model(&models.User{}).Count(&userCount)
	if userCount == 0 {
		password := uuid.NewString()
		user := &models.User{
			Username: "admin",
			Email:    "admin@localhost",
			FullName: "Administrator",
			IsActive: true,
		}
		if err := user.SetPassword(password); err != nil {
			return err
		}
		if adminRole.ID != 0 {
			user.Roles = []models.Role{adminRole}
		}
		if err := s.db.Create(user).Error; err != nil {
			return err
		}
		log.Printf("Created default user: admin / %s", password)
	}

	// Default confidential client
	var clientCount int64
	s.db.Model(&models.OAuthClient{}).Count(&clientCount)
	if clientCount == 0 {
		client := &models.OAuthClient{
			ClientID:   uuid.NewString(),
			Name:       "AuthCore Console",
			ClientType: models.ClientTypeConfidential,
			GrantTypes: "authorization_code refresh_token",
			Scopes:     "openid profile email",
			IsActive:   true,
			RedirectURIs: []models.RedirectURI{
				{URI: "http://localhost:3000/callback", IsDefault: true},
			},
		}
		secret, err := client.GenerateClientSecret()
		if err != nil {
			return err
		}
		if err := s.db.Create(client).Error; err != nil {
			return err
		}
		log.Printf("Created default OAuth client: %s (AuthCore Console)", client.ClientID)
		log.Printf("Client Secret (save this): %s", secret)
	}

	return nil
}

// Health pings the underlying database.
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the raw gorm handle for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}
