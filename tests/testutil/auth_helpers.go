package testutil

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldops/field-service-api/config"
	"github.com/fieldops/field-service-api/middleware"
	"github.com/fieldops/field-service-api/models"
)

// NewTestConfig returns a config suitable for signing tokens in tests
// and installs it as the process config
func NewTestConfig() *config.Config {
	cfg := &config.Config{
		JWTSecret: "integration-test-secret",
		Port:      "8080",
	}
	config.SetConfig(cfg)
	return cfg
}

// SetupTestDB opens an in-memory database, migrates the schema and
// installs it as the process database
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ServiceOrder{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	config.SetDB(db)
	return db
}

// CreateUser inserts a user with a real bcrypt hash so login flows work
func CreateUser(t *testing.T, db *gorm.DB, name, email, role, password string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

// TokenFor issues a real signed access token for the given user
func TokenFor(t *testing.T, cfg *config.Config, user models.User) string {
	t.Helper()

	token, err := middleware.IssueToken(cfg, user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}
