package database

import (
	"errors"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models. The
// unique indexes on invitations.email, invitations.token and
// sessions.session_token are the authoritative uniqueness backstop for the
// invitation and session flows.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Invitation{},
		&models.Post{},
		&models.Property{},
	)
}

// SeedData provisions the initial administrator account when the users table
// is empty. Credentials come from CASAVIA_ADMIN_EMAIL / CASAVIA_ADMIN_PASSWORD;
// seeding is skipped when they are unset.
func SeedData(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("CASAVIA_ADMIN_EMAIL")))
	password := os.Getenv("CASAVIA_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    email,
		Password: &hashed,
		Role:     models.RoleAdmin,
		Name:     "Administrator",
		IsActive: true,
	}

	return db.Where(models.User{Email: email}).Attrs(admin).FirstOrCreate(&models.User{}).Error
}
