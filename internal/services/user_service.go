package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/crypto"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserEmailTaken signals a duplicate email at registration.
	ErrUserEmailTaken = errors.New("user: email already registered")
)

// CreateUserInput describes the fields accepted when registering a user.
// Password is optional: social-login accounts never set one.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     models.Role
}

// UpdateProfileInput enumerates mutable profile attributes.
type UpdateProfileInput struct {
	Name          *string
	Phone         *string
	Avatar        *string
	AgencyName    *string
	LicenseNumber *string
}

// UserService manages account lookup, registration, and profile updates.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Create registers a new account. An empty password is stored as NULL.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, errors.New("user service: email is required")
	}

	user := models.User{
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		Phone:    strings.TrimSpace(input.Phone),
		Role:     input.Role,
		IsActive: true,
	}

	if input.Password != "" {
		hashed, err := crypto.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
		user.Password = &hashed
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserEmailTaken
		}
		return nil, fmt.Errorf("user service: create: %w", err)
	}

	return &user, nil
}

// FindByEmail returns the user for an email address, or ErrUserNotFound.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normaliseEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: find by email: %w", err)
	}
	return &user, nil
}

// GetByID returns the user for an id, or ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: get: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies the provided profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}
	if input.AgencyName != nil {
		updates["agency_name"] = strings.TrimSpace(*input.AgencyName)
	}
	if input.LicenseNumber != nil {
		updates["license_number"] = strings.TrimSpace(*input.LicenseNumber)
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	return s.GetByID(ctx, id)
}

// VerifyCredentials checks an email/password pair for local login. Accounts
// without a password (social login only) always fail the check.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Password == nil || !crypto.VerifyPassword(*user.Password, password) {
		return nil, ErrUserNotFound
	}
	return user, nil
}
