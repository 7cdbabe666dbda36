package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/crypto"
	"github.com/casavia/casavia/pkg/metrics"
)

var (
	// ErrSessionNotFound covers both a missing session and a session owned by
	// another user; the two are indistinguishable so callers cannot probe for
	// other users' sessions.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExpired signals that a session token is past its expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrCurrentSession rejects revocation of the session backing the
	// caller's own request.
	ErrCurrentSession = errors.New("session: cannot revoke current session")
)

const defaultSessionTTL = 30 * 24 * time.Hour

// SessionService issues, enumerates and revokes a user's sessions. Revocation
// is a hard delete, observed by the device on its next request.
type SessionService struct {
	db  *gorm.DB
	now func() time.Time
	ttl time.Duration
}

// SessionOption customises SessionService behaviour.
type SessionOption func(*SessionService)

// WithSessionClock injects a custom clock primarily for testing.
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *SessionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionTTL overrides the lifetime of newly issued sessions.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewSessionService constructs a SessionService backed by the provided database.
func NewSessionService(db *gorm.DB, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	service := &SessionService{db: db, now: time.Now, ttl: defaultSessionTTL}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue creates a fresh session for the user and returns it with its opaque
// token populated.
func (s *SessionService) Issue(ctx context.Context, userID string) (*models.Session, error) {
	token, err := crypto.GenerateToken(0)
	if err != nil {
		return nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()
	session := models.Session{
		UserID:       userID,
		SessionToken: token,
		Expires:      now.Add(s.ttl),
		LastActive:   now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("session service: create: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return &session, nil
}

// Logout deletes the session behind the token. Unknown tokens are a no-op so
// logout stays idempotent.
func (s *SessionService) Logout(ctx context.Context, sessionToken string) error {
	if strings.TrimSpace(sessionToken) == "" {
		return nil
	}

	result := s.db.WithContext(ctx).
		Where("session_token = ?", sessionToken).
		Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session service: logout: %w", result.Error)
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return nil
}

// Authenticate resolves a session token to its live session row. Expired rows
// are rejected; the row itself is left for the maintenance purge.
func (s *SessionService) Authenticate(ctx context.Context, sessionToken string) (*models.Session, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("session_token = ?", sessionToken).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session service: find by token: %w", err)
	}

	if session.Expired(s.now()) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// List returns every session belonging to the user, most recently active first.
func (s *SessionService) List(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_active DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list: %w", err)
	}
	return sessions, nil
}

// Revoke deletes one of the caller's sessions. The session bound to the
// caller's current request token can never be revoked through this operation.
func (s *SessionService) Revoke(ctx context.Context, sessionID, callerUserID, callerToken string) error {
	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("session service: find: %w", err)
	}

	// Ownership check folds into not-found so existence never leaks.
	if session.UserID != callerUserID {
		return ErrSessionNotFound
	}
	if session.SessionToken == callerToken {
		return ErrCurrentSession
	}

	result := s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", session.ID)
	if result.Error != nil {
		return fmt.Errorf("session service: revoke: %w", result.Error)
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return nil
}

// RevokeOthers deletes every session of the caller except the current one in a
// single bulk operation, returning the number of revoked sessions.
func (s *SessionService) RevokeOthers(ctx context.Context, callerUserID, callerToken string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND session_token <> ?", callerUserID, callerToken).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke others: %w", result.Error)
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

// PurgeExpired removes sessions past their expiry. Called by maintenance.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires < ?", s.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: purge expired: %w", result.Error)
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return result.RowsAffected, nil
}
