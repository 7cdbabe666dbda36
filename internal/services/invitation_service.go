package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/crypto"
	"github.com/casavia/casavia/pkg/logger"
	"github.com/casavia/casavia/pkg/mail"
	"github.com/casavia/casavia/pkg/metrics"
)

const (
	defaultInvitationExpiry = 7 * 24 * time.Hour
	// 32 random bytes gives the 256 bits of entropy the token needs to act
	// as a bearer credential.
	defaultInvitationTokenBytes = 32
)

var (
	// ErrInvitationExists signals a duplicate invitation for an email address.
	ErrInvitationExists = errors.New("invitation: already exists for email")
	// ErrInvitationNotFound indicates no invitation matches the reference.
	ErrInvitationNotFound = errors.New("invitation: not found")
	// ErrInvitationInvalid coalesces unknown, expired, revoked and already
	// accepted tokens so redemption failures never reveal which case applied.
	ErrInvitationInvalid = errors.New("invitation: invalid or expired token")
	// ErrInvitationRevoked marks an invitation whose revocation stamp is already set.
	ErrInvitationRevoked = errors.New("invitation: already revoked")
	// ErrInviteeNotFound means the invited email has no account yet; the
	// invitee must register before redeeming.
	ErrInviteeNotFound = errors.New("invitation: no account for invited email")
	// ErrNotificationFailed wraps mail delivery failures. The invitation row
	// is already persisted when this is returned; resend is the recovery path.
	ErrNotificationFailed = errors.New("invitation: notification delivery failed")
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used to build redemption links.
func WithInvitationBaseURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInvitationExpiry overrides the invitation lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService manages the contributor invitation lifecycle: issuing,
// resending, redeeming, and revoking invitations, including the SUPPORT role
// transitions bound to acceptance and revocation.
type InvitationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:     db,
		mailer: mailer,
		expiry: defaultInvitationExpiry,
		now:    time.Now,
		log:    logger.WithModule("invitations"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Send issues a new invitation for the email address and delivers the
// redemption link. The row persists even when delivery fails, so a failed
// send is recovered by Resend rather than by re-issuing.
func (s *InvitationService) Send(ctx context.Context, email, invitedBy string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, errors.New("invitation service: email is required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("email = ?", email).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("invitation service: check existing: %w", err)
	}
	if existing > 0 {
		return nil, ErrInvitationExists
	}

	token, err := crypto.GenerateToken(defaultInvitationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	now := s.now()
	invitation := models.Invitation{
		Email:     email,
		Token:     token,
		InvitedBy: strings.TrimSpace(invitedBy),
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		// Two concurrent sends can both pass the count above; the unique
		// index on email is the authoritative signal.
		if isUniqueConstraintError(err) {
			return nil, ErrInvitationExists
		}
		return nil, fmt.Errorf("invitation service: create: %w", err)
	}

	metrics.InvitationEvents.WithLabelValues("sent").Inc()

	if err := s.deliverInvitation(ctx, &invitation); err != nil {
		return &invitation, err
	}

	return &invitation, nil
}

// Resend extends the expiry of an existing invitation to now + lifetime on
// the same token and re-delivers the notification. The token is never rotated
// and the expiry never moves backwards.
func (s *InvitationService) Resend(ctx context.Context, email string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: find: %w", err)
	}

	expiresAt := s.now().Add(s.expiry)
	if err := s.db.WithContext(ctx).
		Model(&invitation).
		Update("expires_at", expiresAt).Error; err != nil {
		return nil, fmt.Errorf("invitation service: extend expiry: %w", err)
	}
	invitation.ExpiresAt = expiresAt

	metrics.InvitationEvents.WithLabelValues("resent").Inc()

	if err := s.deliverInvitation(ctx, &invitation); err != nil {
		return &invitation, err
	}

	return &invitation, nil
}

// Pending returns invitations that can still be redeemed, newest first.
func (s *InvitationService) Pending(ctx context.Context) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Where("expires_at > ? AND accepted_at IS NULL AND revoked_at IS NULL", s.now()).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: list pending: %w", err)
	}
	return invitations, nil
}

// Accepted returns redeemed, non-revoked invitations joined with the inviter,
// newest acceptance first.
func (s *InvitationService) Accepted(ctx context.Context) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Inviter").
		Where("accepted_at IS NOT NULL AND revoked_at IS NULL").
		Order("accepted_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: list accepted: %w", err)
	}
	return invitations, nil
}

// Accept redeems an invitation token. The token alone is the credential: no
// caller identity is required. Acceptance stamps accepted_at exactly once and
// promotes the invitee from USER to SUPPORT inside one transaction; roles
// above SUPPORT are never touched.
func (s *InvitationService) Accept(ctx context.Context, token string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationInvalid
	}

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Debug("redemption with unknown token")
			return nil, ErrInvitationInvalid
		}
		return nil, fmt.Errorf("invitation service: find by token: %w", err)
	}

	now := s.now()

	// All rejections below share one caller-visible error; only the log
	// distinguishes them.
	switch {
	case invitation.RevokedAt != nil:
		s.log.Debug("redemption of revoked invitation", zap.String("invitation_id", invitation.ID))
		return nil, ErrInvitationInvalid
	case invitation.AcceptedAt != nil:
		s.log.Debug("redemption of already accepted invitation", zap.String("invitation_id", invitation.ID))
		return nil, ErrInvitationInvalid
	case invitation.ExpiresAt.Before(now):
		s.log.Debug("redemption of expired invitation", zap.String("invitation_id", invitation.ID))
		return nil, ErrInvitationInvalid
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", invitation.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteeNotFound
		}
		return nil, fmt.Errorf("invitation service: find invitee: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&invitation).Update("accepted_at", now).Error; err != nil {
			return fmt.Errorf("mark accepted: %w", err)
		}

		if role, changed := user.Role.PromoteOnAccept(); changed {
			if err := tx.Model(&user).Update("role", role).Error; err != nil {
				return fmt.Errorf("promote invitee: %w", err)
			}
			user.Role = role
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invitation service: accept: %w", err)
	}

	invitation.AcceptedAt = &now
	metrics.InvitationEvents.WithLabelValues("accepted").Inc()

	s.log.Info("invitation accepted",
		zap.String("invitation_id", invitation.ID),
		zap.String("user_id", user.ID),
	)

	return &invitation, nil
}

// Revoke withdraws an invitation: it stamps revoked_at, demotes the invitee
// from SUPPORT back to USER in the same transaction, and notifies the invited
// email. Revoking an already revoked invitation is rejected rather than
// re-sending the notification.
func (s *InvitationService) Revoke(ctx context.Context, invitationID string) error {
	ctx = ensureContext(ctx)

	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return ErrInvitationNotFound
	}

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("invitation service: find: %w", err)
	}

	if invitation.RevokedAt != nil {
		return ErrInvitationRevoked
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&invitation).Update("revoked_at", now).Error; err != nil {
			return fmt.Errorf("mark revoked: %w", err)
		}

		var user models.User
		if err := tx.Where("email = ?", invitation.Email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // invitee never registered; nothing to demote
			}
			return fmt.Errorf("find invitee: %w", err)
		}

		if role, changed := user.Role.DemoteOnRevoke(); changed {
			if err := tx.Model(&user).Update("role", role).Error; err != nil {
				return fmt.Errorf("demote invitee: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invitation service: revoke: %w", err)
	}

	invitation.RevokedAt = &now
	metrics.InvitationEvents.WithLabelValues("revoked").Inc()

	s.log.Info("invitation revoked", zap.String("invitation_id", invitation.ID))

	if err := s.sendMail(ctx, revocationMessage(invitation.Email)); err != nil {
		return err
	}

	return nil
}

// PurgeDead deletes invitations that have been expired or revoked for longer
// than the retention window. Accepted invitations are kept as an audit trail.
func (s *InvitationService) PurgeDead(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := s.now().Add(-retention)

	result := s.db.WithContext(ctx).
		Where("revoked_at IS NOT NULL AND revoked_at < ?", cutoff).
		Or("accepted_at IS NULL AND revoked_at IS NULL AND expires_at < ?", cutoff).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: purge dead: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("purged dead invitations", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// deliverInvitation picks the copy variant and link target based on whether the
// invited email already has an account, then sends the notification.
func (s *InvitationService) deliverInvitation(ctx context.Context, invitation *models.Invitation) error {
	var hasAccount bool
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", invitation.Email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("invitation service: check invitee account: %w", err)
	}
	hasAccount = count > 0

	return s.sendMail(ctx, invitationMessage(invitation, s.baseURL, hasAccount))
}

func (s *InvitationService) sendMail(ctx context.Context, msg mail.Message) error {
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Error("notification delivery failed",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}
