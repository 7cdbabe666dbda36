package models

import "time"

// Invitation grants a specific email address SUPPORT contribution rights once
// its token is redeemed. At most one invitation row exists per email (unique
// index); EXPIRED is derived from ExpiresAt rather than stored.
type Invitation struct {
	BaseModel

	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	InvitedBy string `gorm:"type:uuid" json:"invited_by"`
	Inviter   *User  `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`

	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Pending reports whether the invitation can still be redeemed at the given instant.
func (i *Invitation) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && i.RevokedAt == nil && !i.ExpiresAt.Before(now)
}

// Status derives the display state at the given instant.
func (i *Invitation) Status(now time.Time) string {
	switch {
	case i.RevokedAt != nil:
		return "revoked"
	case i.AcceptedAt != nil:
		return "accepted"
	case i.ExpiresAt.Before(now):
		return "expired"
	default:
		return "pending"
	}
}
