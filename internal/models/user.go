package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User describes platform accounts: readers, contributors, agents, and agencies.
// Password is nullable because social-login accounts never set one.
type User struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Password *string `gorm:"default:null" json:"-"`
	Role     Role    `gorm:"type:varchar(16);default:USER;index" json:"role"`

	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`

	// Agency profile fields, meaningful for AGENT and AGENCY roles.
	AgencyName    string `json:"agency_name,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Sessions   []Session  `gorm:"foreignKey:UserID" json:"-"`
	Posts      []Post     `gorm:"foreignKey:AuthorID" json:"-"`
	Properties []Property `gorm:"foreignKey:OwnerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
