package models

import (
	"gorm.io/datatypes"
)

// PropertyStatus is the lifecycle state of a listing.
type PropertyStatus string

const (
	PropertyDraft    PropertyStatus = "DRAFT"
	PropertyActive   PropertyStatus = "ACTIVE"
	PropertySold     PropertyStatus = "SOLD"
	PropertyArchived PropertyStatus = "ARCHIVED"
)

// Property is a real-estate listing owned by an AGENT or AGENCY user.
type Property struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Price    int64  `gorm:"not null" json:"price"`
	Currency string `gorm:"type:varchar(3);default:EUR" json:"currency"`

	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	AreaSqm   float64 `json:"area_sqm"`

	AddressLine string `json:"address_line,omitempty"`
	City        string `gorm:"index" json:"city"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `gorm:"type:varchar(2)" json:"country"`

	// Attributes holds free-form listing facts (heating, year built, energy
	// label); Photos is an ordered list of object-store URLs.
	Attributes datatypes.JSON `json:"attributes,omitempty"`
	Photos     datatypes.JSON `json:"photos,omitempty"`

	Status PropertyStatus `gorm:"type:varchar(16);default:DRAFT;index" json:"status"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
