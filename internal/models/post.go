package models

import "time"

// Post is a blog article authored by a SUPPORT-or-above contributor.
type Post struct {
	BaseModel

	Title   string `gorm:"not null" json:"title"`
	Slug    string `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt string `json:"excerpt,omitempty"`
	Body    string `gorm:"type:text" json:"body"`

	CoverImageURL string `json:"cover_image_url,omitempty"`

	AuthorID string `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Published   bool       `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
