package models

import (
	"time"

	"github.com/google/uuid"
)

// WebsiteContent is a keyed piece of site copy or a setting.
type WebsiteContent struct {
	BaseModel
	Section string `gorm:"uniqueIndex:idx_content_section_key;not null" json:"section"`
	Key     string `gorm:"uniqueIndex:idx_content_section_key;not null" json:"key"`
	Value   string `gorm:"type:text" json:"value"`
	Media   string `json:"media"`
}

const (
	NewsDraft     = "draft"
	NewsPublished = "published"
	NewsArchived  = "archived"
)

// News is a public article.
type News struct {
	BaseModel
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Body        string     `gorm:"type:text" json:"body"`
	CoverImage  string     `json:"cover_image"`
	Status      string     `gorm:"index;not null" json:"status"`
	PublishedAt *time.Time `json:"published_at"`
	AuthorID    *uuid.UUID `gorm:"type:uuid" json:"author_id"`
}

// Testimonial is a quote shown on the homepage once approved.
type Testimonial struct {
	BaseModel
	Name         string `gorm:"not null" json:"name"`
	Organization string `json:"organization"`
	Content      string `gorm:"type:text" json:"content"`
	Photo        string `json:"photo"`
	IsApproved   bool   `gorm:"index" json:"is_approved"`
}
