package model

import "time"

// ContentStatus represents the editorial state of a content item.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentReview    ContentStatus = "review"
	ContentScheduled ContentStatus = "scheduled"
	ContentPublished ContentStatus = "published"
	ContentArchived  ContentStatus = "archived"
)

// Content is an item managed from the admin CMS (hadith, dua, article).
type Content struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	ContentType string        `json:"content_type"`
	Status      ContentStatus `json:"status"`
	IsPublished bool          `json:"is_published"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsDue reports whether scheduled content should be published at now.
func (c *Content) IsDue(now time.Time) bool {
	return c.Status == ContentScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now)
}
