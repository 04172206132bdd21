package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// ErrContentNotDue is returned when a content item is no longer scheduled.
var ErrContentNotDue = errors.New("content is not scheduled")

// CreateContent inserts a content item.
func (r *Repository) CreateContent(ctx context.Context, c *model.Content) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = model.ContentDraft
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_content (id, title, content_type, status, is_published, scheduled_at, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, c.ID, c.Title, c.ContentType, string(c.Status), c.IsPublished, c.ScheduledAt, c.PublishedAt, now)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}
	return nil
}

// ListDueContent returns scheduled content whose publish time has passed.
func (r *Repository) ListDueContent(ctx context.Context, now time.Time) ([]*model.Content, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, content_type, status, is_published, scheduled_at, published_at, created_at, updated_at
		FROM admin_content
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due content: %w", err)
	}
	defer rows.Close()

	var items []*model.Content
	for rows.Next() {
		var c model.Content
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.ContentType,
			&c.Status,
			&c.IsPublished,
			&c.ScheduledAt,
			&c.PublishedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

// PublishContent marks a scheduled item as published.
// Items that are no longer scheduled yield ErrContentNotDue.
func (r *Repository) PublishContent(ctx context.Context, id string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE admin_content
		SET status = 'published', is_published = TRUE, published_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to publish content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContentNotDue
	}
	return nil
}
