// internal/model/newsletter.go
package model

import "time"

// Newsletter statuses.
const (
	NewsletterDraft = "draft"
	NewsletterSent  = "sent"
)

type Newsletter struct {
	ID          int        `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Subject     string     `db:"subject" json:"subject"`
	Content     string     `db:"content" json:"content"`
	Status      string     `db:"status" json:"status"`
	AuthorID    int        `db:"author_id" json:"author_id"`
	CategoryIDs []int      `json:"category_ids"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
