package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
)

type NewsletterRepositoryInterface interface {
	Create(ctx context.Context, n *model.Newsletter, categoryIDs []int) error
	Update(ctx context.Context, n *model.Newsletter, categoryIDs []int) error
	GetByID(ctx context.Context, id int) (*model.Newsletter, error)
	List(ctx context.Context, offset, limit int, status string) ([]*model.Newsletter, int, error)
	MarkSent(ctx context.Context, id int, sentAt time.Time) error
}

type NewsletterRepository struct {
	DB *sql.DB
}

// ====================== Newsletter CRUD ======================

func (r *NewsletterRepository) Create(ctx context.Context, n *model.Newsletter, categoryIDs []int) error {
	if n.Status == "" {
		n.Status = model.NewsletterDraft
	}
	query := `
		INSERT INTO newsletters (title, subject, content, status, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, query, n.Title, n.Subject, n.Content, n.Status, n.AuthorID).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if err := r.replaceCategories(ctx, n.ID, categoryIDs); err != nil {
		return err
	}
	n.CategoryIDs = categoryIDs
	return nil
}

func (r *NewsletterRepository) Update(ctx context.Context, n *model.Newsletter, categoryIDs []int) error {
	query := `
		UPDATE newsletters
		SET title=$1, subject=$2, content=$3, status=$4, updated_at=NOW()
		WHERE id=$5
	`
	res, err := r.DB.ExecContext(ctx, query, n.Title, n.Subject, n.Content, n.Status, n.ID)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return appErrors.NewNewsletterNotFound(n.ID)
	}
	if err := r.replaceCategories(ctx, n.ID, categoryIDs); err != nil {
		return err
	}
	n.CategoryIDs = categoryIDs
	return nil
}

func (r *NewsletterRepository) GetByID(ctx context.Context, id int) (*model.Newsletter, error) {
	query := `
		SELECT id, title, subject, content, status, author_id, sent_at, created_at, updated_at
		FROM newsletters WHERE id=$1
	`
	var n model.Newsletter
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.Title, &n.Subject, &n.Content, &n.Status, &n.AuthorID,
		&n.SentAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNewsletterNotFound(id)
		}
		return nil, appErrors.NewStoreUnavailable(err)
	}

	n.CategoryIDs = []int{}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT category_id FROM newsletter_categories WHERE newsletter_id=$1 ORDER BY category_id`, id)
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		if err := rows.Scan(&cid); err != nil {
			return nil, appErrors.NewStoreUnavailable(err)
		}
		n.CategoryIDs = append(n.CategoryIDs, cid)
	}
	return &n, rows.Err()
}

func (r *NewsletterRepository) List(ctx context.Context, offset, limit int, status string) ([]*model.Newsletter, int, error) {
	newsletters := []*model.Newsletter{}
	query := `SELECT id, title, subject, content, status, author_id, sent_at, created_at, updated_at FROM newsletters WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	for rows.Next() {
		n := &model.Newsletter{}
		if err := rows.Scan(&n.ID, &n.Title, &n.Subject, &n.Content, &n.Status, &n.AuthorID, &n.SentAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, appErrors.NewStoreUnavailable(err)
		}
		newsletters = append(newsletters, n)
	}

	countQuery := `SELECT COUNT(*) FROM newsletters WHERE 1=1`
	countArgs := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, appErrors.NewStoreUnavailable(err)
	}

	return newsletters, total, nil
}

// MarkSent performs the one-way draft -> sent transition.
func (r *NewsletterRepository) MarkSent(ctx context.Context, id int, sentAt time.Time) error {
	query := `UPDATE newsletters SET status=$1, sent_at=$2, updated_at=NOW() WHERE id=$3`
	res, err := r.DB.ExecContext(ctx, query, model.NewsletterSent, sentAt, id)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return appErrors.NewNewsletterNotFound(id)
	}
	return nil
}

func (r *NewsletterRepository) replaceCategories(ctx context.Context, newsletterID int, categoryIDs []int) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM newsletter_categories WHERE newsletter_id=$1`, newsletterID); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO newsletter_categories (newsletter_id, category_id)
		SELECT $1, c.id FROM categories c WHERE c.id = ANY($2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.DB.ExecContext(ctx, query, newsletterID, pq.Array(categoryIDs)); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	return nil
}

var _ NewsletterRepositoryInterface = (*NewsletterRepository)(nil)
