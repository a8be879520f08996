package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
)

type DeliveryRepositoryInterface interface {
	// CreateOrReset creates the delivery row for a (newsletter, subscriber)
	// pair, or resets an existing one back to pending for a resend. The
	// unique pair index keeps at most one row per pair.
	CreateOrReset(ctx context.Context, newsletterID, subscriberID int, method string) (*model.Delivery, error)
	UpdateStatus(ctx context.Context, id int, status, reason string) error
	GetByID(ctx context.Context, id int) (*model.Delivery, error)
	ListByNewsletter(ctx context.Context, newsletterID int) ([]model.Delivery, error)
	Stats(ctx context.Context, newsletterID int) (model.DeliveryStats, error)
	MarkOpened(ctx context.Context, id int) error

	// PruneOutsideAudience drops rows whose subscriber is no longer in the
	// newsletter's resolved audience, so stats stay consistent when a
	// resend follows category membership changes.
	PruneOutsideAudience(ctx context.Context, newsletterID int, subscriberIDs []int) error
}

type DeliveryRepository struct {
	DB *sql.DB
}

const deliveryColumns = `id, newsletter_id, subscriber_id, method, status, COALESCE(status_reason, ''), attempt_count, sent_at, opened_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (*model.Delivery, error) {
	var d model.Delivery
	err := row.Scan(
		&d.ID, &d.NewsletterID, &d.SubscriberID, &d.Method, &d.Status,
		&d.StatusReason, &d.AttemptCount, &d.SentAt, &d.OpenedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepository) CreateOrReset(ctx context.Context, newsletterID, subscriberID int, method string) (*model.Delivery, error) {
	query := `
		INSERT INTO deliveries (newsletter_id, subscriber_id, method, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW(), NOW())
		ON CONFLICT (newsletter_id, subscriber_id)
		DO UPDATE SET status='pending', status_reason=NULL, method=EXCLUDED.method, updated_at=NOW()
		RETURNING ` + deliveryColumns
	d, err := scanDelivery(r.DB.QueryRowContext(ctx, query, newsletterID, subscriberID, method))
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return d, nil
}

// UpdateStatus records the outcome of one send attempt. sent_at is stamped
// only when the attempt succeeded.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id int, status, reason string) error {
	query := `
		UPDATE deliveries
		SET status=$1,
			status_reason=NULLIF($2, ''),
			attempt_count=attempt_count+1,
			sent_at=CASE WHEN $1='sent' THEN NOW() ELSE sent_at END,
			updated_at=NOW()
		WHERE id=$3
	`
	res, err := r.DB.ExecContext(ctx, query, status, reason, id)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return appErrors.NewDeliveryNotFound(id)
	}
	return nil
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id int) (*model.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id=$1`
	d, err := scanDelivery(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDeliveryNotFound(id)
		}
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return d, nil
}

func (r *DeliveryRepository) ListByNewsletter(ctx context.Context, newsletterID int) ([]model.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE newsletter_id=$1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, newsletterID)
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	deliveries := []model.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, appErrors.NewStoreUnavailable(err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return deliveries, nil
}

func (r *DeliveryRepository) Stats(ctx context.Context, newsletterID int) (model.DeliveryStats, error) {
	query := `SELECT status, COUNT(*) FROM deliveries WHERE newsletter_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, newsletterID)
	if err != nil {
		return model.DeliveryStats{}, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	var stats model.DeliveryStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.DeliveryStats{}, appErrors.NewStoreUnavailable(err)
		}
		switch status {
		case model.DeliverySent:
			stats.Sent = count
		case model.DeliveryPending:
			stats.Pending = count
		case model.DeliveryFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

func (r *DeliveryRepository) PruneOutsideAudience(ctx context.Context, newsletterID int, subscriberIDs []int) error {
	query := `DELETE FROM deliveries WHERE newsletter_id=$1 AND NOT (subscriber_id = ANY($2))`
	if _, err := r.DB.ExecContext(ctx, query, newsletterID, pq.Array(subscriberIDs)); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	return nil
}

// MarkOpened is fed by the open-tracking pixel; first open wins.
func (r *DeliveryRepository) MarkOpened(ctx context.Context, id int) error {
	query := `UPDATE deliveries SET opened_at=NOW(), updated_at=NOW() WHERE id=$1 AND opened_at IS NULL`
	if _, err := r.DB.ExecContext(ctx, query, id); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	return nil
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
