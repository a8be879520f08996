package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
)

// SubscriberRepositoryInterface defines methods used by services
type SubscriberRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Subscriber, error)
	GetByContact(ctx context.Context, method, contact string) (*model.Subscriber, error)
	GetByUnsubscribeToken(ctx context.Context, token string) (*model.Subscriber, error)
	GetByPreferencesToken(ctx context.Context, token string) (*model.Subscriber, error)
	Create(ctx context.Context, s *model.Subscriber, categoryIDs []int) error
	SetActive(ctx context.Context, id int, active bool) error
	UpdatePreferences(ctx context.Context, id int, frequency string, categoryIDs []int) error
	List(ctx context.Context, offset, limit int, active *bool) ([]model.Subscriber, int, error)
	Delete(ctx context.Context, id int) error

	// ListActiveByCategories resolves the fan-out audience: the distinct set
	// of active subscribers belonging to at least one of the given
	// categories. Unknown category IDs match nothing.
	ListActiveByCategories(ctx context.Context, categoryIDs []int) ([]model.Subscriber, error)
}

// SubscriberRepository is the concrete implementation
type SubscriberRepository struct {
	DB *sql.DB
}

const subscriberColumns = `id, first_name, contact_method, COALESCE(email, ''), COALESCE(phone, ''), is_active, frequency, unsubscribe_token, preferences_token, created_at`

func scanSubscriber(row interface{ Scan(...any) error }) (*model.Subscriber, error) {
	var s model.Subscriber
	err := row.Scan(
		&s.ID, &s.FirstName, &s.ContactMethod, &s.Email, &s.Phone,
		&s.IsActive, &s.Frequency, &s.UnsubscribeToken, &s.PreferencesToken,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id int) (*model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	s, err := scanSubscriber(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return s, nil
}

// GetByContact finds an existing subscriber by the address they signed up
// with, so a repeat subscribe reactivates instead of duplicating.
func (r *SubscriberRepository) GetByContact(ctx context.Context, method, contact string) (*model.Subscriber, error) {
	var query string
	switch method {
	case model.ContactEmail:
		query = `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = $1`
	case model.ContactSMS:
		query = `SELECT ` + subscriberColumns + ` FROM subscribers WHERE phone = $1`
	default:
		return nil, nil
	}
	s, err := scanSubscriber(r.DB.QueryRowContext(ctx, query, contact))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return s, nil
}

func (r *SubscriberRepository) GetByUnsubscribeToken(ctx context.Context, token string) (*model.Subscriber, error) {
	return r.getByToken(ctx, "unsubscribe_token", token)
}

func (r *SubscriberRepository) GetByPreferencesToken(ctx context.Context, token string) (*model.Subscriber, error) {
	return r.getByToken(ctx, "preferences_token", token)
}

func (r *SubscriberRepository) getByToken(ctx context.Context, column, token string) (*model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE ` + column + ` = $1`
	s, err := scanSubscriber(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return s, nil
}

func (r *SubscriberRepository) Create(ctx context.Context, s *model.Subscriber, categoryIDs []int) error {
	query := `
		INSERT INTO subscribers
		(first_name, contact_method, email, phone, is_active, frequency, unsubscribe_token, preferences_token, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, NOW())
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, query,
		s.FirstName, s.ContactMethod, s.Email, s.Phone,
		s.IsActive, s.Frequency, s.UnsubscribeToken, s.PreferencesToken,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if err := r.replaceCategories(ctx, s.ID, categoryIDs); err != nil {
		return err
	}
	s.CategoryIDs = categoryIDs
	return nil
}

func (r *SubscriberRepository) SetActive(ctx context.Context, id int, active bool) error {
	query := `UPDATE subscribers SET is_active = $1 WHERE id = $2`
	if _, err := r.DB.ExecContext(ctx, query, active, id); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	return nil
}

func (r *SubscriberRepository) UpdatePreferences(ctx context.Context, id int, frequency string, categoryIDs []int) error {
	if frequency != "" {
		query := `UPDATE subscribers SET frequency = $1 WHERE id = $2`
		if _, err := r.DB.ExecContext(ctx, query, frequency, id); err != nil {
			return appErrors.NewStoreUnavailable(err)
		}
	}
	return r.replaceCategories(ctx, id, categoryIDs)
}

// replaceCategories rewrites the join-table rows for one subscriber. The
// composite primary key keeps the pairs unique; unknown category IDs are
// filtered by the FK join rather than erroring.
func (r *SubscriberRepository) replaceCategories(ctx context.Context, subscriberID int, categoryIDs []int) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM subscriber_categories WHERE subscriber_id = $1`, subscriberID); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO subscriber_categories (subscriber_id, category_id)
		SELECT $1, c.id FROM categories c WHERE c.id = ANY($2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.DB.ExecContext(ctx, query, subscriberID, pq.Array(categoryIDs)); err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	return nil
}

func (r *SubscriberRepository) List(ctx context.Context, offset, limit int, active *bool) ([]model.Subscriber, int, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if active != nil {
		query += ` AND is_active = $1`
		args = append(args, *active)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	subscribers := []model.Subscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, appErrors.NewStoreUnavailable(err)
		}
		subscribers = append(subscribers, *s)
	}

	countQuery := `SELECT COUNT(*) FROM subscribers WHERE 1=1`
	countArgs := []interface{}{}
	if active != nil {
		countQuery += ` AND is_active = $1`
		countArgs = append(countArgs, *active)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, appErrors.NewStoreUnavailable(err)
	}

	return subscribers, total, nil
}

func (r *SubscriberRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return appErrors.NewStoreUnavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewSubscriberNotFound(strconv.Itoa(id))
	}
	return nil
}

// ListActiveByCategories is the category matcher query: a DISTINCT union
// through the join table, active subscribers only.
func (r *SubscriberRepository) ListActiveByCategories(ctx context.Context, categoryIDs []int) ([]model.Subscriber, error) {
	if len(categoryIDs) == 0 {
		return []model.Subscriber{}, nil
	}
	query := `
		SELECT DISTINCT s.id, s.first_name, s.contact_method, COALESCE(s.email, ''), COALESCE(s.phone, ''),
			   s.is_active, s.frequency, s.unsubscribe_token, s.preferences_token, s.created_at
		FROM subscribers s
		JOIN subscriber_categories sc ON sc.subscriber_id = s.id
		WHERE s.is_active = true AND sc.category_id = ANY($1)
		ORDER BY s.id
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(categoryIDs))
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	subscribers := []model.Subscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, appErrors.NewStoreUnavailable(err)
		}
		subscribers = append(subscribers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	return subscribers, nil
}

var _ SubscriberRepositoryInterface = (*SubscriberRepository)(nil)
