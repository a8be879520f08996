package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
)

// CategoryRepositoryInterface defines methods used by services
type CategoryRepositoryInterface interface {
	ListAll(ctx context.Context) ([]model.Category, error)
	NamesByIDs(ctx context.Context, ids []int) ([]string, error)
}

// CategoryRepository is the concrete implementation
type CategoryRepository struct {
	DB *sql.DB
}

// ListAll fetches the full category reference set
func (r *CategoryRepository) ListAll(ctx context.Context) ([]model.Category, error) {
	query := `
		SELECT id, name, description
		FROM categories
		ORDER BY name
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, appErrors.NewStoreUnavailable(err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// NamesByIDs resolves category names for link/body rendering. Unknown IDs
// simply produce no name.
func (r *CategoryRepository) NamesByIDs(ctx context.Context, ids []int) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	query := `SELECT name FROM categories WHERE id = ANY($1) ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, appErrors.NewStoreUnavailable(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, appErrors.NewStoreUnavailable(err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

var _ CategoryRepositoryInterface = (*CategoryRepository)(nil)
