package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stanstork/schedule-api/internal/models"
)

type CategoryRepository interface {
	List(ctx context.Context, userID string) ([]models.Category, error)
	Get(ctx context.Context, userID, categoryID string) (models.Category, error)
	Create(ctx context.Context, category models.Category) (models.Category, error)
	// CreateDefaults seeds the default category set for a new user.
	CreateDefaults(ctx context.Context, userID string) ([]models.Category, error)
	Update(ctx context.Context, category models.Category) (models.Category, error)
	Delete(ctx context.Context, userID, categoryID string) error
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

const categoryColumns = `id, user_id, name, color, description, is_default, created_at, updated_at`

func (r *categoryRepository) List(ctx context.Context, userID string) ([]models.Category, error) {
	const query = `
		SELECT ` + categoryColumns + `
		FROM planner.categories
		WHERE user_id = $1
		ORDER BY is_default DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) Get(ctx context.Context, userID, categoryID string) (models.Category, error) {
	const query = `
		SELECT ` + categoryColumns + `
		FROM planner.categories
		WHERE id = $1 AND user_id = $2`
	return scanCategory(r.db.QueryRowContext(ctx, query, categoryID, userID))
}

const insertCategory = `
	INSERT INTO planner.categories (user_id, name, color, description, is_default)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + categoryColumns

func (r *categoryRepository) Create(ctx context.Context, category models.Category) (models.Category, error) {
	row := r.db.QueryRowContext(ctx, insertCategory,
		category.UserID,
		strings.TrimSpace(category.Name),
		strings.ToUpper(category.Color),
		nullString(category.Description),
		category.IsDefault,
	)
	return scanCategory(row)
}

func (r *categoryRepository) CreateDefaults(ctx context.Context, userID string) ([]models.Category, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created := make([]models.Category, 0, len(models.DefaultCategories))
	for _, def := range models.DefaultCategories {
		c, err := scanCategory(tx.QueryRowContext(ctx, insertCategory, userID, def.Name, def.Color, nil, true))
		if err != nil {
			return nil, fmt.Errorf("insert default category %s: %w", def.Name, err)
		}
		created = append(created, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}

func (r *categoryRepository) Update(ctx context.Context, category models.Category) (models.Category, error) {
	const query = `
		UPDATE planner.categories
		SET name = $3, color = $4, description = $5, is_default = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + categoryColumns

	row := r.db.QueryRowContext(ctx, query,
		category.ID,
		category.UserID,
		strings.TrimSpace(category.Name),
		strings.ToUpper(category.Color),
		nullString(category.Description),
		category.IsDefault,
	)
	return scanCategory(row)
}

func (r *categoryRepository) Delete(ctx context.Context, userID, categoryID string) error {
	const query = `DELETE FROM planner.categories WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, categoryID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanCategory(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Category, error) {
	var (
		c           models.Category
		description sql.NullString
	)
	if err := scanner.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Color,
		&description,
		&c.IsDefault,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return models.Category{}, err
	}
	c.Description = description.String
	return c, nil
}
