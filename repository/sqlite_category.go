package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

type sqliteCategoryRepo struct {
	db database.TxQuerier
}

// NewSQLiteCategoryRepo, CategoryRepository'nin SQLite implementasyonunu döner.
func NewSQLiteCategoryRepo(db database.TxQuerier) CategoryRepository {
	return &sqliteCategoryRepo{db: db}
}

func (r *sqliteCategoryRepo) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}

	query := `
		INSERT INTO categories (id, server_id, name, position)
		VALUES (?, ?, ?,
			COALESCE((SELECT MAX(position) + 1 FROM categories WHERE server_id = ?), 0))
		RETURNING position`

	err := r.db.QueryRowContext(ctx, query,
		category.ID, category.ServerID, category.Name, category.ServerID,
	).Scan(&category.Position)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *sqliteCategoryRepo) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	c := &models.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, server_id, name, position FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.ServerID, &c.Name, &c.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *sqliteCategoryRepo) ListCategories(ctx context.Context, serverID string) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, server_id, name, position FROM categories WHERE server_id = ? ORDER BY position`,
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

func (r *sqliteCategoryRepo) UpdateCategory(ctx context.Context, category *models.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?`, category.Name, category.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(result)
}

// DeleteCategory, kategoriyi siler — kanallar silinmez, FK SET NULL ile
// kategorisiz kalır.
func (r *sqliteCategoryRepo) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result)
}

// ReorderCategories — atomiklik için caller tx üzerinden kurar.
func (r *sqliteCategoryRepo) ReorderCategories(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		result, err := r.db.ExecContext(ctx,
			`UPDATE categories SET position = ? WHERE id = ? AND server_id = ?`,
			item.Position, item.ID, serverID,
		)
		if err != nil {
			return fmt.Errorf("failed to reorder category %s: %w", item.ID, err)
		}
		if err := requireAffected(result); err != nil {
			return fmt.Errorf("category %s: %w", item.ID, err)
		}
	}
	return nil
}
