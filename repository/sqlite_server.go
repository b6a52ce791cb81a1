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

type sqliteServerRepo struct {
	db database.TxQuerier
}

// NewSQLiteServerRepo, ServerRepository'nin SQLite implementasyonunu döner.
func NewSQLiteServerRepo(db database.TxQuerier) ServerRepository {
	return &sqliteServerRepo{db: db}
}

func (r *sqliteServerRepo) Create(ctx context.Context, server *models.Server) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}

	query := `
		INSERT INTO servers (id, name, owner_id, icon)
		VALUES (?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		server.ID, server.Name, server.OwnerID, server.Icon,
	).Scan(&server.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	query := `SELECT id, name, owner_id, icon, archived, created_at FROM servers WHERE id = ?`

	s := &models.Server{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.OwnerID, &s.Icon, &s.Archived, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return s, nil
}

// GetByUser, kullanıcının üyesi olduğu arşivlenmemiş sunucuları döner.
func (r *sqliteServerRepo) GetByUser(ctx context.Context, userID string) ([]models.Server, error) {
	query := `
		SELECT s.id, s.name, s.owner_id, s.icon, s.archived, s.created_at
		FROM servers s
		JOIN memberships m ON m.server_id = s.id
		WHERE m.user_id = ? AND s.archived = 0
		ORDER BY m.joined_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get servers for user: %w", err)
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		var s models.Server
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &s.Icon, &s.Archived, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan server row: %w", err)
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating server rows: %w", err)
	}
	return servers, nil
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET name = ?, icon = ? WHERE id = ?`,
		server.Name, server.Icon, server.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerRepo) TransferOwnership(ctx context.Context, serverID, newOwnerID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET owner_id = ? WHERE id = ?`, newOwnerID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return requireAffected(result)
}

// Archive, sunucuyu listelerden gizler ama verisini korur.
// Owner ayrıldığında devredilecek admin bulunamazsa kullanılır.
func (r *sqliteServerRepo) Archive(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE servers SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to archive server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return requireAffected(result)
}
