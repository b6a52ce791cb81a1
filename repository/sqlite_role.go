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

type sqliteRoleRepo struct {
	db database.TxQuerier
}

// NewSQLiteRoleRepo, RoleRepository'nin SQLite implementasyonunu döner.
func NewSQLiteRoleRepo(db database.TxQuerier) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

const roleColumns = `id, server_id, name, color, permissions, position, is_everyone, created_at`

func scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	role := &models.Role{}
	var perms int64
	err := row.Scan(
		&role.ID, &role.ServerID, &role.Name, &role.Color,
		&perms, &role.Position, &role.IsEveryone, &role.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	role.Permissions = models.Permission(perms)
	return role, nil
}

func (r *sqliteRoleRepo) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}

	query := `
		INSERT INTO roles (id, server_id, name, color, permissions, position, is_everyone)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		role.ID, role.ServerID, role.Name, role.Color,
		int64(role.Permissions), role.Position, role.IsEveryone,
	).Scan(&role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetEveryone(ctx context.Context, serverID string) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = ? AND is_everyone = 1`, serverID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get everyone role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) ListByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = ? ORDER BY position DESC`, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}
	return roles, nil
}

func (r *sqliteRoleRepo) Update(ctx context.Context, role *models.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, color = ?, permissions = ?, position = ? WHERE id = ?`,
		role.Name, role.Color, int64(role.Permissions), role.Position, role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteRoleRepo) Delete(ctx context.Context, id string) error {
	// @everyone silinemez — engine için zorunlu satır.
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM roles WHERE id = ? AND is_everyone = 0`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteRoleRepo) Assign(ctx context.Context, userID, roleID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO member_roles (user_id, role_id, server_id) VALUES (?, ?, ?)`,
		userID, roleID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) Unassign(ctx context.Context, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE user_id = ? AND role_id = ?`, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) RolesOf(ctx context.Context, userID, serverID string) ([]models.Role, error) {
	query := `
		SELECT r.id, r.server_id, r.name, r.color, r.permissions, r.position, r.is_everyone, r.created_at
		FROM roles r
		JOIN member_roles mr ON mr.role_id = r.id
		WHERE mr.user_id = ? AND mr.server_id = ?
		ORDER BY r.position DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}
	return roles, nil
}
