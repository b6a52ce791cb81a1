package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

type sqliteMemberRepo struct {
	db database.TxQuerier
}

// NewSQLiteMemberRepo, MemberRepository'nin SQLite implementasyonunu döner.
func NewSQLiteMemberRepo(db database.TxQuerier) MemberRepository {
	return &sqliteMemberRepo{db: db}
}

func (r *sqliteMemberRepo) Add(ctx context.Context, userID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, server_id) VALUES (?, ?)`, userID, serverID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *sqliteMemberRepo) Get(ctx context.Context, userID, serverID string) (*models.Membership, error) {
	query := `
		SELECT user_id, server_id, joined_at, timeout_until
		FROM memberships WHERE user_id = ? AND server_id = ?`

	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, userID, serverID).Scan(
		&m.UserID, &m.ServerID, &m.JoinedAt, &m.TimeoutUntil,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *sqliteMemberRepo) Remove(ctx context.Context, userID, serverID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = ? AND server_id = ?`, userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	// Rol atamaları da düşer — member_roles FK cascade ile değil, açık silme
	// ile: member_roles.user_id FK'sı users'a bağlı, membership'e değil.
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE user_id = ? AND server_id = ?`, userID, serverID,
	); err != nil {
		return fmt.Errorf("failed to clear member roles: %w", err)
	}
	return requireAffected(result)
}

// ListByServer, sunucu üyelerini kullanıcı bilgisi ve rolleriyle döner.
func (r *sqliteMemberRepo) ListByServer(ctx context.Context, serverID string) ([]models.Member, error) {
	query := `
		SELECT u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar,
		       m.joined_at, m.timeout_until
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.server_id = ?
		ORDER BY m.joined_at`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	byUser := map[string]int{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(
			&m.User.ID, &m.User.Username, &m.User.Status, &m.User.Color,
			&m.User.AvatarGlyph, &m.User.CustomAvatar, &m.JoinedAt, &m.TimeoutUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		m.RoleIDs = []string{}
		byUser[m.User.ID] = len(members)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	// İkinci sorgu ile rol atamaları — N+1 yerine tek join.
	roleRows, err := r.db.QueryContext(ctx,
		`SELECT user_id, role_id FROM member_roles WHERE server_id = ?`, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list member roles: %w", err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var userID, roleID string
		if err := roleRows.Scan(&userID, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan member role row: %w", err)
		}
		if idx, ok := byUser[userID]; ok {
			members[idx].RoleIDs = append(members[idx].RoleIDs, roleID)
		}
	}
	if err := roleRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member role rows: %w", err)
	}
	return members, nil
}

func (r *sqliteMemberRepo) ListUserIDs(ctx context.Context, serverID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE server_id = ?`, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member ids: %w", err)
	}
	return ids, nil
}

func (r *sqliteMemberRepo) Count(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE server_id = ?`, serverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r *sqliteMemberRepo) SetTimeout(ctx context.Context, userID, serverID string, until *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET timeout_until = ? WHERE user_id = ? AND server_id = ?`,
		until, userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to set timeout: %w", err)
	}
	return requireAffected(result)
}

// LongestJoinedWith, verilen permission bit'ini taşıyan (admin dahil)
// en eski üyeyi döner. Aday yoksa ErrNotFound.
func (r *sqliteMemberRepo) LongestJoinedWith(ctx context.Context, serverID string, perm models.Permission, excludeUserID string) (string, error) {
	query := `
		SELECT m.user_id
		FROM memberships m
		JOIN member_roles mr ON mr.user_id = m.user_id AND mr.server_id = m.server_id
		JOIN roles r ON r.id = mr.role_id
		WHERE m.server_id = ? AND m.user_id != ?
		  AND (r.permissions & ? != 0 OR r.permissions & ? != 0)
		ORDER BY m.joined_at
		LIMIT 1`

	var userID string
	err := r.db.QueryRowContext(ctx, query,
		serverID, excludeUserID, int64(perm), int64(models.PermAdministrator),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pkg.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find transfer candidate: %w", err)
	}
	return userID, nil
}
