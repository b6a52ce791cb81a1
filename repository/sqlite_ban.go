package repository

import (
	"context"
	"fmt"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

type sqliteBanRepo struct {
	db database.TxQuerier
}

// NewSQLiteBanRepo, BanRepository'nin SQLite implementasyonunu döner.
func NewSQLiteBanRepo(db database.TxQuerier) BanRepository {
	return &sqliteBanRepo{db: db}
}

func (r *sqliteBanRepo) Add(ctx context.Context, ban *models.Ban) error {
	query := `
		INSERT INTO bans (server_id, user_id, banned_by, reason)
		VALUES (?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		ban.ServerID, ban.UserID, ban.BannedBy, ban.Reason,
	).Scan(&ban.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already banned", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

func (r *sqliteBanRepo) Remove(ctx context.Context, serverID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bans WHERE server_id = ? AND user_id = ?`, serverID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteBanRepo) IsBanned(ctx context.Context, serverID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bans WHERE server_id = ? AND user_id = ?`, serverID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteBanRepo) ListByServer(ctx context.Context, serverID string) ([]models.Ban, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT server_id, user_id, banned_by, reason, created_at
		 FROM bans WHERE server_id = ? ORDER BY created_at DESC`, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	bans := []models.Ban{}
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(&b.ServerID, &b.UserID, &b.BannedBy, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ban row: %w", err)
		}
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ban rows: %w", err)
	}
	return bans, nil
}
