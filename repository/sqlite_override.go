package repository

import (
	"context"
	"fmt"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
)

type sqliteOverrideRepo struct {
	db database.TxQuerier
}

// NewSQLiteOverrideRepo, OverrideRepository'nin SQLite implementasyonunu döner.
func NewSQLiteOverrideRepo(db database.TxQuerier) OverrideRepository {
	return &sqliteOverrideRepo{db: db}
}

func (r *sqliteOverrideRepo) SetRoleOverride(ctx context.Context, channelID, roleID string, allow, deny models.Permission) error {
	query := `
		INSERT INTO channel_overrides (channel_id, role_id, allow, deny)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id, role_id) WHERE role_id IS NOT NULL
		DO UPDATE SET allow = excluded.allow, deny = excluded.deny`

	_, err := r.db.ExecContext(ctx, query, channelID, roleID, int64(allow), int64(deny))
	if err != nil {
		return fmt.Errorf("failed to set role override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) SetUserOverride(ctx context.Context, channelID, userID string, allow, deny models.Permission) error {
	query := `
		INSERT INTO channel_overrides (channel_id, user_id, allow, deny)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id, user_id) WHERE user_id IS NOT NULL
		DO UPDATE SET allow = excluded.allow, deny = excluded.deny`

	_, err := r.db.ExecContext(ctx, query, channelID, userID, int64(allow), int64(deny))
	if err != nil {
		return fmt.Errorf("failed to set user override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) RemoveRoleOverride(ctx context.Context, channelID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM channel_overrides WHERE channel_id = ? AND role_id = ?`, channelID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove role override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) RemoveUserOverride(ctx context.Context, channelID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM channel_overrides WHERE channel_id = ? AND user_id = ?`, channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove user override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) ListByChannel(ctx context.Context, channelID string) ([]models.ChannelOverride, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_id, role_id, user_id, allow, deny FROM channel_overrides WHERE channel_id = ?`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	overrides := []models.ChannelOverride{}
	for rows.Next() {
		var o models.ChannelOverride
		var allow, deny int64
		if err := rows.Scan(&o.ChannelID, &o.RoleID, &o.UserID, &allow, &deny); err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}
		o.Allow = models.Permission(allow)
		o.Deny = models.Permission(deny)
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating override rows: %w", err)
	}
	return overrides, nil
}
