package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

type sqliteReadStateRepo struct {
	db database.TxQuerier
}

// NewSQLiteReadStateRepo, ReadStateRepository'nin SQLite implementasyonunu döner.
func NewSQLiteReadStateRepo(db database.TxQuerier) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) Upsert(ctx context.Context, userID, channelID, lastReadMessageID string) error {
	query := `
		INSERT INTO read_states (user_id, channel_id, last_read_message_id, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, channel_id)
		DO UPDATE SET last_read_message_id = excluded.last_read_message_id,
		              updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, userID, channelID, lastReadMessageID)
	if err != nil {
		return fmt.Errorf("failed to upsert read state: %w", err)
	}
	return nil
}

func (r *sqliteReadStateRepo) Get(ctx context.Context, userID, channelID string) (*models.ReadState, error) {
	s := &models.ReadState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, channel_id, last_read_message_id, updated_at
		 FROM read_states WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	).Scan(&s.UserID, &s.ChannelID, &s.LastReadMessageID, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read state: %w", err)
	}
	return s, nil
}

func (r *sqliteReadStateRepo) ListForUser(ctx context.Context, userID string) ([]models.ReadState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, channel_id, last_read_message_id, updated_at
		 FROM read_states WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list read states: %w", err)
	}
	defer rows.Close()

	states := []models.ReadState{}
	for rows.Next() {
		var s models.ReadState
		if err := rows.Scan(&s.UserID, &s.ChannelID, &s.LastReadMessageID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan read state row: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating read state rows: %w", err)
	}
	return states, nil
}
