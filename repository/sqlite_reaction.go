package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexushq/nexus/database"
)

type sqliteReactionRepo struct {
	db database.TxQuerier
}

// NewSQLiteReactionRepo, ReactionRepository'nin SQLite implementasyonunu döner.
func NewSQLiteReactionRepo(db database.TxQuerier) ReactionRepository {
	return &sqliteReactionRepo{db: db}
}

func (r *sqliteReactionRepo) Add(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
		messageID, userID, emoji,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteReactionRepo) Remove(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteReactionRepo) MapFor(ctx context.Context, messageIDs []string) (map[string]map[string][]string, error) {
	result := map[string]map[string][]string{}
	if len(messageIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(messageIDs)-1) + "?"
	query := `
		SELECT message_id, emoji, user_id FROM reactions
		WHERE message_id IN (` + placeholders + `)
		ORDER BY created_at`

	args := make([]any, len(messageIDs))
	for i, id := range messageIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, emoji, userID string
		if err := rows.Scan(&messageID, &emoji, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan reaction row: %w", err)
		}
		if result[messageID] == nil {
			result[messageID] = map[string][]string{}
		}
		result[messageID][emoji] = append(result[messageID][emoji], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reaction rows: %w", err)
	}
	return result, nil
}
