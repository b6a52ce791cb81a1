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

type sqliteChannelRepo struct {
	db database.TxQuerier
}

// NewSQLiteChannelRepo, ChannelRepository'nin SQLite implementasyonunu döner.
func NewSQLiteChannelRepo(db database.TxQuerier) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

const channelColumns = `id, server_id, category_id, type, name, description, is_private, position, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*models.Channel, error) {
	ch := &models.Channel{}
	err := row.Scan(
		&ch.ID, &ch.ServerID, &ch.CategoryID, &ch.Type, &ch.Name,
		&ch.Description, &ch.IsPrivate, &ch.Position, &ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *sqliteChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.New().String()
	}

	query := `
		INSERT INTO channels (id, server_id, category_id, type, name, description, is_private, position)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(position) + 1 FROM channels
			          WHERE server_id IS ? AND category_id IS ?), 0))
		RETURNING position, created_at`

	err := r.db.QueryRowContext(ctx, query,
		channel.ID, channel.ServerID, channel.CategoryID, channel.Type,
		channel.Name, channel.Description, channel.IsPrivate,
		channel.ServerID, channel.CategoryID,
	).Scan(&channel.Position, &channel.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already in use", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	ch, err := scanChannel(r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

func (r *sqliteChannelRepo) ListByServer(ctx context.Context, serverID string) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE server_id = ? ORDER BY position, created_at`,
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}
	return channels, nil
}

func (r *sqliteChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET name = ?, description = ?, is_private = ? WHERE id = ?`,
		channel.Name, channel.Description, channel.IsPrivate, channel.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already in use", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteChannelRepo) Move(ctx context.Context, channelID string, categoryID *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET category_id = ? WHERE id = ?`, categoryID, channelID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already in use in target category", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to move channel: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteChannelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return requireAffected(result)
}

// Reorder, pozisyonları sırayla günceller. Atomiklik caller'ın
// sorumluluğundadır — service bu repo'yu database.WithTx içinde tx
// üzerinden kurar.
func (r *sqliteChannelRepo) Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		result, err := r.db.ExecContext(ctx,
			`UPDATE channels SET position = ? WHERE id = ? AND server_id = ?`,
			item.Position, item.ID, serverID,
		)
		if err != nil {
			return fmt.Errorf("failed to reorder channel %s: %w", item.ID, err)
		}
		if err := requireAffected(result); err != nil {
			return fmt.Errorf("channel %s: %w", item.ID, err)
		}
	}
	return nil
}
