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

type sqliteWebhookRepo struct {
	db database.TxQuerier
}

// NewSQLiteWebhookRepo, WebhookRepository'nin SQLite implementasyonunu döner.
func NewSQLiteWebhookRepo(db database.TxQuerier) WebhookRepository {
	return &sqliteWebhookRepo{db: db}
}

func (r *sqliteWebhookRepo) Create(ctx context.Context, webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}

	query := `
		INSERT INTO webhooks (id, token, channel_id, name, avatar, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		webhook.ID, webhook.Token, webhook.ChannelID,
		webhook.Name, webhook.Avatar, webhook.CreatedBy,
	).Scan(&webhook.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

func (r *sqliteWebhookRepo) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	w := &models.Webhook{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, channel_id, name, avatar, created_by, created_at
		 FROM webhooks WHERE id = ?`, id,
	).Scan(&w.ID, &w.Token, &w.ChannelID, &w.Name, &w.Avatar, &w.CreatedBy, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

// ListByChannel, token'ları BOŞ olarak döner — token yalnızca oluşturma
// anında bir kez gösterilir.
func (r *sqliteWebhookRepo) ListByChannel(ctx context.Context, channelID string) ([]models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, channel_id, name, avatar, created_by, created_at
		 FROM webhooks WHERE channel_id = ? ORDER BY created_at`, channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		var w models.Webhook
		if err := rows.Scan(&w.ID, &w.ChannelID, &w.Name, &w.Avatar, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook row: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook rows: %w", err)
	}
	return webhooks, nil
}

func (r *sqliteWebhookRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return requireAffected(result)
}
