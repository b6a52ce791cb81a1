package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

type sqliteMessageRepo struct {
	db database.TxQuerier
}

// NewSQLiteMessageRepo, MessageRepository'nin SQLite implementasyonunu döner.
func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

// messageColumns: author alanları join ile çözülür — kullanıcı mesajında
// users tablosundan, webhook mesajında override kolonlarından.
const messageColumns = `
	m.id, m.channel_id, m.user_id, m.webhook_id,
	COALESCE(m.override_username, u.username, '') AS display_name,
	COALESCE(m.override_avatar, u.custom_avatar) AS avatar,
	m.content, m.reply_to_id, m.command_data, m.mentions, m.channel_links,
	m.embeds, m.attachments, m.created_at, m.edited_at, m.deleted`

const messageJoin = ` FROM messages m LEFT JOIN users u ON u.id = m.user_id `

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	var mentions, channelLinks, embeds, attachments string
	var commandData *string

	err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.Author.UserID, &msg.Author.WebhookID,
		&msg.Author.DisplayName, &msg.Author.Avatar,
		&msg.Content, &msg.ReplyToID, &commandData, &mentions, &channelLinks,
		&embeds, &attachments, &msg.CreatedAt, &msg.EditedAt, &msg.Deleted,
	)
	if err != nil {
		return nil, err
	}

	// JSON kolonları — boş/bozuk değerde zero value kalır, satır kaybolmaz.
	if commandData != nil && *commandData != "" {
		cd := &models.CommandData{}
		if json.Unmarshal([]byte(*commandData), cd) == nil {
			msg.CommandData = cd
		}
	}
	_ = json.Unmarshal([]byte(mentions), &msg.Mentions)
	_ = json.Unmarshal([]byte(channelLinks), &msg.ChannelLinks)
	_ = json.Unmarshal([]byte(embeds), &msg.Embeds)
	_ = json.Unmarshal([]byte(attachments), &msg.Attachments)

	// Slice'lar nil serialize edilmesin.
	if msg.Mentions.Users == nil {
		msg.Mentions.Users = []string{}
	}
	if msg.Mentions.Roles == nil {
		msg.Mentions.Roles = []string{}
	}
	if msg.ChannelLinks == nil {
		msg.ChannelLinks = []string{}
	}
	if msg.Embeds == nil {
		msg.Embeds = []models.Embed{}
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	msg.Reactions = map[string][]string{}
	return msg, nil
}

func (r *sqliteMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	mentions, _ := json.Marshal(msg.Mentions)
	channelLinks, _ := json.Marshal(msg.ChannelLinks)
	embeds, _ := json.Marshal(msg.Embeds)
	attachments, _ := json.Marshal(msg.Attachments)

	// Webhook mesajında display name override kolonlarında saklanır —
	// kullanıcı mesajında NULL kalır, okuma join'i users'tan çözer.
	var overrideUsername, overrideAvatar *string
	if msg.Author.IsWebhook() {
		overrideUsername = &msg.Author.DisplayName
		overrideAvatar = msg.Author.Avatar
	}
	var commandData *string
	if msg.CommandData != nil {
		b, _ := json.Marshal(msg.CommandData)
		s := string(b)
		commandData = &s
	}

	query := `
		INSERT INTO messages (id, channel_id, user_id, webhook_id, override_username,
			override_avatar, content, reply_to_id, command_data, mentions, channel_links,
			embeds, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ChannelID, msg.Author.UserID, msg.Author.WebhookID,
		overrideUsername, overrideAvatar, msg.Content, msg.ReplyToID, commandData,
		string(mentions), string(channelLinks), string(embeds), string(attachments),
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+messageJoin+`WHERE m.id = ? AND m.deleted = 0`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetPage, limit+1 satır çekerek has_more'u tek sorguda tespit eder.
// DESC çekilir, kronolojik sıraya çevrilir.
func (r *sqliteMessageRepo) GetPage(ctx context.Context, channelID, beforeID string, limit int) (*models.MessagePage, error) {
	args := []any{channelID}
	query := `SELECT ` + messageColumns + messageJoin + `WHERE m.channel_id = ? AND m.deleted = 0`
	if beforeID != "" {
		query += ` AND CAST(m.id AS INTEGER) < CAST(? AS INTEGER)`
		args = append(args, beforeID)
	}
	query += ` ORDER BY CAST(m.id AS INTEGER) DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get message page: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	page := &models.MessagePage{HasMore: len(messages) > limit}
	if page.HasMore {
		messages = messages[:limit]
	}

	// DESC → kronolojik sıraya çevir.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	page.Messages = messages
	return page, nil
}

func (r *sqliteMessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0`,
		content, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteMessageRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET deleted = 1 WHERE id = ? AND deleted = 0`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return requireAffected(result)
}

// LastMessageID, kanaldaki son görünür mesajın ID'sini döner (yoksa boş).
func (r *sqliteMessageRepo) LastMessageID(ctx context.Context, channelID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE channel_id = ? AND deleted = 0
		 ORDER BY CAST(id AS INTEGER) DESC LIMIT 1`, channelID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last message id: %w", err)
	}
	return id, nil
}

// CountAfter, cursor'dan sonraki görünür mesaj sayısını döner — unread count.
func (r *sqliteMessageRepo) CountAfter(ctx context.Context, channelID, afterID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE channel_id = ? AND deleted = 0`
	args := []any{channelID}
	if afterID != "" {
		query += ` AND CAST(id AS INTEGER) > CAST(? AS INTEGER)`
		args = append(args, afterID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
