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

type sqliteDMRepo struct {
	db database.TxQuerier
}

// NewSQLiteDMRepo, DMRepository'nin SQLite implementasyonunu döner.
func NewSQLiteDMRepo(db database.TxQuerier) DMRepository {
	return &sqliteDMRepo{db: db}
}

func (r *sqliteDMRepo) AddParticipant(ctx context.Context, channelID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dm_participants (channel_id, user_id) VALUES (?, ?)`,
		channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add dm participant: %w", err)
	}
	// Her katılımcının bir state satırı olur — görünürlük bayrakları buradan yönetilir.
	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dm_user_state (channel_id, user_id) VALUES (?, ?)`,
		channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to init dm user state: %w", err)
	}
	return nil
}

func (r *sqliteDMRepo) RemoveParticipant(ctx context.Context, channelID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_participants WHERE channel_id = ? AND user_id = ?`, channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove dm participant: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteDMRepo) IsParticipant(ctx context.Context, channelID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dm_participants WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check dm participant: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteDMRepo) ParticipantIDs(ctx context.Context, channelID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM dm_participants WHERE channel_id = ? ORDER BY added_at`, channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dm participants: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return ids, nil
}

func (r *sqliteDMRepo) Participants(ctx context.Context, channelID string) ([]models.PublicUser, error) {
	query := `
		SELECT u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar
		FROM dm_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.channel_id = ?
		ORDER BY p.added_at`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dm participants: %w", err)
	}
	defer rows.Close()

	users := []models.PublicUser{}
	for rows.Next() {
		var u models.PublicUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Status, &u.Color, &u.AvatarGlyph, &u.CustomAvatar); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return users, nil
}

// FindDirect: type='dm' kanallarında tam olarak bu iki katılımcının
// bulunduğu kanal aranır.
func (r *sqliteDMRepo) FindDirect(ctx context.Context, userA, userB string) (string, error) {
	query := `
		SELECT c.id
		FROM channels c
		JOIN dm_participants p1 ON p1.channel_id = c.id AND p1.user_id = ?
		JOIN dm_participants p2 ON p2.channel_id = c.id AND p2.user_id = ?
		WHERE c.type = 'dm'
		LIMIT 1`

	var channelID string
	err := r.db.QueryRowContext(ctx, query, userA, userB).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pkg.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find direct dm: %w", err)
	}
	return channelID, nil
}

func (r *sqliteDMRepo) ListForUser(ctx context.Context, userID string) ([]models.DMChannel, error) {
	query := `
		SELECT c.id, c.server_id, c.category_id, c.type, c.name, c.description,
		       c.is_private, c.position, c.created_at,
		       COALESCE(s.request_pending, 0), COALESCE(s.archived, 0)
		FROM channels c
		JOIN dm_participants p ON p.channel_id = c.id AND p.user_id = ?
		LEFT JOIN dm_user_state s ON s.channel_id = c.id AND s.user_id = ?
		WHERE c.type IN ('dm', 'group_dm') AND COALESCE(s.hidden, 0) = 0
		ORDER BY c.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dm channels: %w", err)
	}
	defer rows.Close()

	channels := []models.DMChannel{}
	for rows.Next() {
		var dm models.DMChannel
		if err := rows.Scan(
			&dm.Channel.ID, &dm.Channel.ServerID, &dm.Channel.CategoryID,
			&dm.Channel.Type, &dm.Channel.Name, &dm.Channel.Description,
			&dm.Channel.IsPrivate, &dm.Channel.Position, &dm.Channel.CreatedAt,
			&dm.RequestPending, &dm.Archived,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dm channel row: %w", err)
		}
		dm.Participants = []models.PublicUser{}
		channels = append(channels, dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dm channel rows: %w", err)
	}
	return channels, nil
}

func (r *sqliteDMRepo) GetState(ctx context.Context, channelID, userID string) (*models.DMUserState, error) {
	s := &models.DMUserState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT channel_id, user_id, hidden, archived, request_pending
		 FROM dm_user_state WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	).Scan(&s.ChannelID, &s.UserID, &s.Hidden, &s.Archived, &s.RequestPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dm user state: %w", err)
	}
	return s, nil
}

func (r *sqliteDMRepo) SetHidden(ctx context.Context, channelID, userID string, hidden bool) error {
	return r.setStateFlag(ctx, "hidden", channelID, userID, hidden)
}

func (r *sqliteDMRepo) SetArchived(ctx context.Context, channelID, userID string, archived bool) error {
	return r.setStateFlag(ctx, "archived", channelID, userID, archived)
}

func (r *sqliteDMRepo) SetRequestPending(ctx context.Context, channelID, userID string, pending bool) error {
	return r.setStateFlag(ctx, "request_pending", channelID, userID, pending)
}

// setStateFlag: kolon adı sabit listeden gelir, kullanıcı girdisi değildir.
func (r *sqliteDMRepo) setStateFlag(ctx context.Context, column, channelID, userID string, value bool) error {
	query := `
		INSERT INTO dm_user_state (channel_id, user_id, ` + column + `)
		VALUES (?, ?, ?)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET ` + column + ` = excluded.` + column

	_, err := r.db.ExecContext(ctx, query, channelID, userID, value)
	if err != nil {
		return fmt.Errorf("failed to set dm %s flag: %w", column, err)
	}
	return nil
}
