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

type sqliteFriendshipRepo struct {
	db database.TxQuerier
}

// NewSQLiteFriendshipRepo, FriendshipRepository'nin SQLite implementasyonunu döner.
func NewSQLiteFriendshipRepo(db database.TxQuerier) FriendshipRepository {
	return &sqliteFriendshipRepo{db: db}
}

func (r *sqliteFriendshipRepo) CreateRequest(ctx context.Context, f *models.Friendship) error {
	// Önce iki yönde mevcut kayıt kontrolü — pending/accepted varsa conflict.
	existing, err := r.GetBetween(ctx, f.RequesterID, f.TargetID)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return err
	}
	if existing != nil {
		switch existing.State {
		case models.FriendshipAccepted:
			return fmt.Errorf("%w: already friends", pkg.ErrAlreadyExists)
		case models.FriendshipPending:
			return fmt.Errorf("%w: request already pending", pkg.ErrAlreadyExists)
		default:
			// Rejected kayıt yeniden istek atmayı engellemez — eskisi silinir.
			if err := r.Delete(ctx, existing.ID); err != nil {
				return err
			}
		}
	}

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.State = models.FriendshipPending

	query := `
		INSERT INTO friendships (id, requester_id, target_id, state)
		VALUES (?, ?, ?, ?)
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		f.ID, f.RequesterID, f.TargetID, f.State,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request already pending", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

func (r *sqliteFriendshipRepo) GetByID(ctx context.Context, id string) (*models.Friendship, error) {
	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, requester_id, target_id, state, created_at FROM friendships WHERE id = ?`, id,
	).Scan(&f.ID, &f.RequesterID, &f.TargetID, &f.State, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) GetBetween(ctx context.Context, userA, userB string) (*models.Friendship, error) {
	query := `
		SELECT id, requester_id, target_id, state, created_at FROM friendships
		WHERE (requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)
		ORDER BY created_at DESC LIMIT 1`

	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx, query, userA, userB, userB, userA).Scan(
		&f.ID, &f.RequesterID, &f.TargetID, &f.State, &f.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship between users: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) SetState(ctx context.Context, id string, state models.FriendshipState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE friendships SET state = ? WHERE id = ?`, state, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update friendship state: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteFriendshipRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteFriendshipRepo) DeleteBetween(ctx context.Context, userA, userB string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships
		 WHERE (requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return fmt.Errorf("failed to delete friendship between users: %w", err)
	}
	return nil
}

// ListForUser, kullanıcının arkadaş listesi görünümünü döner:
// accepted kayıtlar + gelen/giden pending istekler.
func (r *sqliteFriendshipRepo) ListForUser(ctx context.Context, userID string) ([]models.FriendEntry, error) {
	query := `
		SELECT f.id, f.requester_id, f.target_id, f.state, f.created_at,
		       u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.requester_id = ? THEN f.target_id ELSE f.requester_id END
		WHERE (f.requester_id = ? OR f.target_id = ?) AND f.state != 'rejected'
		ORDER BY f.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}
	defer rows.Close()

	entries := []models.FriendEntry{}
	for rows.Next() {
		var e models.FriendEntry
		if err := rows.Scan(
			&e.Friendship.ID, &e.Friendship.RequesterID, &e.Friendship.TargetID,
			&e.Friendship.State, &e.Friendship.CreatedAt,
			&e.User.ID, &e.User.Username, &e.User.Status, &e.User.Color,
			&e.User.AvatarGlyph, &e.User.CustomAvatar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan friendship row: %w", err)
		}
		e.Incoming = e.Friendship.TargetID == userID
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friendship rows: %w", err)
	}
	return entries, nil
}

func (r *sqliteFriendshipRepo) Block(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocks (blocker_id, blocked_id) VALUES (?, ?)`,
		blockerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

func (r *sqliteFriendshipRepo) Unblock(ctx context.Context, blockerID, blockedID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteFriendshipRepo) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks
		 WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)`,
		userA, userB, userB, userA,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteFriendshipRepo) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT blocked_id FROM blocks WHERE blocker_id = ? ORDER BY created_at`, blockerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan blocked id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocked rows: %w", err)
	}
	return ids, nil
}
