package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
)

// sqliteUserRepo, UserRepository interface'inin SQLite implementasyonu.
//
// Go'da struct field'ları küçük harfle başlarsa (db) → private.
// Repository'nin DB bağlantısı dışarıya açık olmamalı — bu yüzden küçük harf.
type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, constructor fonksiyonu.
// UserRepository interface'i döner (concrete struct değil) — Dependency Inversion.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

const userColumns = `id, username, password_hash, status, color, avatar_glyph, custom_avatar, settings, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var settings string
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Status, &u.Color,
		&u.AvatarGlyph, &u.CustomAvatar, &settings, &u.CreatedAt, &u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Settings = []byte(settings)
	return u, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	settings := string(user.Settings)
	if settings == "" {
		settings = "{}"
	}

	query := `
		INSERT INTO users (id, username, password_hash, status, color, avatar_glyph, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Status,
		user.Color, user.AvatarGlyph, settings,
	).Scan(&user.CreatedAt)

	if err != nil {
		// UNIQUE constraint violation → kullanıcı adı zaten var (NOCASE)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetByIDs, ID listesine göre kullanıcıları döner. Bulunamayan ID'ler
// sessizce atlanır — caller eksikleri tolere eder (silinmiş hesaplar).
func (r *sqliteUserRepo) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	defer rows.Close() // rows'u kapatmayı ASLA unutma — aksi halde bağlantı sızar

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *sqliteUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET color = ?, avatar_glyph = ?, settings = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		user.Color, user.AvatarGlyph, string(user.Settings), user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) UpdateAvatar(ctx context.Context, userID string, avatar *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET custom_avatar = ? WHERE id = ?`, avatar, userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) Anonymize(ctx context.Context, userID, placeholder string) error {
	query := `
		UPDATE users
		SET username = ?, password_hash = '', custom_avatar = NULL,
		    settings = '{}', status = 'offline', deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, placeholder, userID)
	if err != nil {
		return fmt.Errorf("failed to anonymize user: %w", err)
	}
	return requireAffected(result)
}

// ─── Paylaşılan yardımcılar ───

// isUniqueViolation, SQLite UNIQUE constraint hatasını kontrol eder.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// requireAffected, 0 satır etkilendiyse ErrNotFound döner.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
