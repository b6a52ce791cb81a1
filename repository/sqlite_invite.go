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

type sqliteInviteRepo struct {
	db database.TxQuerier
}

// NewSQLiteInviteRepo, InviteRepository'nin SQLite implementasyonunu döner.
func NewSQLiteInviteRepo(db database.TxQuerier) InviteRepository {
	return &sqliteInviteRepo{db: db}
}

const inviteColumns = `code, server_id, created_by, max_uses, uses, expires_at, revoked, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*models.Invite, error) {
	inv := &models.Invite{}
	err := row.Scan(
		&inv.Code, &inv.ServerID, &inv.CreatedBy, &inv.MaxUses,
		&inv.Uses, &inv.ExpiresAt, &inv.Revoked, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *sqliteInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invites (code, server_id, created_by, max_uses, expires_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		invite.Code, invite.ServerID, invite.CreatedBy, invite.MaxUses, invite.ExpiresAt,
	).Scan(&invite.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invite code collision", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *sqliteInviteRepo) GetByCode(ctx context.Context, code string) (*models.Invite, error) {
	inv, err := scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE code = ?`, code,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) ListByServer(ctx context.Context, serverID string) ([]models.Invite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE server_id = ? AND revoked = 0 ORDER BY created_at DESC`,
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", err)
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", err)
	}
	return invites, nil
}

func (r *sqliteInviteRepo) Revoke(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites SET revoked = 1 WHERE code = ? AND revoked = 0`, code,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	return requireAffected(result)
}

// ConsumeUse: tüm geçerlilik koşulları WHERE'dedir — geçersiz davette
// sayaç artmaz ve ErrNotFound döner. Tek UPDATE olduğu için yarışan iki
// kullanım limiti aşamaz.
func (r *sqliteInviteRepo) ConsumeUse(ctx context.Context, code string) error {
	query := `
		UPDATE invites SET uses = uses + 1
		WHERE code = ? AND revoked = 0
		  AND (max_uses IS NULL OR uses < max_uses)
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`

	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to consume invite use: %w", err)
	}
	return requireAffected(result)
}
