package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexushq/nexus/database"
	"github.com/nexushq/nexus/models"
)

type sqliteReportRepo struct {
	db database.TxQuerier
}

// NewSQLiteReportRepo, ReportRepository'nin SQLite implementasyonunu döner.
func NewSQLiteReportRepo(db database.TxQuerier) ReportRepository {
	return &sqliteReportRepo{db: db}
}

func (r *sqliteReportRepo) CreateReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusOpen
	}

	query := `
		INSERT INTO reports (id, reporter_id, reported_user_id, message_id,
			message_content, message_channel_id, type, description, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		report.ID, report.ReporterID, report.ReportedUserID, report.MessageID,
		report.MessageContent, report.MessageChannelID, report.Type,
		report.Description, report.Status,
	).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *sqliteReportRepo) ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error) {
	query := `
		SELECT id, reporter_id, reported_user_id, message_id, message_content,
		       message_channel_id, type, description, status, created_at
		FROM reports`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(
			&rep.ID, &rep.ReporterID, &rep.ReportedUserID, &rep.MessageID,
			&rep.MessageContent, &rep.MessageChannelID, &rep.Type,
			&rep.Description, &rep.Status, &rep.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}
	return reports, nil
}

func (r *sqliteReportRepo) SetReportStatus(ctx context.Context, id string, status models.ReportStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	return requireAffected(result)
}
