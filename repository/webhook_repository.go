package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// WebhookRepository, kanal webhook'larını yönetir.
// Token sadece Create sonrası response'da döner; listelemede gizlenir.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	ListByChannel(ctx context.Context, channelID string) ([]models.Webhook, error)
	Delete(ctx context.Context, id string) error
}

// ReportRepository, kullanıcı şikayetlerini yönetir.
type ReportRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
	// ListReports, verilen durumdaki şikayetleri döner; status boşsa tümü.
	ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error)
	SetReportStatus(ctx context.Context, id string, status models.ReportStatus) error
}
