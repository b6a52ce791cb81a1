package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
)

// ReportService, kullanıcı şikayetleri iş mantığı.
//
// Mesaj şikayetinde içerik rapora snapshot'lanır — mesaj sonradan
// silinse/düzenlense bile şikayet olduğu haliyle incelenebilir.
type ReportService interface {
	Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error)
	// List, viewReports yetkisi olan moderatörler içindir. serverID, yetkinin
	// kontrol edileceği sunucudur; status boşsa tüm durumlar döner.
	List(ctx context.Context, actorID, serverID string, status models.ReportStatus) ([]models.Report, error)
	SetStatus(ctx context.Context, actorID, serverID, reportID string, status models.ReportStatus) error
}

type reportService struct {
	reportRepo  repository.ReportRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	perms       PermissionService
}

// NewReportService, constructor.
func NewReportService(
	reportRepo repository.ReportRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	perms PermissionService,
) ReportService {
	return &reportService{
		reportRepo:  reportRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		perms:       perms,
	}
}

func (s *reportService) Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if req.ReportedUserID == reporterID {
		return nil, fmt.Errorf("%w: cannot report yourself", pkg.ErrBadRequest)
	}
	if _, err := s.userRepo.GetByID(ctx, req.ReportedUserID); err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID:     reporterID,
		ReportedUserID: req.ReportedUserID,
		Type:           models.ReportType(req.Type),
		Description:    req.Description,
	}

	if req.MessageID != "" {
		msg, err := s.messageRepo.GetByID(ctx, req.MessageID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return nil, fmt.Errorf("%w: reported message not found", pkg.ErrBadRequest)
			}
			return nil, err
		}
		if msg.Author.UserID == nil || *msg.Author.UserID != req.ReportedUserID {
			return nil, fmt.Errorf("%w: message does not belong to the reported user", pkg.ErrBadRequest)
		}
		report.MessageID = &msg.ID
		report.MessageContent = &msg.Content
		report.MessageChannelID = &msg.ChannelID
	}

	if err := s.reportRepo.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	log.Printf("[report] created: %s reporter=%s reported=%s", report.ID, reporterID, req.ReportedUserID)
	return report, nil
}

func (s *reportService) List(ctx context.Context, actorID, serverID string, status models.ReportStatus) ([]models.Report, error) {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermViewReports); err != nil {
		return nil, err
	}
	return s.reportRepo.ListReports(ctx, status)
}

func (s *reportService) SetStatus(ctx context.Context, actorID, serverID, reportID string, status models.ReportStatus) error {
	if err := s.perms.RequireServer(ctx, actorID, serverID, models.PermViewReports); err != nil {
		return err
	}
	switch status {
	case models.ReportStatusOpen, models.ReportStatusReviewed, models.ReportStatusDismissed:
	default:
		return fmt.Errorf("%w: invalid report status", pkg.ErrBadRequest)
	}
	return s.reportRepo.SetReportStatus(ctx, reportID, status)
}
