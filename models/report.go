package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ReportType, şikayet türü.
type ReportType string

const (
	ReportTypeSpam          ReportType = "spam"
	ReportTypeHarassment    ReportType = "harassment"
	ReportTypeInappropriate ReportType = "inappropriate"
	ReportTypeOther         ReportType = "other"
)

// ReportStatus, şikayetin inceleme durumu.
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusReviewed  ReportStatus = "reviewed"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// Report, bir kullanıcı şikayetini temsil eder.
//
// Mesaj şikayetlerinde içerik snapshot olarak kopyalanır — mesaj sonradan
// silinse bile şikayet incelenebilir kalır.
type Report struct {
	ID               string       `json:"id"`
	ReporterID       string       `json:"reporter_id"`
	ReportedUserID   string       `json:"reported_user_id"`
	MessageID        *string      `json:"message_id"`
	MessageContent   *string      `json:"message_content"`
	MessageChannelID *string      `json:"message_channel_id"`
	Type             ReportType   `json:"type"`
	Description      string       `json:"description"`
	Status           ReportStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// CreateReportRequest, report:create payload'ı.
type CreateReportRequest struct {
	ReportedUserID string `json:"reportedUserId"`
	MessageID      string `json:"messageId,omitempty"`
	Type           string `json:"type"`
	Description    string `json:"description"`
}

// Validate, CreateReportRequest'in geçerli olup olmadığını kontrol eder.
func (r *CreateReportRequest) Validate() error {
	if r.ReportedUserID == "" {
		return fmt.Errorf("reportedUserId is required")
	}
	switch ReportType(r.Type) {
	case ReportTypeSpam, ReportTypeHarassment, ReportTypeInappropriate, ReportTypeOther:
	default:
		return fmt.Errorf("invalid report type")
	}
	r.Description = strings.TrimSpace(r.Description)
	if utf8.RuneCountInString(r.Description) > 1024 {
		return fmt.Errorf("description must be at most 1024 characters")
	}
	return nil
}
