package repository

import (
	"context"

	"github.com/nexushq/nexus/models"
)

// DMRepository, DM katılımcılarını ve kullanıcı başına DM kanal durumunu
// yönetir. Kanalın kendisi channels tablosundadır (server_id NULL).
type DMRepository interface {
	AddParticipant(ctx context.Context, channelID, userID string) error
	RemoveParticipant(ctx context.Context, channelID, userID string) error
	IsParticipant(ctx context.Context, channelID, userID string) (bool, error)
	ParticipantIDs(ctx context.Context, channelID string) ([]string, error)
	Participants(ctx context.Context, channelID string) ([]models.PublicUser, error)
	// FindDirect, iki kullanıcı arasındaki mevcut 1:1 DM kanalını döner.
	// Yoksa ErrNotFound — caller yeni kanal açar (tekillik garantisi).
	FindDirect(ctx context.Context, userA, userB string) (string, error)
	// ListForUser, kullanıcının gizlemediği DM kanallarını durum
	// bayraklarıyla döner (katılımcılar caller tarafından doldurulur).
	ListForUser(ctx context.Context, userID string) ([]models.DMChannel, error)

	GetState(ctx context.Context, channelID, userID string) (*models.DMUserState, error)
	SetHidden(ctx context.Context, channelID, userID string, hidden bool) error
	SetArchived(ctx context.Context, channelID, userID string, archived bool) error
	SetRequestPending(ctx context.Context, channelID, userID string, pending bool) error
}
