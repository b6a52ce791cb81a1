package services

import (
	"context"
	"sync"
	"time"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/ws"
)

// typingTTL: client yazmaya devam ettikçe typing:start'ı yeniler;
// yenilenmezse sweep bu süre sonunda typing:stop üretir.
const typingTTL = 8 * time.Second

// TypingService, kanal başına "yazıyor" göstergelerini yönetir.
//
// Durum tamamen in-memory'dir ve kaybı önemsizdir — en kötü durumda bir
// gösterge birkaç saniye erken/geç söner. Stop üç yoldan gelir: açık
// typing durdurma (mesaj gönderimi), TTL süresi dolması, disconnect.
type TypingService interface {
	Start(ctx context.Context, socketID, userID, username, channelID string) error
	Stop(ctx context.Context, socketID, userID, channelID string) error
	HandleDisconnect(socketID, userID string)
	// Run, TTL sweeper'ını başlatır; ctx iptalinde durur.
	Run(ctx context.Context)
}

type typingKey struct {
	channelID string
	userID    string
}

type typingEntry struct {
	username  string
	expiresAt time.Time
}

type typingService struct {
	perms PermissionService
	hub   ws.EventPublisher

	mu     sync.Mutex
	active map[typingKey]typingEntry
	// byUser: disconnect'te kullanıcının tüm göstergelerini bulmak için.
	byUser map[string]map[string]bool // userID → channelID set
}

// NewTypingService, constructor.
func NewTypingService(perms PermissionService, hub ws.EventPublisher) TypingService {
	return &typingService{
		perms:  perms,
		hub:    hub,
		active: make(map[typingKey]typingEntry),
		byUser: make(map[string]map[string]bool),
	}
}

func (s *typingService) Start(ctx context.Context, socketID, userID, username, channelID string) error {
	// Yazamayan kullanıcının typing göstergesi de olmaz.
	if err := s.perms.RequireChannel(ctx, userID, channelID, models.PermSendMessages); err != nil {
		return err
	}

	key := typingKey{channelID: channelID, userID: userID}
	s.mu.Lock()
	_, already := s.active[key]
	s.active[key] = typingEntry{username: username, expiresAt: time.Now().Add(typingTTL)}
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]bool)
	}
	s.byUser[userID][channelID] = true
	s.mu.Unlock()

	// Yenileme broadcast üretmez — diğer client'lar göstergeyi zaten açık tutar.
	if already {
		return nil
	}

	s.hub.EmitToExcept(ws.KeyChannel(channelID), socketID, ws.Event{
		Op: ws.OpTypingStart,
		Data: map[string]string{
			"channel_id": channelID,
			"user_id":    userID,
			"username":   username,
		},
	})
	return nil
}

func (s *typingService) Stop(ctx context.Context, socketID, userID, channelID string) error {
	s.clear(userID, channelID, socketID)
	return nil
}

func (s *typingService) HandleDisconnect(socketID, userID string) {
	s.mu.Lock()
	channels := make([]string, 0, len(s.byUser[userID]))
	for channelID := range s.byUser[userID] {
		channels = append(channels, channelID)
	}
	s.mu.Unlock()

	for _, channelID := range channels {
		s.clear(userID, channelID, socketID)
	}
}

func (s *typingService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *typingService) sweep() {
	now := time.Now()

	s.mu.Lock()
	var expired []typingKey
	for key, entry := range s.active {
		if now.After(entry.expiresAt) {
			expired = append(expired, key)
		}
	}
	s.mu.Unlock()

	for _, key := range expired {
		s.clear(key.userID, key.channelID, "")
	}
}

// clear, göstergeyi düşürür ve (varsa) typing:stop yayınlar.
func (s *typingService) clear(userID, channelID, excludeSocketID string) {
	key := typingKey{channelID: channelID, userID: userID}

	s.mu.Lock()
	if _, ok := s.active[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, key)
	if set := s.byUser[userID]; set != nil {
		delete(set, channelID)
		if len(set) == 0 {
			delete(s.byUser, userID)
		}
	}
	s.mu.Unlock()

	event := ws.Event{
		Op:   ws.OpTypingStop,
		Data: map[string]string{"channel_id": channelID, "user_id": userID},
	}
	if excludeSocketID != "" {
		s.hub.EmitToExcept(ws.KeyChannel(channelID), excludeSocketID, event)
	} else {
		s.hub.EmitTo(ws.KeyChannel(channelID), event)
	}
}
