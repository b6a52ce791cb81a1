package main

import (
	"context"
	"log"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/ws"
)

// initData, join sonrası client'a gönderilen ilk event'in payload'ı.
// Client bununla tüm UI'ı kurar; sonrası delta event'lerle yürür.
type initData struct {
	User        models.User              `json:"user"`
	Servers     []models.ServerSnapshot  `json:"servers"`
	Personal    *models.PersonalServer   `json:"personal"`
	Friends     []models.FriendEntry     `json:"friends"`
	Blocked     []string                 `json:"blocked"`
	OnlineUsers []string                 `json:"online_users"`
}

// wireHubCallbacks, hub yaşam döngüsü olaylarını service katmanına bağlar.
//
// Hub service'leri import edemez (ters bağımlılık); temizlik ve presence
// yayını buradaki closure'lar üzerinden akar.
func wireHubCallbacks(hub *ws.Hub, svcs *serviceContainer, repos *repositories) {
	hub.SetCallbacks(
		func(socketID, userID string) {
			svcs.voice.HandleDisconnect(socketID, userID)
			svcs.typing.HandleDisconnect(socketID, userID)
		},
		func(userID, status string) {
			ctx := context.Background()
			if err := svcs.auth.PersistStatus(ctx, userID, models.UserStatus(status)); err != nil {
				log.Printf("[presence] persist failed: user=%s status=%s err=%v", userID, status, err)
			}

			op := ws.OpUserUpdated
			if status == string(models.UserStatusOffline) {
				op = ws.OpUserLeft
			}
			event := ws.Event{Op: op, Data: map[string]string{"user_id": userID, "status": status}}

			servers, err := repos.servers.GetByUser(ctx, userID)
			if err != nil {
				log.Printf("[presence] server list failed: user=%s err=%v", userID, err)
				return
			}
			for _, server := range servers {
				hub.EmitTo(ws.KeyServer(server.ID), event)
			}
			hub.EmitToUser(userID, event)
		},
	)
}

// wireJoinHandler, join frame'ini doğrulayan akışı dispatcher'a bağlar:
// token → principal → socket bind → room abonelikleri → init payload.
func wireJoinHandler(dispatcher *ws.Dispatcher, hub *ws.Hub, svcs *serviceContainer) {
	dispatcher.SetJoinHandler(func(ctx context.Context, c *ws.Client, token string) error {
		claims, err := svcs.auth.ValidateAccessToken(ctx, token)
		if err != nil {
			return err
		}
		user, err := svcs.auth.GetUser(ctx, claims.UserID)
		if err != nil {
			return err
		}

		firstSocket := hub.Bind(c, user.ID, user.Username)

		snapshots, err := svcs.servers.ListForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, snap := range snapshots {
			hub.Registry.Join(c, ws.KeyServer(snap.Server.ID))
		}

		personal, err := svcs.dms.PersonalServer(ctx, user.ID)
		if err != nil {
			return err
		}
		friends, err := svcs.friends.List(ctx, user.ID)
		if err != nil {
			return err
		}
		blocked, err := svcs.friends.ListBlocked(ctx, user.ID)
		if err != nil {
			return err
		}

		user.PasswordHash = ""
		hub.Registry.EmitToClient(c, ws.Event{Op: ws.OpInit, Data: initData{
			User:        *user,
			Servers:     snapshots,
			Personal:    personal,
			Friends:     friends,
			Blocked:     blocked,
			OnlineUsers: hub.OnlineUserIDs(),
		}})

		// İlk socket: diğer üyeler online olduğunu görür. İkinci sekme
		// yeni bir user:joined üretmez.
		if firstSocket {
			joined := ws.Event{Op: ws.OpUserJoined, Data: user.Public()}
			for _, snap := range snapshots {
				hub.EmitToExcept(ws.KeyServer(snap.Server.ID), c.SocketID(), joined)
			}
		}
		return nil
	})
}
