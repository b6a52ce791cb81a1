package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/ratelimit"
	"github.com/nexushq/nexus/ws"
)

// ────────────────────────────────────────────
// Inbound payload struct'ları
//
// Modeli olan op'lar (message:send, role:create...) doğrudan models
// DTO'suna decode edilir; geri kalanı buradaki küçük struct'lara.
// ────────────────────────────────────────────

type serverRefData struct {
	ServerID string `json:"serverId"`
}

type serverUpdateData struct {
	ServerID string  `json:"serverId"`
	Name     *string `json:"name"`
	Icon     *string `json:"icon"`
}

type memberActionData struct {
	ServerID string `json:"serverId"`
	UserID   string `json:"userId"`
	Reason   string `json:"reason,omitempty"`
	Minutes  int    `json:"minutes,omitempty"`
}

type roleRefData struct {
	RoleID string `json:"roleId"`
}

type roleAssignData struct {
	ServerID string `json:"serverId"`
	RoleID   string `json:"roleId"`
	UserID   string `json:"userId"`
}

type channelCreateData struct {
	ServerID string `json:"serverId"`
	models.CreateChannelRequest
}

type channelUpdateData struct {
	ChannelID string `json:"channelId"`
	models.UpdateChannelRequest
}

type channelMoveData struct {
	ChannelID  string  `json:"channelId"`
	CategoryID *string `json:"categoryId"`
}

type reorderData struct {
	ServerID string `json:"serverId"`
	models.ReorderRequest
}

type categoryCreateData struct {
	ServerID string `json:"serverId"`
	models.CreateCategoryRequest
}

type categoryUpdateData struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

type categoryRefData struct {
	CategoryID string `json:"categoryId"`
}

type overrideRemoveData struct {
	ChannelID string  `json:"channelId"`
	RoleID    *string `json:"roleId"`
	UserID    *string `json:"userId"`
}

type inviteCodeData struct {
	Code string `json:"code"`
}

type friendRequestData struct {
	Username string `json:"username"`
}

type friendshipRefData struct {
	FriendshipID string `json:"friendshipId"`
}

type userRefData struct {
	UserID string `json:"userId"`
}

type dmGroupData struct {
	UserIDs []string `json:"userIds"`
	Name    string   `json:"name,omitempty"`
}

type dmParticipantData struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

type dmReadData struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId,omitempty"`
}

type dmArchiveData struct {
	ChannelID string `json:"channelId"`
	Archived  bool   `json:"archived"`
}

type reportListData struct {
	ServerID string `json:"serverId"`
	Status   string `json:"status,omitempty"`
}

type reportStatusData struct {
	ServerID string `json:"serverId"`
	ReportID string `json:"reportId"`
	Status   string `json:"status"`
}

type webhookRefData struct {
	WebhookID string `json:"webhookId"`
}

// channelHistoryResult, channel:join ve channel:history yanıtı.
type channelHistoryResult struct {
	ChannelID string `json:"channelId"`
	models.MessagePage
}

// decodeInto, payload decode hatasını validation hatasına çevirir —
// bozuk payload internal değil client hatasıdır.
func decodeInto(data json.RawMessage, dst any) error {
	if err := ws.DecodeData(data, dst); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	return nil
}

// registerOps, inbound op → handler tablosunu doldurur.
//
// Handler'lar thin'dir: decode → service → (gerekiyorsa) istemciye yanıt.
// Fan-out service katmanında yapılır; buradan yalnızca istek sahibine
// dönen yanıtlar (history, peek, ice-config...) emit edilir.
func registerOps(d *ws.Dispatcher, hub *ws.Hub, svcs *serviceContainer) {
	reply := func(c *ws.Client, op string, data any) {
		hub.Registry.EmitToClient(c, ws.Event{Op: op, Data: data})
	}

	// ── Presence ──

	d.Register(ws.OpPresenceUpdate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.PresenceData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		if !models.UserStatus(p.Status).Valid() {
			return fmt.Errorf("%w: invalid status", pkg.ErrBadRequest)
		}
		hub.SetStatus(c.UserID(), p.Status)
		return nil
	})

	// ── Kanal aboneliği + geçmiş ──

	d.Register(ws.OpChannelJoin, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		// History, viewChannel yetkisini de denetler — yetkisiz kullanıcı
		// room'a hiç girmez.
		page, err := svcs.messages.History(ctx, c.UserID(), p.ChannelID, "", 0)
		if err != nil {
			return err
		}
		hub.Registry.Join(c, ws.KeyChannel(p.ChannelID))
		reply(c, ws.OpChannelHistory, channelHistoryResult{ChannelID: p.ChannelID, MessagePage: *page})
		return nil
	})

	d.Register(ws.OpChannelLeave, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		hub.Registry.Leave(c, ws.KeyChannel(p.ChannelID))
		return nil
	})

	d.Register(ws.OpChannelHistory, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.HistoryData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		page, err := svcs.messages.History(ctx, c.UserID(), p.ChannelID, p.BeforeID, p.Limit)
		if err != nil {
			return err
		}
		reply(c, ws.OpChannelHistory, channelHistoryResult{ChannelID: p.ChannelID, MessagePage: *page})
		return nil
	})

	// ── Mesajlar ──

	d.Register(ws.OpMessageSend, ratelimit.BucketMessageSend, func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.SendMessageRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		if _, err := svcs.messages.Send(ctx, c.UserID(), &req); err != nil {
			return err
		}
		// Mesaj gitti, typing göstergesi kalkar.
		_ = svcs.typing.Stop(ctx, c.SocketID(), c.UserID(), req.ChannelID)
		return nil
	})

	d.Register(ws.OpMessageEdit, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.EditMessageRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := svcs.messages.Edit(ctx, c.UserID(), &req)
		return err
	})

	d.Register(ws.OpMessageDelete, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p struct {
			MessageID string `json:"messageId"`
		}
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.messages.Delete(ctx, c.UserID(), p.MessageID)
	})

	d.Register(ws.OpMessageReact, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.ReactRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		return svcs.messages.React(ctx, c.UserID(), &req)
	})

	d.Register(ws.OpTypingStart, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.typing.Start(ctx, c.SocketID(), c.UserID(), hub.Username(c.UserID()), p.ChannelID)
	})

	// ── Sunucu yaşam döngüsü ──

	d.Register(ws.OpServerCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.CreateServerRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := svcs.servers.Create(ctx, c.UserID(), &req)
		return err
	})

	d.Register(ws.OpServerUpdate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p serverUpdateData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.servers.Update(ctx, c.UserID(), p.ServerID, &models.UpdateServerRequest{Name: p.Name, Icon: p.Icon})
	})

	d.Register(ws.OpServerDel, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p serverRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.servers.Delete(ctx, c.UserID(), p.ServerID)
	})

	d.Register(ws.OpServerLeave, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p serverRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.servers.Leave(ctx, c.UserID(), p.ServerID)
	})

	// ── Moderasyon ──

	d.Register(ws.OpServerKick, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p memberActionData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.members.Kick(ctx, c.UserID(), p.ServerID, p.UserID)
	})

	d.Register(ws.OpServerBan, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p memberActionData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.members.Ban(ctx, c.UserID(), p.ServerID, p.UserID, p.Reason)
	})

	d.Register(ws.OpServerUnban, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p memberActionData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.members.Unban(ctx, c.UserID(), p.ServerID, p.UserID)
	})

	d.Register(ws.OpServerTimeout, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p memberActionData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.members.Timeout(ctx, c.UserID(), p.ServerID, p.UserID, p.Minutes)
	})

	// ── Roller ──

	d.Register(ws.OpRoleCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.CreateRoleRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := svcs.roles.Create(ctx, c.UserID(), &req)
		return err
	})

	d.Register(ws.OpRoleUpdate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.UpdateRoleRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := svcs.roles.Update(ctx, c.UserID(), &req)
		return err
	})

	d.Register(ws.OpRoleDel, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p roleRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.roles.Delete(ctx, c.UserID(), p.RoleID)
	})

	d.Register(ws.OpRoleAssign, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p roleAssignData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.roles.Assign(ctx, c.UserID(), p.ServerID, p.RoleID, p.UserID)
	})

	d.Register(ws.OpRoleUnassign, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p roleAssignData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.roles.Unassign(ctx, c.UserID(), p.ServerID, p.RoleID, p.UserID)
	})

	// ── Kanallar + kategoriler ──

	d.Register(ws.OpChannelCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p channelCreateData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.channels.Create(ctx, c.UserID(), p.ServerID, &p.CreateChannelRequest)
		return err
	})

	d.Register(ws.OpChannelUpdate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p channelUpdateData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.channels.Update(ctx, c.UserID(), p.ChannelID, &p.UpdateChannelRequest)
		return err
	})

	d.Register(ws.OpChannelDel, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.Delete(ctx, c.UserID(), p.ChannelID)
	})

	d.Register(ws.OpChannelMove, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p channelMoveData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.Move(ctx, c.UserID(), p.ChannelID, p.CategoryID)
	})

	d.Register(ws.OpChannelReorder, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p reorderData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.Reorder(ctx, c.UserID(), p.ServerID, &p.ReorderRequest)
	})

	d.Register(ws.OpCategoryCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p categoryCreateData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.channels.CreateCategory(ctx, c.UserID(), p.ServerID, &p.CreateCategoryRequest)
		return err
	})

	d.Register(ws.OpCategoryUpdate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p categoryUpdateData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.UpdateCategory(ctx, c.UserID(), p.CategoryID, p.Name)
	})

	d.Register(ws.OpCategoryDel, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p categoryRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.DeleteCategory(ctx, c.UserID(), p.CategoryID)
	})

	d.Register(ws.OpCategoryReorder, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p reorderData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.ReorderCategories(ctx, c.UserID(), p.ServerID, &p.ReorderRequest)
	})

	d.Register(ws.OpOverrideSet, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var override models.ChannelOverride
		if err := decodeInto(data, &override); err != nil {
			return err
		}
		return svcs.channels.SetOverride(ctx, c.UserID(), &override)
	})

	d.Register(ws.OpOverrideRemove, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p overrideRemoveData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.channels.RemoveOverride(ctx, c.UserID(), p.ChannelID, p.RoleID, p.UserID)
	})

	// ── Davetler ──

	d.Register(ws.OpInviteCreate, ratelimit.BucketInviteCreate, func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.CreateInviteRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := svcs.invites.Create(ctx, c.UserID(), &req)
		return err
	})

	d.Register(ws.OpInvitePeek, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p inviteCodeData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		peek, err := svcs.invites.Peek(ctx, p.Code)
		if err != nil {
			return err
		}
		reply(c, ws.OpInvitePeek, peek)
		return nil
	})

	d.Register(ws.OpInviteUse, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p inviteCodeData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		// Service, kullanıcının tüm açık socket'lerini sunucu room'una
		// abone eder ve invite:joined ile snapshot'ı gönderir.
		_, err := svcs.invites.Use(ctx, c.UserID(), p.Code)
		return err
	})

	d.Register(ws.OpInviteRevoke, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p inviteCodeData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.invites.Revoke(ctx, c.UserID(), p.Code)
	})

	// ── Arkadaşlık + block ──

	d.Register(ws.OpFriendRequest, ratelimit.BucketFriendRequest, func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p friendRequestData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.friends.Request(ctx, c.UserID(), p.Username)
		return err
	})

	d.Register(ws.OpFriendAccept, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p friendshipRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.friends.Accept(ctx, c.UserID(), p.FriendshipID)
	})

	d.Register(ws.OpFriendReject, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p friendshipRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.friends.Reject(ctx, c.UserID(), p.FriendshipID)
	})

	d.Register(ws.OpFriendRemove, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p userRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.friends.Remove(ctx, c.UserID(), p.UserID)
	})

	d.Register(ws.OpUserBlock, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p userRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.friends.Block(ctx, c.UserID(), p.UserID)
	})

	d.Register(ws.OpUserUnblock, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p userRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.friends.Unblock(ctx, c.UserID(), p.UserID)
	})

	// ── DM ──

	d.Register(ws.OpDMCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p userRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.dms.CreateDirect(ctx, c.UserID(), p.UserID)
		return err
	})

	d.Register(ws.OpDMCreateGroup, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p dmGroupData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		_, err := svcs.dms.CreateGroup(ctx, c.UserID(), p.UserIDs, p.Name)
		return err
	})

	d.Register(ws.OpDMAddParticipant, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p dmParticipantData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.AddParticipant(ctx, c.UserID(), p.ChannelID, p.UserID)
	})

	d.Register(ws.OpDMRemoveParticipant, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p dmParticipantData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.RemoveParticipant(ctx, c.UserID(), p.ChannelID, p.UserID)
	})

	d.Register(ws.OpDMRequestAccept, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.AcceptRequest(ctx, c.UserID(), p.ChannelID)
	})

	d.Register(ws.OpDMRequestReject, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.RejectRequest(ctx, c.UserID(), p.ChannelID)
	})

	d.Register(ws.OpDMRead, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p dmReadData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.MarkRead(ctx, c.UserID(), p.ChannelID, p.MessageID)
	})

	d.Register(ws.OpDMArchive, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p dmArchiveData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.SetArchived(ctx, c.UserID(), p.ChannelID, p.Archived)
	})

	d.Register(ws.OpDMDelete, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.dms.Hide(ctx, c.UserID(), p.ChannelID)
	})

	// ── Voice + WebRTC ──

	d.Register(ws.OpVoiceJoin, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		state, err := svcs.voice.Join(ctx, c.SocketID(), c.UserID(), p.ChannelID)
		if err != nil {
			return err
		}
		hub.Registry.Join(c, ws.KeyVoice(p.ChannelID))
		reply(c, ws.OpVoiceJoined, state)
		return nil
	})

	d.Register(ws.OpVoiceLeave, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		if p.ChannelID != "" {
			hub.Registry.Leave(c, ws.KeyVoice(p.ChannelID))
		}
		return svcs.voice.Leave(ctx, c.SocketID())
	})

	d.Register(ws.OpVoiceMute, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.VoiceMuteData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.voice.SetMuted(ctx, c.SocketID(), p.IsMuted)
	})

	d.Register(ws.OpVoiceDeafen, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.VoiceDeafenData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.voice.SetDeafened(ctx, c.SocketID(), p.IsDeafened)
	})

	d.Register(ws.OpVoiceICEConfig, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		reply(c, ws.OpVoiceICEConfig, map[string]any{"iceServers": svcs.voice.ICEConfig()})
		return nil
	})

	relay := func(op string, pick func(*ws.SignalData) json.RawMessage) ws.HandlerFunc {
		return func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
			var p ws.SignalData
			if err := decodeInto(data, &p); err != nil {
				return err
			}
			svcs.voice.Relay(ctx, c.SocketID(), p.TargetID, op, pick(&p))
			return nil
		}
	}
	d.Register(ws.OpWebRTCOffer, "", relay(ws.OpWebRTCOffer, func(p *ws.SignalData) json.RawMessage { return p.Offer }))
	d.Register(ws.OpWebRTCAnswer, "", relay(ws.OpWebRTCAnswer, func(p *ws.SignalData) json.RawMessage { return p.Answer }))
	d.Register(ws.OpWebRTCICE, "", relay(ws.OpWebRTCICE, func(p *ws.SignalData) json.RawMessage { return p.Candidate }))

	// ── Screen share ──

	d.Register(ws.OpScreenStart, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		return svcs.voice.StartScreenShare(ctx, c.SocketID())
	})

	d.Register(ws.OpScreenStop, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		return svcs.voice.StopScreenShare(ctx, c.SocketID())
	})

	d.Register(ws.OpScreenWatch, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		return svcs.voice.Watch(ctx, c.SocketID())
	})

	d.Register(ws.OpScreenUnwatch, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		return svcs.voice.Unwatch(ctx, c.SocketID())
	})

	// ── DM sesli arama ──

	d.Register(ws.OpDMCallStart, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.voice.StartCall(ctx, c.SocketID(), c.UserID(), p.ChannelID)
	})

	d.Register(ws.OpDMCallDecline, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.voice.DeclineCall(ctx, c.UserID(), p.ChannelID)
	})

	d.Register(ws.OpDMCallEnd, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.voice.EndCall(ctx, c.UserID(), p.ChannelID)
	})

	// ── Raporlar ──

	d.Register(ws.OpReportCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.CreateReportRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		report, err := svcs.reports.Create(ctx, c.UserID(), &req)
		if err != nil {
			return err
		}
		reply(c, ws.OpReportCreated, report)
		return nil
	})

	d.Register(ws.OpReportList, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p reportListData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		reports, err := svcs.reports.List(ctx, c.UserID(), p.ServerID, models.ReportStatus(p.Status))
		if err != nil {
			return err
		}
		reply(c, ws.OpReportList, reports)
		return nil
	})

	d.Register(ws.OpReportSetStatus, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p reportStatusData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		return svcs.reports.SetStatus(ctx, c.UserID(), p.ServerID, p.ReportID, models.ReportStatus(p.Status))
	})

	// ── Webhook yönetimi ──
	//
	// İngest HTTP'dedir (dış sistemler socket açmaz); yönetim burada.

	d.Register(ws.OpWebhookCreate, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var req models.CreateWebhookRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		webhook, err := svcs.webhooks.Create(ctx, c.UserID(), &req)
		if err != nil {
			return err
		}
		// Token yalnızca bu yanıtta görünür.
		reply(c, ws.OpWebhookCreated, webhook)
		return nil
	})

	d.Register(ws.OpWebhookList, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p ws.ChannelRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		webhooks, err := svcs.webhooks.ListByChannel(ctx, c.UserID(), p.ChannelID)
		if err != nil {
			return err
		}
		reply(c, ws.OpWebhookList, webhooks)
		return nil
	})

	d.Register(ws.OpWebhookDelete, "", func(ctx context.Context, c *ws.Client, data json.RawMessage) error {
		var p webhookRefData
		if err := decodeInto(data, &p); err != nil {
			return err
		}
		if err := svcs.webhooks.Delete(ctx, c.UserID(), p.WebhookID); err != nil {
			return err
		}
		reply(c, ws.OpWebhookDeleted, map[string]string{"id": p.WebhookID})
		return nil
	})
}
