// Package services, business logic katmanını barındırır.
//
// Service Layer Pattern nedir?
// Handler (WS dispatcher / HTTP) ile Repository (DB) arasında oturan katmandır.
// Tüm iş kuralları burada yaşar: yetki çözümleme, fan-out kararları,
// ID üretimi, hiyerarşi kontrolleri.
//
// Service ASLA http.Request/Response bilmez — sadece domain modelleri alır/verir.
// Service ASLA doğrudan SQL çalıştırmaz — Repository interface'i kullanır.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/cache"
	"github.com/nexushq/nexus/repository"
)

// PermissionService, effective permission çözümleme motorudur.
//
// Çözümleme sırası (server kanalı):
//  1. Owner → her şey serbest (rol gerektirmez)
//  2. Üye değil → hiçbir şey
//  3. Base = @everyone ∪ atanmış roller; administrator → her şey
//  4. Kanal override'ları: role allow/deny union'ı, sonra user allow/deny
//     effective = ((base &^ roleDeny) | roleAllow &^ userDeny) | userAllow
//  5. viewChannel yoksa → kanal tamamen görünmez (tüm bitler düşer)
//  6. Timeout → send/speak/connect/react düşer (owner ve admin hariç)
//
// DM kanalında roller yoktur: katılımcı olmak view/send/react verir.
type PermissionService interface {
	EffectiveChannel(ctx context.Context, userID, channelID string) (models.Permission, error)
	EffectiveServer(ctx context.Context, userID, serverID string) (models.Permission, error)
	// RequireChannel / RequireServer, yetki yoksa ErrForbidden döner.
	RequireChannel(ctx context.Context, userID, channelID string, perm models.Permission) error
	RequireServer(ctx context.Context, userID, serverID string, perm models.Permission) error
	// RequireHierarchy, actor'ün target üzerinde moderasyon yapıp
	// yapamayacağını kontrol eder: owner dokunulmazdır, actor'ün en yüksek
	// rol pozisyonu target'ınkinden yüksek olmalıdır.
	RequireHierarchy(ctx context.Context, serverID, actorID, targetID string) error
	// Invalidate, rol/override değişimlerinden sonra cache'i düşürür.
	InvalidateServer(serverID string)
	InvalidateUser(userID string)
}

type permissionService struct {
	serverRepo   repository.ServerRepository
	memberRepo   repository.MemberRepository
	roleRepo     repository.RoleRepository
	channelRepo  repository.ChannelRepository
	overrideRepo repository.OverrideRepository
	dmRepo       repository.DMRepository

	// cache: "userID|channelID" → effective permission.
	// Kısa TTL + açık invalidation: her inbound event'te 4-5 query yerine
	// cache hit. Rol/override değişiminde ilgili anahtarlar düşürülür.
	cache *cache.TTLCache[string, models.Permission]
	// serverOf: channelID → serverID eşlemesi, invalidation için.
	channelServer *cache.TTLCache[string, string]
}

// NewPermissionService, constructor.
func NewPermissionService(
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	roleRepo repository.RoleRepository,
	channelRepo repository.ChannelRepository,
	overrideRepo repository.OverrideRepository,
	dmRepo repository.DMRepository,
) PermissionService {
	return &permissionService{
		serverRepo:    serverRepo,
		memberRepo:    memberRepo,
		roleRepo:      roleRepo,
		channelRepo:   channelRepo,
		overrideRepo:  overrideRepo,
		dmRepo:        dmRepo,
		cache:         cache.New[string, models.Permission](30*time.Second, time.Minute),
		channelServer: cache.New[string, string](10*time.Minute, time.Minute),
	}
}

func permCacheKey(userID, channelID string) string {
	return userID + "|" + channelID
}

func (s *permissionService) EffectiveChannel(ctx context.Context, userID, channelID string) (models.Permission, error) {
	key := permCacheKey(userID, channelID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return 0, err
	}

	var effective models.Permission
	if channel.ServerID == nil {
		effective, err = s.resolveDM(ctx, userID, channel)
	} else {
		s.channelServer.Set(channelID, *channel.ServerID)
		effective, err = s.resolveServerChannel(ctx, userID, channel)
	}
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, effective)
	return effective, nil
}

// resolveDM: katılımcı olmak sabit bir yetki kümesi verir, roller yoktur.
func (s *permissionService) resolveDM(ctx context.Context, userID string, channel *models.Channel) (models.Permission, error) {
	ok, err := s.dmRepo.IsParticipant(ctx, channel.ID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return models.PermViewChannel | models.PermSendMessages | models.PermAddReaction |
		models.PermConnectVoice | models.PermSpeak | models.PermScreenShare, nil
}

func (s *permissionService) resolveServerChannel(ctx context.Context, userID string, channel *models.Channel) (models.Permission, error) {
	serverID := *channel.ServerID

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return 0, err
	}

	membership, err := s.memberRepo.Get(ctx, userID, serverID)
	if errors.Is(err, pkg.ErrNotFound) {
		return 0, nil // üye değil
	}
	if err != nil {
		return 0, err
	}

	// Owner: rol ve override'lardan bağımsız tam yetki.
	if server.OwnerID == userID {
		return models.PermAll, nil
	}

	base, roleIDs, err := s.baseRoles(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}

	// Administrator override'lara takılmaz.
	if base.Has(models.PermAdministrator) {
		return models.PermAll, nil
	}

	effective, err := s.applyOverrides(ctx, channel.ID, userID, roleIDs, base)
	if err != nil {
		return 0, err
	}

	// viewChannel maskesi: kanalı göremeyen hiçbir şey yapamaz.
	if !effective.Has(models.PermViewChannel) {
		return 0, nil
	}

	if membership.TimedOut() {
		effective &^= models.TimeoutStripped
	}
	return effective, nil
}

// baseRoles, @everyone + atanmış rollerin union'ını ve rol ID'lerini döner.
func (s *permissionService) baseRoles(ctx context.Context, userID, serverID string) (models.Permission, []string, error) {
	everyone, err := s.roleRepo.GetEveryone(ctx, serverID)
	if err != nil {
		return 0, nil, err
	}

	assigned, err := s.roleRepo.RolesOf(ctx, userID, serverID)
	if err != nil {
		return 0, nil, err
	}

	base := everyone.Permissions
	roleIDs := []string{everyone.ID}
	for _, role := range assigned {
		base |= role.Permissions
		roleIDs = append(roleIDs, role.ID)
	}
	return base, roleIDs, nil
}

func (s *permissionService) applyOverrides(ctx context.Context, channelID, userID string, roleIDs []string, base models.Permission) (models.Permission, error) {
	overrides, err := s.overrideRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if len(overrides) == 0 {
		return base, nil
	}

	roleSet := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		roleSet[id] = true
	}

	var roleAllow, roleDeny, userAllow, userDeny models.Permission
	for _, o := range overrides {
		switch {
		case o.RoleID != nil && roleSet[*o.RoleID]:
			roleAllow |= o.Allow
			roleDeny |= o.Deny
		case o.UserID != nil && *o.UserID == userID:
			userAllow |= o.Allow
			userDeny |= o.Deny
		}
	}

	effective := (base &^ roleDeny) | roleAllow
	effective = (effective &^ userDeny) | userAllow
	return effective, nil
}

// EffectiveServer, kanal bağlamı olmayan işlemler (kick, rol yönetimi,
// davet) için sunucu geneli yetkiyi çözer — override'lar uygulanmaz.
func (s *permissionService) EffectiveServer(ctx context.Context, userID, serverID string) (models.Permission, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return 0, err
	}
	if server.OwnerID == userID {
		return models.PermAll, nil
	}

	membership, err := s.memberRepo.Get(ctx, userID, serverID)
	if errors.Is(err, pkg.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	base, _, err := s.baseRoles(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}
	if base.Has(models.PermAdministrator) {
		return models.PermAll, nil
	}
	if membership.TimedOut() {
		base &^= models.TimeoutStripped
	}
	return base, nil
}

func (s *permissionService) RequireChannel(ctx context.Context, userID, channelID string, perm models.Permission) error {
	effective, err := s.EffectiveChannel(ctx, userID, channelID)
	if err != nil {
		return err
	}
	if !effective.Has(perm) {
		return fmt.Errorf("%w: missing permission", pkg.ErrForbidden)
	}
	return nil
}

func (s *permissionService) RequireServer(ctx context.Context, userID, serverID string, perm models.Permission) error {
	effective, err := s.EffectiveServer(ctx, userID, serverID)
	if err != nil {
		return err
	}
	if !effective.Has(perm) {
		return fmt.Errorf("%w: missing permission", pkg.ErrForbidden)
	}
	return nil
}

// RequireHierarchy: owner'a kimse dokunamaz; owner herkese dokunur;
// diğerlerinde actor'ün en yüksek rol pozisyonu target'ınkinden
// yüksek olmalıdır.
func (s *permissionService) RequireHierarchy(ctx context.Context, serverID, actorID, targetID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if targetID == server.OwnerID {
		return fmt.Errorf("%w: cannot act on the server owner", pkg.ErrForbidden)
	}
	if actorID == server.OwnerID {
		return nil
	}

	actorTop, err := s.topPosition(ctx, actorID, serverID)
	if err != nil {
		return err
	}
	targetTop, err := s.topPosition(ctx, targetID, serverID)
	if err != nil {
		return err
	}
	if actorTop <= targetTop {
		return fmt.Errorf("%w: target has equal or higher role", pkg.ErrForbidden)
	}
	return nil
}

func (s *permissionService) topPosition(ctx context.Context, userID, serverID string) (int, error) {
	roles, err := s.roleRepo.RolesOf(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}
	top := 0 // @everyone pozisyonu
	for _, role := range roles {
		if role.Position > top {
			top = role.Position
		}
	}
	return top, nil
}

// InvalidateServer, sunucuya ait kanallar için cache'lenmiş tüm
// sonuçları düşürür. Rol/override/üyelik değişimlerinden sonra çağrılır.
func (s *permissionService) InvalidateServer(serverID string) {
	s.cache.DeleteFunc(func(key string) bool {
		i := strings.IndexByte(key, '|')
		if i < 0 {
			return false
		}
		sid, ok := s.channelServer.Get(key[i+1:])
		return ok && sid == serverID
	})
}

// InvalidateUser, kullanıcının tüm cache'lenmiş sonuçlarını düşürür.
func (s *permissionService) InvalidateUser(userID string) {
	prefix := userID + "|"
	s.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}
