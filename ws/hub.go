package ws

import (
	"log"
	"sync"
	"time"

	"github.com/nexushq/nexus/pkg/metrics"
)

// Presence sabitleri.
const (
	// idleAfter: bu süre boyunca hiç inbound event göndermeyen kullanıcı
	// idle sayılır (kendisi dnd/offline seçmediyse).
	idleAfter = 10 * time.Minute

	// presenceSweepInterval: idle taramasının periyodu.
	presenceSweepInterval = 30 * time.Second
)

// EventPublisher, service katmanının event broadcast etmek için kullandığı
// interface.
//
// Dependency Inversion: service'ler Hub'ın concrete struct'ına değil bu
// interface'e bağımlıdır. Test'te mock publisher geçilir; Hub değişse bile
// service kodu etkilenmez.
type EventPublisher interface {
	EmitTo(key string, event Event)
	EmitToExcept(key, excludeSocketID string, event Event)
	EmitToUser(userID string, event Event)
	EmitToSocket(socketID string, event Event) bool
	MembersOf(key string) []string
	OnlineUserIDs() []string
	// SubscribeUser/UnsubscribeUser, kullanıcının tüm açık socket'lerini
	// bir room'a abone eder / abonelikten çıkarır. Sunucuya katılma/atılma
	// anında session'ı yeniden bağlamadan room üyeliği güncellenir.
	SubscribeUser(userID string, keys ...string)
	UnsubscribeUser(userID string, keys ...string)
}

// Hub, tüm WebSocket bağlantılarının yaşam döngüsünü yönetir.
//
// Register/unregister channel'ları üzerinden çalışan tek bir Run goroutine'i
// client map'lerini günceller; fan-out Registry üzerinden yapılır.
// Presence aggregate de buradadır: bir kullanıcı, en az bir socket'i açıkken
// ve kendini offline ilan etmemişken online'dır.
type Hub struct {
	Registry *Registry

	mu       sync.RWMutex
	bySocket map[string]*Client
	byUser   map[string]map[*Client]struct{}

	// usernames: userID → username cache (typing broadcast için).
	usernames map[string]string

	// declared: kullanıcının kendi seçtiği status (online/idle/dnd/offline).
	// lastActivity: son inbound event zamanı — idle tespiti için.
	declared     map[string]string
	lastActivity map[string]time.Time

	register   chan *Client
	unregister chan *Client

	// Callback'ler — main.go'da set edilir (dependency inversion):
	// onClose: socket kapandı; voice/typing temizliği service'lere düşer.
	// onPresence: kullanıcının effective status'u değişti; broadcast
	// sorumluluğu (hangi sunuculara) main'deki callback'e aittir.
	onClose    func(socketID, userID string)
	onPresence func(userID, status string)

	stopSweep chan struct{}
}

// NewHub, yeni bir Hub oluşturur ve Registry'yi bağlar.
func NewHub() *Hub {
	h := &Hub{
		Registry:     NewRegistry(),
		bySocket:     make(map[string]*Client),
		byUser:       make(map[string]map[*Client]struct{}),
		usernames:    make(map[string]string),
		declared:     make(map[string]string),
		lastActivity: make(map[string]time.Time),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		stopSweep:    make(chan struct{}),
	}
	h.Registry.dropSlow = func(c *Client) { h.unregister <- c }
	return h
}

// SetCallbacks, lifecycle callback'lerini bağlar. main.go wire-up'ında
// bir kez, Run başlamadan önce çağrılır.
func (h *Hub) SetCallbacks(onClose func(socketID, userID string), onPresence func(userID, status string)) {
	h.onClose = onClose
	h.onPresence = onPresence
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
// Presence idle sweeper'ı da burada başlar.
func (h *Hub) Run() {
	go h.sweepIdle()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, upgrade edilmiş ama henüz authenticate olmamış client'ı kaydeder.
// Kullanıcı indexleri Bind'de güncellenir — join frame'i gelene kadar
// socket anonim kalır.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bySocket[c.socketID] = c
	metrics.ActiveConnections.Inc()
}

// Bind, join frame'i doğrulandıktan sonra socket'i principal'a bağlar.
// Socket otomatik olarak user:<id> ve personal:<id> room'larına girer;
// server room'larına katılım init handler'ında yapılır.
//
// firstSocket true dönerse bu, kullanıcının ilk açık socket'idir —
// caller user:joined broadcast'ini tetikler.
func (h *Hub) Bind(c *Client, userID, username string) (firstSocket bool) {
	h.mu.Lock()
	c.userID = userID
	c.authed = true
	if _, ok := h.byUser[userID]; !ok {
		h.byUser[userID] = make(map[*Client]struct{})
		firstSocket = true
	}
	h.byUser[userID][c] = struct{}{}
	h.usernames[userID] = username
	h.lastActivity[userID] = time.Now()
	if h.declared[userID] == "" || h.declared[userID] == "offline" {
		h.declared[userID] = "online"
	}
	h.mu.Unlock()

	h.Registry.Join(c, KeyUser(userID))
	h.Registry.Join(c, KeyPersonal(userID))

	log.Printf("[ws] socket bound: user=%s socket=%s", userID, c.socketID)
	return firstSocket
}

// removeClient, socket'i tüm yapılardan çıkarır ve send channel'ını kapatır.
//
// Sıra önemli: önce Registry temizliği (artık frame almaz), SONRA send
// channel'ı kapatılır — room üyeliği düşmeden kapatılırsa eşzamanlı bir
// emit kapalı channel'a yazıp panic'lerdi. En son callback (voice/typing
// temizliği) ve presence recompute.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.bySocket[c.socketID]; !ok {
		h.mu.Unlock()
		return // zaten çıkarılmış (slow-drop + read error yarışı)
	}
	delete(h.bySocket, c.socketID)
	metrics.ActiveConnections.Dec()

	userID := c.userID
	lastSocket := false
	if userID != "" {
		if set, ok := h.byUser[userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byUser, userID)
				lastSocket = true
			}
		}
	}
	h.mu.Unlock()

	h.Registry.LeaveAll(c)
	close(c.send)

	if userID != "" && h.onClose != nil {
		h.onClose(c.socketID, userID)
	}

	if lastSocket {
		log.Printf("[ws] user fully disconnected: %s", userID)
		if h.onPresence != nil {
			h.onPresence(userID, "offline")
		}
	}
}

// Disconnect, bir socket'i server tarafından düşürür (auth hatası,
// slow client). Idempotent — unregister yarışlarına dayanıklı.
func (h *Hub) Disconnect(c *Client) {
	h.unregister <- c
}

// ─── EventPublisher implementasyonu ───

// EmitTo, room'a fan-out yapar.
func (h *Hub) EmitTo(key string, event Event) {
	h.Registry.EmitTo(key, event)
}

// EmitToExcept, room'a — bir socket hariç — fan-out yapar.
func (h *Hub) EmitToExcept(key, excludeSocketID string, event Event) {
	h.Registry.EmitToExcept(key, excludeSocketID, event)
}

// EmitToUser, kullanıcının tüm socket'lerine gönderir.
func (h *Hub) EmitToUser(userID string, event Event) {
	h.Registry.EmitTo(KeyUser(userID), event)
}

// EmitToSocket, tek bir socket'e gönderir. Socket yoksa false döner.
func (h *Hub) EmitToSocket(socketID string, event Event) bool {
	h.mu.RLock()
	c, ok := h.bySocket[socketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.Registry.EmitToClient(c, event)
	return true
}

// MembersOf, room'daki socket ID'lerini döner.
func (h *Hub) MembersOf(key string) []string {
	return h.Registry.MembersOf(key)
}

// OnlineUserIDs, en az bir socket'i açık olan kullanıcı ID'lerini döner.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.byUser))
	for userID := range h.byUser {
		ids = append(ids, userID)
	}
	return ids
}

// SubscribeUser, kullanıcının tüm socket'lerini verilen room'lara katar.
// Kullanıcı offline ise no-op'tur — sonraki join'de room'lar zaten kurulur.
func (h *Hub) SubscribeUser(userID string, keys ...string) {
	h.mu.RLock()
	sockets := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		sockets = append(sockets, c)
	}
	h.mu.RUnlock()

	for _, c := range sockets {
		for _, key := range keys {
			h.Registry.Join(c, key)
		}
	}
}

// UnsubscribeUser, kullanıcının tüm socket'lerini verilen room'lardan çıkarır.
func (h *Hub) UnsubscribeUser(userID string, keys ...string) {
	h.mu.RLock()
	sockets := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		sockets = append(sockets, c)
	}
	h.mu.RUnlock()

	for _, c := range sockets {
		for _, key := range keys {
			h.Registry.Leave(c, key)
		}
	}
}

// ─── Presence ───

// Touch, kullanıcının aktivite zamanını yeniler. Dispatcher her inbound
// event'te çağırır. Idle'dan dönüş burada tespit edilir.
func (h *Hub) Touch(userID string) {
	h.mu.Lock()
	wasIdle := h.declared[userID] == "idle"
	h.lastActivity[userID] = time.Now()
	if wasIdle {
		h.declared[userID] = "online"
	}
	h.mu.Unlock()

	if wasIdle && h.onPresence != nil {
		h.onPresence(userID, "online")
	}
}

// SetStatus, kullanıcının kendi ilan ettiği status'u günceller.
// Geçerlilik kontrolü caller'a aittir.
func (h *Hub) SetStatus(userID, status string) {
	h.mu.Lock()
	changed := h.declared[userID] != status
	h.declared[userID] = status
	h.mu.Unlock()

	if changed && h.onPresence != nil {
		h.onPresence(userID, status)
	}
}

// Status, kullanıcının effective status'unu döner:
// socket yoksa offline; kendisi dnd/offline ilan ettiyse o; değilse
// aktiviteye göre online veya idle.
func (h *Hub) Status(userID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, connected := h.byUser[userID]; !connected {
		return "offline"
	}
	if d := h.declared[userID]; d == "dnd" || d == "offline" || d == "idle" {
		return d
	}
	if last, ok := h.lastActivity[userID]; ok && time.Since(last) > idleAfter {
		return "idle"
	}
	return "online"
}

// Username, userID'den username döner (typing broadcast için).
func (h *Hub) Username(userID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.usernames[userID]
}

// sweepIdle, periyodik idle taraması — aktivitesiz kullanıcıları idle'a
// çeker. Tek bir scheduler goroutine'i, kullanıcı başına timer değil.
func (h *Hub) sweepIdle() {
	ticker := time.NewTicker(presenceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.markIdleUsers()
		case <-h.stopSweep:
			return
		}
	}
}

func (h *Hub) markIdleUsers() {
	now := time.Now()
	var newlyIdle []string

	h.mu.Lock()
	for userID := range h.byUser {
		if h.declared[userID] != "online" {
			continue // dnd/offline/idle ilanları dokunulmaz
		}
		if last, ok := h.lastActivity[userID]; ok && now.Sub(last) > idleAfter {
			h.declared[userID] = "idle"
			newlyIdle = append(newlyIdle, userID)
		}
	}
	h.mu.Unlock()

	if h.onPresence != nil {
		for _, userID := range newlyIdle {
			h.onPresence(userID, "idle")
		}
	}
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	close(h.stopSweep)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.bySocket {
		h.Registry.LeaveAll(c)
		close(c.send)
	}
	h.bySocket = make(map[string]*Client)
	h.byUser = make(map[string]map[*Client]struct{})
	log.Println("[ws] hub shut down, all connections closed")
}
