package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/nexushq/nexus/pkg/metrics"
)

// Registry, room key → socket set pub/sub katmanıdır.
//
// Room key'ler opak string'lerdir: "server:<id>", "channel:<id>",
// "user:<id>", "voice:<channelId>", "personal:<userId>" (bkz. Key* helper'ları).
//
// Socket'lere yazan TEK bileşen burasıdır — tüm service'ler fan-out'u
// Registry üzerinden yapar. reverse index (socket → key set) sayesinde
// disconnect temizliği O(k)'dır: socket'in üye olduğu key sayısı kadar.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	reverse map[*Client]map[string]struct{}

	// seq: her outbound event'e verilen artan sayaç.
	// atomic.Int64 — birden fazla goroutine güvenle artırır.
	seq atomic.Int64

	// dropSlow: send buffer'ı dolu client'ı bağlantıdan düşürmek için.
	// Hub tarafından set edilir — Registry, Hub'ı import etmez.
	dropSlow func(*Client)
}

// NewRegistry, boş bir Registry oluşturur.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Client]struct{}),
		reverse: make(map[*Client]map[string]struct{}),
	}
}

// Join, socket'i bir room'a abone eder. Idempotent.
func (r *Registry) Join(c *Client, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[key]; !ok {
		r.rooms[key] = make(map[*Client]struct{})
	}
	r.rooms[key][c] = struct{}{}

	if _, ok := r.reverse[c]; !ok {
		r.reverse[c] = make(map[string]struct{})
	}
	r.reverse[c][key] = struct{}{}
}

// Leave, socket'in bir room aboneliğini bırakır. Boşalan room silinir.
func (r *Registry) Leave(c *Client, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(c, key)
}

// LeaveAll, socket'i tüm room'lardan çıkarır — disconnect temizliği.
// Socket'in üye olduğu key listesini döner (voice cleanup karar verir).
func (r *Registry) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.reverse[c]))
	for key := range r.reverse[c] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.leaveLocked(c, key)
	}
	return keys
}

func (r *Registry) leaveLocked(c *Client, key string) {
	if room, ok := r.rooms[key]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, key)
		}
	}
	if keys, ok := r.reverse[c]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.reverse, c)
		}
	}
}

// Keys, socket'in üye olduğu room key'lerini döner.
func (r *Registry) Keys(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.reverse[c]))
	for key := range r.reverse[c] {
		keys = append(keys, key)
	}
	return keys
}

// MembersOf, room'daki socket ID'lerini döner.
func (r *Registry) MembersOf(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[key]))
	for c := range r.rooms[key] {
		ids = append(ids, c.socketID)
	}
	return ids
}

// EmitTo, room'daki tüm socket'lere event gönderir.
//
// Event bir kez marshal edilir; her client'ın send buffer'ına kopya değil
// aynı byte slice yazılır. Buffer'ı dolu client yavaştır — bağlantısı
// düşürülür ama diğer aboneler etkilenmez (partial failure izolasyonu).
func (r *Registry) EmitTo(key string, event Event) {
	r.emit(key, "", event)
}

// EmitToExcept, room'daki tüm socket'lere — biri hariç — event gönderir.
// Typing gibi sender'a geri yansımaması gereken event'ler için.
func (r *Registry) EmitToExcept(key, excludeSocketID string, event Event) {
	r.emit(key, excludeSocketID, event)
}

func (r *Registry) emit(key, excludeSocketID string, event Event) {
	event.Seq = r.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event %s: %v", event.Op, err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[key] {
		if excludeSocketID != "" && c.socketID == excludeSocketID {
			continue
		}
		select {
		case c.send <- data:
			metrics.FanoutFrames.Inc()
		default:
			// Buffer dolu — bu client yavaş, kapat.
			metrics.DroppedClients.Inc()
			if r.dropSlow != nil {
				go r.dropSlow(c)
			}
		}
	}
}

// EmitToClient, tek bir client'a event gönderir.
func (r *Registry) EmitToClient(c *Client, event Event) {
	event.Seq = r.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event %s: %v", event.Op, err)
		return
	}

	select {
	case c.send <- data:
		metrics.FanoutFrames.Inc()
	default:
		metrics.DroppedClients.Inc()
		if r.dropSlow != nil {
			go r.dropSlow(c)
		}
	}
}
