// Package ratelimit — principal bazlı fixed window rate limiting.
//
// Tasarım:
// - Her (bucket, key) çifti için fixed window sayacı tutulur: window
//   dolunca sayaç sıfırlanır, yeni pencere başlar.
//   bucket: "message.send", "auth.login" gibi isimli limit sınıfı.
//   key: principal — user ID, webhook ID, IP veya socket ID.
// - Window süresi içinde limit aşılırsa istek reddedilir.
// - Background goroutine ile süresi dolmuş counter'lar temizlenir (memory leak engeli).
//
// Neden in-memory?
// - SQLite'a her request'te yazma gereksiz I/O + contention yaratır.
// - Redis bağımlılığı eklememek için in-memory yeterli (tek instance deploy).
// - sync.Mutex ile thread-safe.
//
// Neden ayrı paket?
// handlers ↔ ws ↔ services arasında import cycle oluşmaması için
// rate limiter bağımsız bir paket olarak konumlandırıldı.
// pkg/ratelimit hiçbir proje içi pakete bağımlı değildir (leaf dependency).
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Varsayılan bucket isimleri. Limitler NewLimiter'da tanımlanır ve
// RATE_LIMIT_* environment variable'ları ile override edilebilir (bkz. config).
const (
	BucketMessageSend   = "message.send"
	BucketWebhookPost   = "webhook.post"
	BucketFriendRequest = "friend.request"
	BucketInviteCreate  = "invite.create"
	BucketAuthLogin     = "auth.login"
	BucketWSEventAny    = "ws.event.any"
)

// Rule, bir bucket'ın limitini tanımlar: window başına max istek.
type Rule struct {
	Max    int
	Window time.Duration
}

// DefaultRules, bucket başına varsayılan limitler.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		BucketMessageSend:   {Max: 10, Window: 10 * time.Second},
		BucketWebhookPost:   {Max: 10, Window: 10 * time.Second},
		BucketFriendRequest: {Max: 20, Window: time.Hour},
		BucketInviteCreate:  {Max: 30, Window: time.Hour},
		BucketAuthLogin:     {Max: 10, Window: 10 * time.Second},
		BucketWSEventAny:    {Max: 60, Window: time.Second},
	}
}

// counter, bir (bucket, key) çifti için istek sayacı ve window başlangıcı tutar.
//
// Fixed window algoritması:
// - İlk istek geldiğinde windowStart = now, count = 1.
// - Sonraki istekler: windowStart + window süresi geçmemişse count++.
// - Süre geçmişse window sıfırlanır (yeni pencere başlar).
type counter struct {
	count       int
	windowStart time.Time
}

// Limiter, isimli bucket'lar üzerinden principal bazlı rate limiting yapar.
//
// Kullanım:
//
//	limiter := ratelimit.NewLimiter(ratelimit.DefaultRules())
//	if !limiter.Allow(ratelimit.BucketMessageSend, userID) {
//	    return pkg.ErrRateLimited
//	}
type Limiter struct {
	mu          sync.Mutex
	rules       map[string]Rule
	counters    map[string]*counter // key formatı: "<bucket>\x00<key>"
	stopCleanup chan struct{}
}

// NewLimiter, yeni limiter oluşturur ve arka plan temizleme goroutine'ini başlatır.
//
// Temizleme goroutine'i her dakika çalışır ve süresi dolmuş counter'ları siler.
// Bu, uzun süre çalışan sunucularda bellek sızıntısını önler.
func NewLimiter(rules map[string]Rule) *Limiter {
	l := &Limiter{
		rules:       rules,
		counters:    make(map[string]*counter),
		stopCleanup: make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow, verilen principal'ın bucket içinde bir isteğe izin verilip
// verilmediğini kontrol eder.
//
// true: istek kabul edildi (limit aşılmadı).
// false: rate limit aşıldı → WS tarafı error{kind=rate_limited},
// HTTP tarafı 429 + Retry-After dönmeli.
//
// Tanımsız bucket her zaman izin verir — limit eklemeyi unutmak
// isteği düşürmemeli.
func (l *Limiter) Allow(bucket, key string) bool {
	rule, ok := l.rules[bucket]
	if !ok {
		return true
	}

	now := time.Now()
	ck := bucket + "\x00" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.counters[ck]
	if !exists {
		l.counters[ck] = &counter{count: 1, windowStart: now}
		return true
	}

	if now.Sub(c.windowStart) > rule.Window {
		// Yeni pencere başlat — eski sayaç sıfırlanır
		c.count = 1
		c.windowStart = now
		return true
	}

	c.count++
	return c.count <= rule.Max
}

// Reset, bir principal'ın sayacını sıfırlar.
// Başarılı login sonrası IP sayacını temizlemek için kullanılır —
// meşru kullanıcı sonraki denemelerde bloke olmamalı.
func (l *Limiter) Reset(bucket, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, bucket+"\x00"+key)
}

// RetryAfterSeconds, rate limit aşıldığında kalan bekleme süresini saniye
// cinsinden döner. HTTP Retry-After header değeri olarak kullanılır.
func (l *Limiter) RetryAfterSeconds(bucket, key string) int {
	rule, ok := l.rules[bucket]
	if !ok {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.counters[bucket+"\x00"+key]
	if !exists {
		return 0
	}

	remaining := rule.Window - time.Since(c.windowStart)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1 // +1 yuvarlama — client'ın tam süreyi beklemesi için
}

// Close, temizleme goroutine'ini durdurur.
func (l *Limiter) Close() {
	close(l.stopCleanup)
}

// cleanupLoop, arka planda süresi dolmuş counter'ları temizler.
// Her 60 saniyede bir çalışır.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup, window süresi geçmiş tüm counter'ları siler.
// Counter'ın hangi bucket'a ait olduğunu key prefix'inden bulur.
func (l *Limiter) cleanup() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for ck, c := range l.counters {
		bucket := ck
		for i := 0; i < len(ck); i++ {
			if ck[i] == '\x00' {
				bucket = ck[:i]
				break
			}
		}
		rule, ok := l.rules[bucket]
		if !ok || now.Sub(c.windowStart) > rule.Window {
			delete(l.counters, ck)
		}
	}
}

// ExtractIP, HTTP request'ten client IP adresini çıkarır.
//
// Öncelik sırası:
// 1. X-Forwarded-For header (reverse proxy arkasındaysa, ilk IP)
// 2. X-Real-IP header (nginx gibi proxy'ler ekler)
// 3. RemoteAddr (doğrudan bağlantı)
//
// Production'da uygulama genellikle nginx/Caddy arkasındadır.
// Bu durumda RemoteAddr her zaman proxy'nin IP'sidir.
func ExtractIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2 — ilk değer gerçek client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage, kalan süreyi okunabilir formata çevirir.
// Örn: 120 → "2 minute(s)", 45 → "45 second(s)"
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
