package ws

import (
	"context"
	"encoding/json"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/metrics"
	"github.com/nexushq/nexus/pkg/ratelimit"
)

// Handler deadline'ları: her op bir timeout'lu context altında çalışır.
// Store'a inen op'lar için 10sn; webrtc sinyal relay'leri düşük gecikme
// beklediğinden 5sn.
const (
	handlerTimeout = 10 * time.Second
	signalTimeout  = 5 * time.Second
)

// HandlerFunc, tek bir inbound op'u işleyen fonksiyon.
// data, op'a özgü payload (DecodeData ile decode edilir).
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

type handlerEntry struct {
	fn     HandlerFunc
	bucket string // boşsa op'a özgü rate limit yok
}

// Dispatcher, inbound op → handler tablosudur.
//
// Tablo main.go'da Register çağrılarıyla doldurulur — ws paketi service
// katmanını import etmez, bağımlılık tersine çevrilmiştir.
//
// Her dispatch şu kapılardan geçer:
// 1. Frame parse — bozuk JSON'a error event'i, bağlantı açık kalır
// 2. Auth — join'den önce başka op gelirse socket kapatılır
// 3. Flood kapısı — socket başına genel event limiti (soft: event düşer)
// 4. Op kapısı — handler'ın bucket'ı (kullanıcı başına)
// 5. Panic recovery — handler panic'i tek event'i öldürür, process'i değil
type Dispatcher struct {
	hub     *Hub
	limiter *ratelimit.Limiter
	table   map[string]handlerEntry

	// onJoin, ilk frame'deki token'ı doğrular ve socket'i bağlar.
	// Auth service'e buradan ulaşılır — main.go set eder.
	onJoin func(ctx context.Context, c *Client, token string) error
}

// NewDispatcher, boş tablolu bir Dispatcher oluşturur.
func NewDispatcher(hub *Hub, limiter *ratelimit.Limiter) *Dispatcher {
	return &Dispatcher{
		hub:     hub,
		limiter: limiter,
		table:   make(map[string]handlerEntry),
	}
}

// SetJoinHandler, join frame'ini doğrulayan callback'i bağlar.
func (d *Dispatcher) SetJoinHandler(fn func(ctx context.Context, c *Client, token string) error) {
	d.onJoin = fn
}

// Register, bir op için handler kaydeder. bucket boş olabilir.
// Aynı op'un iki kez kaydı wire-up hatasıdır — panic.
func (d *Dispatcher) Register(op, bucket string, fn HandlerFunc) {
	if _, exists := d.table[op]; exists {
		panic("ws: duplicate handler registration for op " + op)
	}
	d.table[op] = handlerEntry{fn: fn, bucket: bucket}
}

// Dispatch, tek bir inbound frame'i işler. fatal true dönerse ReadPump
// bağlantıyı kapatır.
func (d *Dispatcher) Dispatch(c *Client, raw []byte) (fatal bool) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		d.sendError(c, "malformed frame", pkg.KindValidation)
		return false
	}
	metrics.InboundEvents.WithLabelValues(in.Op).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFor(in.Op))
	defer cancel()

	// join: tek auth kapısı. Başarısızlık her zaman fatal.
	if in.Op == OpJoin {
		if c.authed {
			return false // ikinci join sessizce yutulur
		}
		var data JoinData
		if err := DecodeData(in.Data, &data); err != nil || data.Token == "" {
			d.sendError(c, "authentication required", pkg.KindAuthInvalid)
			return true
		}
		if err := d.onJoin(ctx, c, data.Token); err != nil {
			d.sendError(c, "authentication failed", pkg.Kind(err))
			return true
		}
		return false
	}

	if !c.authed {
		d.sendError(c, "authentication required", pkg.KindAuthInvalid)
		return true
	}

	// heartbeat: handler tablosuna girmeden yanıtlanır.
	if in.Op == OpHeartbeat {
		d.hub.Registry.EmitToClient(c, Event{Op: OpHeartbeatAck})
		return false
	}

	// Socket başına flood kapısı — aşımda event düşer, bağlantı kalır.
	if !d.limiter.Allow(ratelimit.BucketWSEventAny, c.socketID) {
		d.sendError(c, "too many events", pkg.KindRateLimited)
		return false
	}

	d.hub.Touch(c.userID)

	entry, ok := d.table[in.Op]
	if !ok {
		// Bilinmeyen op: protokol sürüm kayması olabilir, sessizce yut.
		return false
	}

	if entry.bucket != "" && !d.limiter.Allow(entry.bucket, c.userID) {
		retry := d.limiter.RetryAfterSeconds(entry.bucket, c.userID)
		d.sendError(c, ratelimit.FormatRetryMessage(retry), pkg.KindRateLimited)
		return false
	}

	if err := d.invoke(ctx, entry.fn, c, in.Data); err != nil {
		d.sendError(c, err.Error(), pkg.Kind(err))
		return pkg.IsFatal(err)
	}
	return false
}

// timeoutFor, op'un deadline'ını seçer. Sinyal relay'leri ("webrtc:*")
// store'a inmez — daha sıkı bir süre yeter.
func timeoutFor(op string) time.Duration {
	if strings.HasPrefix(op, "webrtc:") {
		return signalTimeout
	}
	return handlerTimeout
}

// invoke, handler'ı panic recovery ile çağırır. Tek bir bozuk event
// process'i değil yalnızca kendini öldürür.
func (d *Dispatcher) invoke(ctx context.Context, fn HandlerFunc, c *Client, data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ws] handler panic: socket=%s panic=%v\n%s", c.socketID, r, debug.Stack())
			err = pkg.ErrInternal
		}
	}()
	return fn(ctx, c, data)
}

func (d *Dispatcher) sendError(c *Client, message, kind string) {
	d.hub.Registry.EmitToClient(c, Event{Op: OpError, Data: ErrorData{Message: message, Kind: kind}})
}
