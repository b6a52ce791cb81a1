package ws

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait: bir write işleminin tamamlanması için tanınan süre.
	writeWait = 10 * time.Second

	// pongWait: client'tan pong beklenen maksimum süre. Bu süre içinde
	// pong gelmezse bağlantı kopmuş sayılır.
	pongWait = 90 * time.Second

	// pingPeriod: server'ın ping gönderme aralığı. pongWait'ten kısa
	// olmalı ki pong süresi dolmadan yeni ping gitsin.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize: client'tan kabul edilen maksimum frame boyutu.
	maxMessageSize = 4096

	// sendBufferSize: client başına outbound buffer. Dolarsa client
	// yavaş demektir — bağlantısı düşürülür.
	sendBufferSize = 256

	// joinDeadline: upgrade sonrası join frame'i için tanınan süre.
	joinDeadline = 10 * time.Second
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her client iki goroutine ile yaşar:
// - ReadPump: socket'ten frame okur, Dispatcher'a iletir
// - WritePump: send channel'ından okur, socket'e yazar
//
// Socket'e yalnızca WritePump yazar — gorilla/websocket eşzamanlı
// yazmaya izin vermez, send channel'ı bu serileştirmeyi sağlar.
//
// socketID bağlantıya özgüdür; userID join frame'i doğrulanana kadar
// boştur. Aynı kullanıcının birden fazla socket'i (sekme, cihaz) olabilir.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	socketID string
	userID   string
	authed   bool
}

// NewClient, upgrade edilmiş bağlantı için yeni bir Client oluşturur.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		socketID: uuid.New().String(),
	}
}

// SocketID, bağlantıya özgü kimliği döner.
func (c *Client) SocketID() string { return c.socketID }

// UserID, socket'in bağlı olduğu kullanıcıyı döner (join öncesi boş).
func (c *Client) UserID() string { return c.userID }

// Authed, socket'in join frame'i ile doğrulanıp doğrulanmadığını döner.
func (c *Client) Authed() bool { return c.authed }

// ReadPump, socket'ten gelen frame'leri okur ve dispatcher'a iletir.
// Bağlantı başına tek bir reader goroutine'i olarak çalışır.
//
// İlk frame için joinDeadline uygulanır: süresinde join gelmezse
// read deadline dolar ve bağlantı kapanır.
func (c *Client) ReadPump(d *Dispatcher) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(joinDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close: socket=%s err=%v", c.socketID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if fatal := d.Dispatch(c, raw); fatal {
			return
		}
	}
}

// WritePump, send channel'ından gelen frame'leri socket'e yazar ve
// periyodik ping gönderir. Bağlantı başına tek writer goroutine'i.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub channel'ı kapattı — client düşürüldü.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
