package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin kontrolü reverse proxy / CORS katmanına bırakılmıştır;
	// kimlik doğrulama upgrade'de değil ilk frame'deki join'de yapılır.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, /ws endpoint'ini sunar.
//
// Upgrade token istemez: bağlantı anonim açılır, client joinDeadline
// içinde join{token} frame'i göndermek zorundadır. Token böylece URL'de
// (access log'larda, proxy'lerde) görünmez.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
}

// NewHandler, yeni bir WebSocket handler'ı oluşturur.
func NewHandler(hub *Hub, dispatcher *Dispatcher) *Handler {
	return &Handler{hub: hub, dispatcher: dispatcher}
}

// HandleConnection, HTTP isteğini WebSocket'e yükseltir ve pump
// goroutine'lerini başlatır.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump(h.dispatcher)
}
