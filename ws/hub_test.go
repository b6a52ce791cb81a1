package ws

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bindTestClient(h *Hub, socketID, userID string) *Client {
	c := newTestClient(socketID)
	h.addClient(c)
	h.Bind(c, userID, "user-"+socketID)
	return c
}

func TestHubSubscribeUserAllSockets(t *testing.T) {
	h := NewHub()

	// Aynı kullanıcının iki socket'i: abonelik ikisini de kapsamalı.
	a := bindTestClient(h, "sock-a", "user-1")
	b := bindTestClient(h, "sock-b", "user-1")
	outsider := bindTestClient(h, "sock-c", "user-2")

	h.SubscribeUser("user-1", KeyServer("srv-1"), KeyChannel("chan-1"))

	h.EmitTo(KeyServer("srv-1"), Event{Op: "test:event"})
	for _, c := range []*Client{a, b} {
		assert.Equal(t, "test:event", recv(t, c).Op)
	}
	assert.Empty(t, outsider.send)

	assert.ElementsMatch(t, []string{"sock-a", "sock-b"}, h.MembersOf(KeyChannel("chan-1")))
}

func TestHubUnsubscribeUser(t *testing.T) {
	h := NewHub()
	c := bindTestClient(h, "sock-1", "user-1")

	h.SubscribeUser("user-1", KeyServer("srv-1"))
	h.UnsubscribeUser("user-1", KeyServer("srv-1"))

	h.EmitTo(KeyServer("srv-1"), Event{Op: "test:event"})
	assert.Empty(t, c.send, "abonelikten çıkan socket frame almaz")

	// Offline kullanıcı için no-op.
	h.SubscribeUser("user-ghost", KeyServer("srv-1"))
	assert.Empty(t, h.MembersOf(KeyServer("srv-1")))
}

// Kapanan socket ile eşzamanlı fan-out: send channel'ı ancak room
// üyeliği düştükten sonra kapanmalı, yoksa emit kapalı channel'a yazar.
func TestHubRemoveClientConcurrentEmit(t *testing.T) {
	h := NewHub()
	h.Registry.dropSlow = func(*Client) {} // bu testte slow-drop devre dışı

	for i := 0; i < 50; i++ {
		c := bindTestClient(h, fmt.Sprintf("sock-%d", i), fmt.Sprintf("user-%d", i))
		h.Registry.Join(c, KeyChannel("chan-1"))

		done := make(chan struct{})
		emitted := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					close(emitted)
					return
				default:
					h.Registry.EmitTo(KeyChannel("chan-1"), Event{Op: "test:event"})
				}
			}
		}()

		h.removeClient(c)
		close(done)
		<-emitted
	}
}

func TestHubRemoveClientIdempotent(t *testing.T) {
	h := NewHub()
	c := bindTestClient(h, "sock-1", "user-1")

	h.removeClient(c)
	h.removeClient(c) // ikinci çağrı sessizce döner

	assert.Empty(t, h.OnlineUserIDs())
}
