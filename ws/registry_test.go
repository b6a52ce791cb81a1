package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(socketID string) *Client {
	return &Client{socketID: socketID, send: make(chan []byte, 16)}
}

// recv, client'ın send buffer'ından bir frame okuyup decode eder.
func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no frame in send buffer")
		return Event{}
	}
}

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("sock-1")

	r.Join(c, KeyChannel("chan-1"))
	r.Join(c, KeyChannel("chan-1")) // idempotent
	assert.Equal(t, []string{"sock-1"}, r.MembersOf(KeyChannel("chan-1")))

	r.Leave(c, KeyChannel("chan-1"))
	assert.Empty(t, r.MembersOf(KeyChannel("chan-1")))
	assert.Empty(t, r.Keys(c))
}

func TestRegistryLeaveAll(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("sock-1")

	r.Join(c, KeyChannel("chan-1"))
	r.Join(c, KeyServer("srv-1"))
	r.Join(c, KeyUser("user-1"))

	keys := r.LeaveAll(c)
	assert.ElementsMatch(t, []string{
		KeyChannel("chan-1"), KeyServer("srv-1"), KeyUser("user-1"),
	}, keys)
	assert.Empty(t, r.Keys(c))
	assert.Empty(t, r.MembersOf(KeyChannel("chan-1")))
}

func TestRegistryEmitTo(t *testing.T) {
	r := NewRegistry()
	a := newTestClient("sock-a")
	b := newTestClient("sock-b")
	outsider := newTestClient("sock-c")

	r.Join(a, KeyChannel("chan-1"))
	r.Join(b, KeyChannel("chan-1"))
	r.Join(outsider, KeyChannel("chan-2"))

	r.EmitTo(KeyChannel("chan-1"), Event{Op: "test:event", Data: map[string]string{"k": "v"}})

	for _, c := range []*Client{a, b} {
		ev := recv(t, c)
		assert.Equal(t, "test:event", ev.Op)
		assert.Greater(t, ev.Seq, int64(0))
	}
	assert.Empty(t, outsider.send, "başka room'a frame sızmaz")
}

func TestRegistryEmitSeqMonotonic(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("sock-1")
	r.Join(c, KeyChannel("chan-1"))

	r.EmitTo(KeyChannel("chan-1"), Event{Op: "first"})
	r.EmitTo(KeyChannel("chan-1"), Event{Op: "second"})

	first := recv(t, c)
	second := recv(t, c)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestRegistryEmitToExcept(t *testing.T) {
	r := NewRegistry()
	a := newTestClient("sock-a")
	b := newTestClient("sock-b")
	r.Join(a, KeyChannel("chan-1"))
	r.Join(b, KeyChannel("chan-1"))

	r.EmitToExcept(KeyChannel("chan-1"), "sock-a", Event{Op: "typing:start"})

	assert.Empty(t, a.send, "hariç tutulan socket frame almaz")
	ev := recv(t, b)
	assert.Equal(t, "typing:start", ev.Op)
}

func TestRegistryEmitToClient(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("sock-1")

	// Room üyeliği gerekmez — doğrudan hedefli gönderim.
	r.EmitToClient(c, Event{Op: "init", Data: map[string]string{"hello": "world"}})
	ev := recv(t, c)
	assert.Equal(t, "init", ev.Op)
}

func TestRegistrySlowClientDropped(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var dropped []string
	r.dropSlow = func(c *Client) {
		mu.Lock()
		dropped = append(dropped, c.socketID)
		mu.Unlock()
	}

	// Buffer'sız kanal: ilk yazma bile bloke olurdu — non-blocking send
	// düşürme yoluna gider.
	slow := &Client{socketID: "sock-slow", send: make(chan []byte)}
	healthy := newTestClient("sock-ok")
	r.Join(slow, KeyChannel("chan-1"))
	r.Join(healthy, KeyChannel("chan-1"))

	r.EmitTo(KeyChannel("chan-1"), Event{Op: "test:event"})

	// Sağlıklı client frame'ini alır — partial failure izolasyonu.
	ev := recv(t, healthy)
	assert.Equal(t, "test:event", ev.Op)

	// dropSlow ayrı goroutine'de çağrılır.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 1 && dropped[0] == "sock-slow"
	}, time.Second, 5*time.Millisecond)
}

func TestRoomKeyHelpers(t *testing.T) {
	assert.Equal(t, "server:s1", KeyServer("s1"))
	assert.Equal(t, "channel:c1", KeyChannel("c1"))
	assert.Equal(t, "user:u1", KeyUser("u1"))
	assert.Equal(t, "voice:c1", KeyVoice("c1"))
	assert.Equal(t, "personal:u1", KeyPersonal("u1"))
}
