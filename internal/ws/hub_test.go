package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient(1, nil, ConnInfo{ConnID: "c1", UserID: 7})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected thread room to be created")
	}
	if _, ok := hub.getConnInfo(1, nil); !ok {
		t.Fatalf("expected conn info to be tracked")
	}
	if hub.writers[nil] == nil {
		t.Fatalf("expected a write mutex per connection")
	}

	hub.RemoveClient(1, nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected thread room to be removed")
	}
	if len(hub.connInfo) != 0 {
		t.Fatalf("expected conn info to be removed")
	}
	if len(hub.writers) != 0 {
		t.Fatalf("expected write mutex to be removed")
	}
}

func TestHubBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()

	// No subscribers: must not panic or create a room.
	hub.BroadcastTyping(3, 7, true)
	hub.BroadcastDeletion(3, 9)
	hub.BroadcastRead(3, 7, 2)

	if len(hub.rooms) != 0 {
		t.Fatalf("broadcast must not create rooms")
	}
}

// Two handler goroutines broadcasting into the same thread must not write the
// same connection concurrently; gorilla/websocket supports one writer at a
// time and panics otherwise.
func TestHubConcurrentBroadcastsSerializeWrites(t *testing.T) {
	hub := NewHub()
	registered := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.AddClient(1, conn, ConnInfo{ConnID: "c1", UserID: 2})
		close(registered)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()
	<-registered

	const perSender = 50
	var wg sync.WaitGroup
	wg.Add(2)
	for sender := 0; sender < 2; sender++ {
		go func(userID int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				hub.BroadcastTyping(1, userID, true)
			}
		}(sender + 10)
	}

	for i := 0; i < 2*perSender; i++ {
		if _, _, err := client.ReadMessage(); err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
	}
	wg.Wait()
}
