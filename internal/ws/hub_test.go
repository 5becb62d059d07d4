package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ovenly/api/internal/events"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, tenantID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		tenantID: tenantID,
		send:     make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	tenantID := uuid.New()
	client := mockClient(hub, tenantID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[tenantID] == nil {
		t.Fatal("tenant room not created")
	}
	if !hub.rooms[tenantID][client] {
		t.Fatal("client not registered in tenant room")
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := startHub(t)

	tenantID := uuid.New()
	client1 := mockClient(hub, tenantID)
	client2 := mockClient(hub, tenantID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[tenantID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[tenantID]))
	}
	hub.mu.RUnlock()

	hub.leave(client1)
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[tenantID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[tenantID]))
	}
	hub.mu.RUnlock()

	hub.leave(client2)
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[tenantID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestHubPublish_TenantIsolation(t *testing.T) {
	hub := startHub(t)

	tenant1 := uuid.New()
	tenant2 := uuid.New()
	tenant3 := uuid.New()

	clients := map[uuid.UUID][]*Client{
		tenant1: {mockClient(hub, tenant1), mockClient(hub, tenant1)},
		tenant2: {mockClient(hub, tenant2), mockClient(hub, tenant2)},
		tenant3: {mockClient(hub, tenant3)},
	}
	for _, list := range clients {
		for _, c := range list {
			hub.register <- c
		}
	}
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), events.New("lock.acquired", tenant2, map[string]string{"order_id": "abc"})); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for tenantID, list := range clients {
		for i, client := range list {
			select {
			case msg := <-client.send:
				if tenantID != tenant2 {
					t.Fatalf("tenant %s client %d should not receive message", tenantID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != "lock.acquired" {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if tenantID == tenant2 {
					t.Fatalf("tenant2 client %d should have received message", i)
				}
			}
		}
	}
}

func TestHubPublish_DomainEvent(t *testing.T) {
	hub := startHub(t)

	tenantID := uuid.New()
	client := mockClient(hub, tenantID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	ev := events.New("internal_order.status_changed", tenantID, map[string]string{"status": "ready"})
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "internal_order.status_changed" {
			t.Errorf("type = %q", received.Type)
		}
		if string(received.Payload) != `{"status":"ready"}` {
			t.Errorf("payload = %s", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive published event")
	}
}

func TestHubPublish_UnmarshallablePayload(t *testing.T) {
	hub := startHub(t)

	err := hub.Publish(context.Background(), events.New("x", uuid.New(), make(chan int)))
	if err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestHubRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	tenantID := uuid.New()
	client := mockClient(hub, tenantID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()

	select {
	case <-hub.done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Error("client send channel should be closed on shutdown")
	}

	// leaving after shutdown must not block
	finished := make(chan struct{})
	go func() {
		hub.leave(client)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("leave blocked after hub stopped")
	}

	if err := hub.Publish(context.Background(), events.New("x", tenantID, nil)); err != nil {
		t.Errorf("publish after stop: %v", err)
	}
}
