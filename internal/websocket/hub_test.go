package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(slog.Default())

	ch1 := hub.Subscribe(outboundBuffer)
	ch2 := hub.Subscribe(outboundBuffer)

	if got := hub.Subscribers(); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}

	hub.Unsubscribe(ch1)

	if got := hub.Subscribers(); got != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", got)
	}

	hub.Unsubscribe(ch2)

	if got := hub.Subscribers(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}

func TestDoubleUnsubscribe(t *testing.T) {
	hub := NewHub(slog.Default())
	ch := hub.Subscribe(outboundBuffer)
	hub.Unsubscribe(ch)
	// Should not panic or double-close
	hub.Unsubscribe(ch)

	if got := hub.Subscribers(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	ch1 := hub.Subscribe(outboundBuffer)
	ch2 := hub.Subscribe(outboundBuffer)
	defer hub.Unsubscribe(ch1)
	defer hub.Unsubscribe(ch2)

	hub.Broadcast(NewMessage("spot", "created", 42, map[string]any{"lat": 52.52}))

	for _, ch := range []chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "spot_created" {
				t.Errorf("expected type spot_created, got %s", got.Type)
			}
			if got.Entity != "spot" {
				t.Errorf("expected entity spot, got %s", got.Entity)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(NewMessage("spot", "expired", 1, nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	ch := hub.Subscribe(2)
	defer hub.Unsubscribe(ch)

	hub.Broadcast(NewMessage("spot", "fill", 1, nil))
	hub.Broadcast(NewMessage("spot", "fill", 2, nil))

	// Buffer is full; this one must be dropped, not block
	hub.Broadcast(NewMessage("spot", "dropped", 999, nil))

	count := 0
drain:
	for {
		select {
		case <-ch:
			count++
		default:
			break drain
		}
	}
	if count != 2 {
		t.Errorf("expected 2 messages, got %d", count)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("spot", "updated", 5, nil)
	if msg.Type != "spot_updated" {
		t.Errorf("expected type spot_updated, got %s", msg.Type)
	}
	if msg.Entity != "spot" {
		t.Errorf("expected entity spot, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("expected id 5, got %d", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := hub.Subscribe(outboundBuffer)
			hub.Broadcast(NewMessage("spot", "concurrent", 0, nil))
			for {
				select {
				case <-ch:
				default:
					hub.Unsubscribe(ch)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.Subscribers(); got != 0 {
		t.Errorf("expected 0 subscribers after concurrent test, got %d", got)
	}
}
