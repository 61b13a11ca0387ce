package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, cancel
}

func join(t *testing.T, hub *Hub, buffer int) *Client {
	t.Helper()

	client := &Client{hub: hub, send: make(chan []byte, buffer)}
	hub.register <- client
	return client
}

func recvFrame(t *testing.T, client *Client) Event {
	t.Helper()

	select {
	case frame, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var evt Event
		if err := json.Unmarshal(frame, &evt); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
	}
	return Event{}
}

func TestHubPublishFansOut(t *testing.T) {
	hub, _ := startHub(t)

	a := join(t, hub, 4)
	b := join(t, hub, 4)

	hub.Publish(&models.DeviceSnapshot{ChipID: "abc123", Connected: true})

	for _, client := range []*Client{a, b} {
		evt := recvFrame(t, client)
		if evt.Event != EventUpdate {
			t.Errorf("event = %q, want %q", evt.Event, EventUpdate)
		}

		var snap models.DeviceSnapshot
		if err := json.Unmarshal(evt.Data, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if snap.ChipID != "abc123" || !snap.Connected {
			t.Errorf("snapshot = %+v", snap)
		}
	}
}

func TestHubPublishOrderPreserved(t *testing.T) {
	hub, _ := startHub(t)
	client := join(t, hub, 8)

	for _, uptime := range []int64{1, 2, 3} {
		hub.Publish(&models.DeviceSnapshot{ChipID: "abc123", Uptime: uptime})
	}

	for _, want := range []int64{1, 2, 3} {
		evt := recvFrame(t, client)
		var snap models.DeviceSnapshot
		if err := json.Unmarshal(evt.Data, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if snap.Uptime != want {
			t.Errorf("uptime = %d, want %d", snap.Uptime, want)
		}
	}
}

func TestHubRelayExcludesSender(t *testing.T) {
	hub, _ := startHub(t)

	sender := join(t, hub, 4)
	other := join(t, hub, 4)

	frame, _ := json.Marshal(Event{Event: EventRaw, Data: json.RawMessage(`{"x":1}`)})
	hub.relay <- relayMsg{sender: sender, data: frame}

	evt := recvFrame(t, other)
	if evt.Event != EventRaw {
		t.Errorf("event = %q, want %q", evt.Event, EventRaw)
	}

	select {
	case <-sender.send:
		t.Error("relay echoed back to its sender")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	slow := join(t, hub, 1)
	healthy := join(t, hub, 8)

	// Two publishes overflow the slow client's single-slot buffer.
	hub.Publish(&models.DeviceSnapshot{ChipID: "abc123", Uptime: 1})
	hub.Publish(&models.DeviceSnapshot{ChipID: "abc123", Uptime: 2})

	recvFrame(t, healthy)
	recvFrame(t, healthy)

	// The slow client's channel was closed when it got dropped; its one
	// buffered frame drains first.
	<-slow.send
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("expected closed channel after drop")
		}
	case <-time.After(time.Second):
		t.Error("slow client channel never closed")
	}
}
