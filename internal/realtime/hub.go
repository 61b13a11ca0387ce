package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// Event names on the monitor channel. Reconciled snapshots and raw
// client-to-room passthroughs are deliberately distinct so viewers can
// tell persisted state from ad-hoc rebroadcasts.
const (
	EventUpdate  = "esp32-update"
	EventRaw     = "esp32-raw"
	eventInbound = "esp32-data"
)

// Event is one frame on the monitor channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type relayMsg struct {
	sender *Client
	data   []byte
}

// Hub is the single logical monitoring room. It fans reconciled
// snapshots out to every subscribed viewer, best effort: no queueing, no
// acks, slow viewers are dropped rather than ever blocking a publish.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	relay      chan relayMsg
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub; call Run before publishing.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		relay:      make(chan relayMsg, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Publish broadcasts a reconciled snapshot to all current viewers.
// Publishes are serialized through one channel, so snapshots for a device
// reach every viewer in publish order. Implements monitor.Notifier.
func (h *Hub) Publish(snapshot *models.DeviceSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	frame, err := json.Marshal(Event{Event: EventUpdate, Data: data})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal update event")
		return
	}

	h.broadcast <- frame
}

// Run owns the client set; registration, unregistration and delivery all
// go through here so they are safe against concurrent publishes.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Int("clients", len(h.clients)).Msg("Viewer joined monitor room")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, frame)
			}

		case msg := <-h.relay:
			for client := range h.clients {
				if client == msg.sender {
					continue
				}
				h.deliver(client, msg.data)
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// deliver hands a frame to one viewer, dropping the viewer when its send
// buffer is full.
func (h *Hub) deliver(client *Client, frame []byte) {
	select {
	case client.send <- frame:
	default:
		delete(h.clients, client)
		close(client.send)
	}
}
