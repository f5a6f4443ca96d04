package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer in front.
		return true
	},
}

// Channel name helpers. One channel per table per group; clients re-fetch
// on any event for a channel they follow.
func MessagesChannel(groupID uuid.UUID) string { return "messages:" + groupID.String() }
func MembersChannel(groupID uuid.UUID) string  { return "members:" + groupID.String() }
func RequestsChannel(groupID uuid.UUID) string { return "requests:" + groupID.String() }

// Event is a change notification pushed to subscribed clients
type Event struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	ID      string `json:"id,omitempty"`
}

// clientAction represents a JSON message sent by a WebSocket client
type clientAction struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// broadcastMsg pairs a channel with the raw JSON payload to broadcast
type broadcastMsg struct {
	channel string
	data    []byte
}

// Hub maintains the set of active clients and fans change events out to
// clients subscribed to specific channels
type Hub struct {
	clients     map[*Client]bool
	channelSubs map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewHub creates and returns a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		channelSubs: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan broadcastMsg, 256),
		logger:      logger,
	}
}

// Run starts the hub's main event loop. It must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.channelSubs[msg.channel] {
				select {
				case client.send <- msg.data:
				default:
					// Client's send buffer is full; drop it.
					h.logger.Warn("dropping slow websocket client", zap.String("channel", msg.channel))
					h.dropClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropClient removes a client and all its subscriptions. Caller holds h.mu.
func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.mu.Lock()
	for ch := range client.channels {
		if subs, exists := h.channelSubs[ch]; exists {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.channelSubs, ch)
			}
		}
	}
	client.mu.Unlock()
}

// Publish sends a change event to all clients subscribed to the channel.
// It never blocks mutation paths: when the broadcast buffer is full the
// event is dropped (consumers resync on the next event or reload).
func (h *Hub) Publish(channel, event, id string) {
	data, err := json.Marshal(Event{Channel: channel, Event: event, ID: id})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- broadcastMsg{channel: channel, data: data}:
	default:
		h.logger.Warn("broadcast buffer full, dropping event", zap.String("channel", channel))
	}
}

// subscribe adds a client to a channel's subscriber set
func (h *Hub) subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.channels[channel] = true
	client.mu.Unlock()

	if h.channelSubs[channel] == nil {
		h.channelSubs[channel] = make(map[*Client]bool)
	}
	h.channelSubs[channel][client] = true
}

// unsubscribe removes a client from a channel's subscriber set
func (h *Hub) unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.channels, channel)
	client.mu.Unlock()

	if subs, ok := h.channelSubs[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channelSubs, channel)
		}
	}
}
