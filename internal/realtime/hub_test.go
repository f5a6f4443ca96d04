package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	return hub
}

func newTestClient() *Client {
	return &Client{
		send:     make(chan []byte, 4),
		channels: make(map[string]bool),
	}
}

func receive(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return &ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub := newTestHub()
	client := newTestClient()
	hub.register <- client

	channel := MessagesChannel(uuid.New())
	hub.subscribe(client, channel)

	hub.Publish(channel, "message_created", "abc")

	ev := receive(t, client)
	assert.Equal(t, channel, ev.Channel)
	assert.Equal(t, "message_created", ev.Event)
	assert.Equal(t, "abc", ev.ID)
}

func TestPublishSkipsOtherChannels(t *testing.T) {
	hub := newTestHub()
	client := newTestClient()
	hub.register <- client

	subscribed := MembersChannel(uuid.New())
	hub.subscribe(client, subscribed)

	hub.Publish(MessagesChannel(uuid.New()), "message_created", "x")
	hub.Publish(subscribed, "member_joined", "y")

	ev := receive(t, client)
	assert.Equal(t, "member_joined", ev.Event)
	assert.Empty(t, client.send)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := newTestHub()
	client := newTestClient()
	other := newTestClient()
	hub.register <- client
	hub.register <- other

	channel := RequestsChannel(uuid.New())
	hub.subscribe(client, channel)
	hub.subscribe(other, channel)
	hub.unsubscribe(client, channel)

	hub.Publish(channel, "request_created", "z")

	ev := receive(t, other)
	assert.Equal(t, "request_created", ev.Event)
	assert.Empty(t, client.send)
}

func TestChannelNames(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "messages:11111111-2222-3333-4444-555555555555", MessagesChannel(id))
	assert.Equal(t, "members:11111111-2222-3333-4444-555555555555", MembersChannel(id))
	assert.Equal(t, "requests:11111111-2222-3333-4444-555555555555", RequestsChannel(id))
}
