package observer

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 4), subscriptions: make(map[string]bool)}
}

func TestClientSubscribeUnsubscribe(t *testing.T) {
	c := newTestClient()
	if c.isSubscribed("blocks") {
		t.Fatalf("want no subscriptions on a fresh client")
	}
	c.subscribe("blocks")
	if !c.isSubscribed("blocks") {
		t.Fatalf("want blocks subscribed")
	}
	c.unsubscribe("blocks")
	if c.isSubscribed("blocks") {
		t.Fatalf("want blocks unsubscribed")
	}
}

func TestHubRegisterThenBroadcastReachesSubscribedClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient()
	c.hub = h
	h.register <- c
	c.subscribe("blocks")

	// Give the register case a chance to run before broadcasting.
	time.Sleep(10 * time.Millisecond)
	h.BroadcastToChannel("blocks", map[string]int{"height": 1})

	select {
	case msg := <-c.send:
		var got map[string]int
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["height"] != 1 {
			t.Fatalf("want height 1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("want the subscribed client to receive the broadcast")
	}
}

func TestHubBroadcastSkipsUnsubscribedClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient()
	c.hub = h
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	h.BroadcastToChannel("trades", map[string]int{"price": 5})

	select {
	case msg := <-c.send:
		t.Fatalf("want no message delivered to an unsubscribed client, got %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient()
	c.hub = h
	h.register <- c
	time.Sleep(10 * time.Millisecond)

	h.unregister <- c
	time.Sleep(10 * time.Millisecond)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatalf("want the send channel closed after unregister")
		}
	default:
		t.Fatalf("want the closed channel to be immediately readable")
	}
}
