package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"uzigbee-devices/internal/catalog"
)

func newTestHub(t *testing.T) *WSHub {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewWSHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, c *wsClient) catalog.Event {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client closed")
		}
		var ev catalog.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return catalog.Event{}
}

func TestWSHubClients(t *testing.T) {
	hub := newTestHub(t)

	c := &wsClient{send: make(chan []byte, 16)}
	hub.register <- c
	waitFor(t, "register", func() bool { return hub.Clients() == 1 })

	hub.unregister <- c
	waitFor(t, "unregister", func() bool { return hub.Clients() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel left open after unregister")
	}
}

func TestWSHubFilters(t *testing.T) {
	hub := newTestHub(t)

	all := &wsClient{send: make(chan []byte, 16)}
	reports := &wsClient{send: make(chan []byte, 16), types: map[string]bool{catalog.EventInterviewChecked: true}}
	hub.register <- all
	hub.register <- reports
	waitFor(t, "register", func() bool { return hub.Clients() == 2 })

	hub.Broadcast(catalog.Event{Type: catalog.EventDescriptorSaved, Data: map[string]string{"model": "uzb_Porch"}})
	hub.Broadcast(catalog.Event{Type: catalog.EventInterviewChecked})

	if ev := receive(t, all); ev.Type != catalog.EventDescriptorSaved || ev.Data.(map[string]any)["model"] != "uzb_Porch" {
		t.Errorf("first event = %+v", ev)
	}
	if ev := receive(t, all); ev.Type != catalog.EventInterviewChecked {
		t.Errorf("second event = %+v", ev)
	}
	if ev := receive(t, reports); ev.Type != catalog.EventInterviewChecked {
		t.Errorf("filtered client got %s", ev.Type)
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"?types=", nil},
		{"?types=,%20", nil},
		{"?types=interview_checked", []string{"interview_checked"}},
		{"?types=interview_checked,%20converter_published", []string{"interview_checked", "converter_published"}},
	}
	for _, tt := range tests {
		got := eventTypes(httptest.NewRequest("GET", "/ws"+tt.query, nil))
		if len(got) != len(tt.want) || (tt.want == nil) != (got == nil) {
			t.Errorf("%q: got %v, want %v", tt.query, got, tt.want)
			continue
		}
		for _, w := range tt.want {
			if !got[w] {
				t.Errorf("%q: missing %s", tt.query, w)
			}
		}
	}
}

func TestWSHubDropsSlowClient(t *testing.T) {
	hub := newTestHub(t)

	slow := &wsClient{send: make(chan []byte, 1)}
	fast := &wsClient{send: make(chan []byte, 64)}
	hub.register <- slow
	hub.register <- fast
	waitFor(t, "register", func() bool { return hub.Clients() == 2 })

	hub.Broadcast(catalog.Event{Type: "msg1"})
	hub.Broadcast(catalog.Event{Type: "msg2"})
	waitFor(t, "slow client drop", func() bool { return hub.Clients() == 1 })

	hub.mu.RLock()
	_, fastPresent := hub.clients[fast]
	hub.mu.RUnlock()
	if !fastPresent {
		t.Error("fast client dropped")
	}
}

func TestWSHubBroadcastNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewWSHub(logger) // not running: nothing drains the queue
	for i := 0; i < cap(hub.events); i++ {
		hub.Broadcast(catalog.Event{Type: "fill"})
	}

	done := make(chan struct{})
	go func() {
		hub.Broadcast(catalog.Event{Type: "overflow"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Broadcast blocked on a full queue")
	}
}

func TestWSHubStop(t *testing.T) {
	hub := newTestHub(t)

	c := &wsClient{send: make(chan []byte, 16)}
	hub.register <- c
	waitFor(t, "register", func() bool { return hub.Clients() == 1 })

	hub.Stop()
	hub.Stop()
	waitFor(t, "close", func() bool { return hub.Clients() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel left open after Stop")
	}
}

func TestWSStreamsCatalogEvents(t *testing.T) {
	srv, _ := setupTestServer(t, "")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() map[string]any {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var ev map[string]any
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	}

	hello := read()
	if hello["type"] != helloEvent {
		t.Fatalf("first message = %v", hello)
	}
	if devices := hello["data"].(map[string]any)["devices"]; devices != float64(18) {
		t.Errorf("hello devices = %v, want 18", devices)
	}

	// Registration happens after hello is queued; wait for it before emitting.
	waitFor(t, "register", func() bool { return srv.wsHub.Clients() == 1 })
	if err := srv.catalog.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if ev := read(); ev["type"] != catalog.EventRegistryReloaded {
		t.Errorf("event = %v, want registry_reloaded", ev)
	}
}

func TestWSFilteredStream(t *testing.T) {
	srv, _ := setupTestServer(t, "")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?types=" + catalog.EventDescriptorSaved
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ev catalog.Event
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	json.Unmarshal(data, &ev)
	if ev.Type != helloEvent {
		t.Fatalf("first message = %s", data)
	}

	waitFor(t, "register", func() bool { return srv.wsHub.Clients() == 1 })
	if err := srv.catalog.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if err := srv.catalog.SaveCustom(ctx, porch()); err != nil {
		t.Fatal(err)
	}

	// The reload events are filtered out; the first frame is the save.
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	json.Unmarshal(data, &ev)
	if ev.Type != catalog.EventDescriptorSaved {
		t.Errorf("event = %s, want descriptor_saved", data)
	}
}
