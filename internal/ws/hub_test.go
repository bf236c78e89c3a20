package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub, url := startHub(t)

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
	}

	// Registration goes through the hub's channel; give it a beat.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(EventTelemetryNew, map[string]any{"deviceId": "dev-1"})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		var ev struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		if ev.Event != EventTelemetryNew {
			t.Errorf("event = %q; want %q", ev.Event, EventTelemetryNew)
		}
		if ev.Data["deviceId"] != "dev-1" {
			t.Errorf("deviceId = %v; want dev-1", ev.Data["deviceId"])
		}
	}
}

func TestBroadcastWithNoSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(EventDeviceUpdate, map[string]any{"deviceId": "dev-1", "lastSeen": time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no subscribers")
	}
}
