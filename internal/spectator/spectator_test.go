package spectator

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPublishMoveReachesConnectedViewer(t *testing.T) {
	srv := New(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the connection before publishing.
	deadline := time.Now().Add(time.Second)
	for len(srv.clients) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	srv.PublishMove(MoveEvent{GameID: "g1", Turn: 3, Action: "up", Reward: 0})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var frame GameEvent
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame failed: %v", err)
	}
	if frame.Type != "move" {
		t.Errorf("expected type=move, got %s", frame.Type)
	}

	var mv MoveEvent
	if err := json.Unmarshal(frame.Data, &mv); err != nil {
		t.Fatalf("unmarshal move failed: %v", err)
	}
	if mv.GameID != "g1" || mv.Turn != 3 {
		t.Errorf("unexpected move payload: %+v", mv)
	}
}

func TestPublishWithNoViewersDoesNotBlock(t *testing.T) {
	srv := New(nil)
	srv.PublishMove(MoveEvent{GameID: "g2", Turn: 1})
}
