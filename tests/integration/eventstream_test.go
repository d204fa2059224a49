package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MahdiBaghbani/pairinbox-go/tests/integration/harness"
)

type streamMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Event *struct {
		Kind   string          `json:"kind"`
		Source string          `json:"source"`
		Event  json.RawMessage `json:"event"`
	} `json:"event"`
	Toast *struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"toast"`
}

func dialStream(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/pair-requests/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("failed to dial event stream (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextOfKind reads until an event of kind arrives or the deadline passes.
func nextOfKind(t *testing.T, conn *websocket.Conn, kind string) streamMessage {
	t.Helper()
	return nextFrom(t, conn, kind, "")
}

// nextFrom is nextOfKind restricted to one source when source is set.
func nextFrom(t *testing.T, conn *websocket.Conn, kind, source string) streamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}
		if msg.Type != "event" || msg.Event == nil || msg.Event.Kind != kind {
			continue
		}
		if source == "" || msg.Event.Source == source {
			return msg
		}
	}
}

func TestEventStream_ReceivesQueueEvents(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})
	conn := dialStream(t, ts.BaseURL)

	if code, data := do(t, "POST", ts.BaseURL+"/api/pair-requests", `{"requesterId":"u1","displayName":"Alice"}`); code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", code, data)
	}

	msg := nextFrom(t, conn, "pair_request.received", "queue")
	var received struct {
		RequesterID string `json:"requesterId"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(msg.Event.Event, &received); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if received.RequesterID != "u1" || received.DisplayName != "Alice" {
		t.Errorf("unexpected payload: %+v", received)
	}

	do(t, "POST", ts.BaseURL+"/api/pair-requests/u1/accept", "")
	nextOfKind(t, conn, "pair_request.resolved")
	nextOfKind(t, conn, "pair_request.accept")
}

func TestEventStream_SubmitAndResolveOverSocket(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})
	conn := dialStream(t, ts.BaseURL)

	if err := conn.WriteJSON(map[string]any{"type": "submit", "requesterId": "u7", "displayName": "Grace"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	nextFrom(t, conn, "pair_request.received", "queue")

	// The inlet has queued it by the time the queue's own event is out.
	if _, ok := ts.Queue.Lookup("u7"); !ok {
		t.Fatal("expected u7 to be pending after socket submit")
	}

	if err := conn.WriteJSON(map[string]any{"type": "resolve", "requesterId": "u7", "accepted": false}); err != nil {
		t.Fatalf("write resolve: %v", err)
	}
	nextOfKind(t, conn, "pair_request.deny")
	if ts.Queue.Count() != 0 {
		t.Errorf("expected empty queue, got %d", ts.Queue.Count())
	}
}

func TestEventStream_RejectsUnknownMessage(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})
	conn := dialStream(t, ts.BaseURL)

	if err := conn.WriteJSON(map[string]any{"type": "bogus", "requesterId": "u1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" || msg.Error != "unknown message type" {
		t.Errorf("expected unknown message type error, got %+v", msg)
	}
}
