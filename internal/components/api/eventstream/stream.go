// Package eventstream streams pair request events to websocket clients and
// accepts inbound deliveries from them.
package eventstream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api/inbox/pairrequests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// Message types on the wire.
const (
	TypeEvent   = "event"
	TypeToast   = "toast"
	TypeError   = "error"
	TypeSubmit  = "submit"
	TypeResolve = "resolve"
)

// Subscriber is the event bus side the stream listens on.
type Subscriber interface {
	Subscribe(fn events.Handler, kinds ...events.Kind) func()
}

// Inbox accepts submissions relayed by clients.
type Inbox interface {
	Submit(requesterID, displayName string, receivedAt time.Time) error
}

// Responder resolves requests on behalf of a client.
type Responder interface {
	Respond(requesterID string, accepted bool) (bool, error)
}

// OutboundMessage is sent to clients.
type OutboundMessage struct {
	Type  string                      `json:"type"`
	Event *events.Envelope            `json:"event,omitempty"`
	Toast *notifications.Notification `json:"toast,omitempty"`
	Error string                      `json:"error,omitempty"`
}

// InboundMessage is read from clients. Submit carries a received request from
// the pairing backend; resolve carries a user's decision.
type InboundMessage struct {
	Type        string    `json:"type"`
	RequesterID string    `json:"requesterId"`
	DisplayName string    `json:"displayName,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt,omitempty"`
	Accepted    bool      `json:"accepted,omitempty"`
}

// Handler upgrades GET /api/pair-requests/events to a websocket.
type Handler struct {
	bus      Subscriber
	inbox    Inbox
	resp     Responder
	clock    func() time.Time
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the stream handler. An empty allowedOrigins list
// accepts same-origin and origin-less clients only. A nil inbox refuses
// submit messages.
func NewHandler(bus Subscriber, inbox Inbox, resp Responder, allowedOrigins []string, clock func() time.Time, log *slog.Logger) *Handler {
	if clock == nil {
		clock = time.Now
	}
	h := &Handler{
		bus:   bus,
		inbox: inbox,
		resp:  resp,
		clock: clock,
		log:   logutil.NoopIfNil(log),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, u.Host)
		}
	}
	return h
}

// ServeHTTP handles one client connection until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := make(chan OutboundMessage, sendBuffer)
	done := make(chan struct{})

	// Subscribe before the handshake completes so nothing published after the
	// client sees the upgrade is missed.
	unsubscribe := h.bus.Subscribe(func(env events.Envelope) {
		h.enqueue(out, done, OutboundMessage{Type: TypeEvent, Event: &env})
		if n, ok := notifications.Compose(env); ok {
			h.enqueue(out, done, OutboundMessage{Type: TypeToast, Toast: &n})
		}
	})
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	h.log.Debug("event stream client connected", "remote_addr", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, out, done)
	}()

	h.readLoop(conn, out, done)
	close(done)
	<-writerDone
	conn.Close()
	h.log.Debug("event stream client disconnected", "remote_addr", r.RemoteAddr)
}

func (h *Handler) enqueue(out chan<- OutboundMessage, done <-chan struct{}, msg OutboundMessage) {
	select {
	case <-done:
	case out <- msg:
	default:
		h.log.Warn("event stream client too slow, dropping message", "type", msg.Type)
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, out chan<- OutboundMessage, done <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("event stream read failed", "error", err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.enqueue(out, done, OutboundMessage{Type: TypeError, Error: "invalid message"})
			continue
		}
		if errMsg := h.dispatch(msg); errMsg != "" {
			h.enqueue(out, done, OutboundMessage{Type: TypeError, Error: errMsg})
		}
	}
}

// dispatch applies one inbound message and returns a client-facing error.
func (h *Handler) dispatch(msg InboundMessage) string {
	if msg.RequesterID == "" {
		return "requesterId is required"
	}
	switch msg.Type {
	case TypeSubmit:
		return h.submit(msg)
	case TypeResolve:
		ok, err := h.resp.Respond(msg.RequesterID, msg.Accepted)
		if err != nil {
			h.log.Error("failed to resolve pair request", "requester_id", msg.RequesterID, "error", err)
			return "failed to resolve pair request"
		}
		if !ok {
			return "pair request is no longer pending"
		}
		return ""
	default:
		return "unknown message type"
	}
}

// submit queues a relayed request and reports why it was refused.
func (h *Handler) submit(msg InboundMessage) string {
	if h.inbox == nil {
		return "submissions are not accepted on this stream"
	}
	req := pairrequests.SubmitRequest{RequesterID: msg.RequesterID, DisplayName: msg.DisplayName}
	err := req.Validate()
	var receivedAt time.Time
	if err == nil {
		receivedAt, err = requests.NormalizeReceivedAt(msg.ReceivedAt, h.clock())
	}
	if err == nil {
		err = h.inbox.Submit(msg.RequesterID, msg.DisplayName, receivedAt)
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, requests.ErrDuplicateRequest):
		return "a pair request from this requester is already pending"
	case errors.Is(err, requests.ErrInvalidRequest):
		return strings.TrimPrefix(err.Error(), requests.ErrInvalidRequest.Error()+": ")
	default:
		h.log.Error("failed to queue pair request", "requester_id", msg.RequesterID, "error", err)
		return "failed to queue pair request"
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, out <-chan OutboundMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("event stream write failed", "error", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
