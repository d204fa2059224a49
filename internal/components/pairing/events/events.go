// Package events defines the pair request notifications and the in-process
// bus that carries them between the request queue and its collaborators.
package events

import "time"

// Kind identifies an event type on the bus.
type Kind string

const (
	KindRequestReceived Kind = "pair_request.received"
	KindRequestExpired  Kind = "pair_request.expired"
	KindRequestResolved Kind = "pair_request.resolved"

	// Commands for the pairing backend, published after a resolution.
	KindAcceptPairRequest Kind = "pair_request.accept"
	KindDenyPairRequest   Kind = "pair_request.deny"
)

// Sources recorded on envelopes. Anything else is treated as an external delivery.
const (
	SourceQueue = "queue"
	SourceAPI   = "api"
	SourceWS    = "websocket"
)

// Event is implemented by every payload carried on the bus.
type Event interface {
	Kind() Kind
}

// RequestReceived announces a new pending request. Delivered inbound by the
// messaging layer and re-published by the queue as confirmation.
type RequestReceived struct {
	RequesterID string    `json:"requesterId"`
	DisplayName string    `json:"displayName"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

func (RequestReceived) Kind() Kind { return KindRequestReceived }

// RequestExpired is emitted once per request evicted by its TTL.
type RequestExpired struct {
	RequesterID string    `json:"requesterId"`
	DisplayName string    `json:"displayName"`
	ReceivedAt  time.Time `json:"receivedAt"`
	ExpiredAt   time.Time `json:"expiredAt"`
}

func (RequestExpired) Kind() Kind { return KindRequestExpired }

// RequestResolved is emitted exactly once when the user accepts or denies.
type RequestResolved struct {
	RequesterID string    `json:"requesterId"`
	DisplayName string    `json:"displayName"`
	Accepted    bool      `json:"accepted"`
	ResolvedAt  time.Time `json:"resolvedAt"`
}

func (RequestResolved) Kind() Kind { return KindRequestResolved }

// Outcome returns "accepted" or "denied".
func (e RequestResolved) Outcome() string {
	if e.Accepted {
		return "accepted"
	}
	return "denied"
}

// AcceptPairRequest asks the pairing backend to complete the pair.
type AcceptPairRequest struct {
	RequesterID string `json:"requesterId"`
}

func (AcceptPairRequest) Kind() Kind { return KindAcceptPairRequest }

// DenyPairRequest asks the pairing backend to drop the pair request.
type DenyPairRequest struct {
	RequesterID string `json:"requesterId"`
}

func (DenyPairRequest) Kind() Kind { return KindDenyPairRequest }
