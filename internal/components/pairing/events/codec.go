package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewEvent returns a zero value of the payload type for k.
func NewEvent(k Kind) (Event, error) {
	switch k {
	case KindRequestReceived:
		return &RequestReceived{}, nil
	case KindRequestExpired:
		return &RequestExpired{}, nil
	case KindRequestResolved:
		return &RequestResolved{}, nil
	case KindAcceptPairRequest:
		return &AcceptPairRequest{}, nil
	case KindDenyPairRequest:
		return &DenyPairRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", k)
	}
}

// DecodeEvent unmarshals data as the payload for k.
func DecodeEvent(k Kind, data []byte) (Event, error) {
	ptr, err := NewEvent(k)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", k, err)
	}
	// Handlers type-switch on value types.
	switch ev := ptr.(type) {
	case *RequestReceived:
		return *ev, nil
	case *RequestExpired:
		return *ev, nil
	case *RequestResolved:
		return *ev, nil
	case *AcceptPairRequest:
		return *ev, nil
	case *DenyPairRequest:
		return *ev, nil
	}
	return ptr, nil
}

// UnmarshalJSON restores the typed payload from the envelope kind.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID     string          `json:"id"`
		Kind   Kind            `json:"kind"`
		Source string          `json:"source"`
		At     time.Time       `json:"at"`
		Event  json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ev, err := DecodeEvent(wire.Kind, wire.Event)
	if err != nil {
		return err
	}
	*e = Envelope{ID: wire.ID, Kind: wire.Kind, Source: wire.Source, At: wire.At, Event: ev}
	return nil
}
