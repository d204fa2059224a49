// Package requests holds the pending pair request queue: a time-bounded,
// insertion-ordered set of incoming requests that each resolve exactly once.
package requests

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long a request stays pending before it expires.
const DefaultTTL = 30 * time.Second

// Status is the lifecycle state of a pair request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// StatusFor maps a resolution to its terminal status.
func StatusFor(accepted bool) Status {
	if accepted {
		return StatusAccepted
	}
	return StatusDenied
}

var (
	ErrDuplicateRequest = errors.New("pair request already pending")
	ErrNotFound         = errors.New("pair request not found")
	ErrInvalidRequest   = errors.New("invalid pair request")
)

// PendingRequest is one invitation awaiting accept or deny.
// Values are immutable once queued.
type PendingRequest struct {
	RequesterID string    `json:"requesterId"`
	DisplayName string    `json:"displayName"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// Age returns how long the request has been pending at now.
func (r PendingRequest) Age(now time.Time) time.Duration {
	return now.Sub(r.ReceivedAt)
}

// Entry is a rendering snapshot of one pending request.
type Entry struct {
	Request           PendingRequest
	RemainingFraction float64
	Remaining         time.Duration
}

// Remaining returns the time left before r expires, within [0, ttl].
func Remaining(r PendingRequest, now time.Time, ttl time.Duration) time.Duration {
	age := r.Age(now)
	switch {
	case ttl <= 0 || age >= ttl:
		return 0
	case age <= 0:
		return ttl
	default:
		return ttl - age
	}
}

// RemainingFraction returns clamp((ttl - age) / ttl, 0, 1).
func RemainingFraction(r PendingRequest, now time.Time, ttl time.Duration) float64 {
	if ttl <= 0 {
		return 0
	}
	return float64(Remaining(r, now, ttl)) / float64(ttl)
}

// MaxClockSkew is how far a delivered receivedAt may run ahead of the local
// clock. Times inside the window are pulled back to now.
const MaxClockSkew = 2 * time.Second

// NormalizeReceivedAt returns the time a delivery should be queued at. A zero
// receivedAt means now. A receivedAt more than MaxClockSkew ahead of now is
// rejected with ErrInvalidRequest: the request would never reach its TTL.
func NormalizeReceivedAt(receivedAt, now time.Time) (time.Time, error) {
	switch {
	case receivedAt.IsZero():
		return now, nil
	case receivedAt.After(now.Add(MaxClockSkew)):
		return time.Time{}, fmt.Errorf("%w: receivedAt %s is ahead of the server clock",
			ErrInvalidRequest, receivedAt.UTC().Format(time.RFC3339))
	case receivedAt.After(now):
		return now, nil
	default:
		return receivedAt, nil
	}
}
