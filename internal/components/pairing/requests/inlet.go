package requests

import (
	"errors"
	"log/slog"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// Subscriber is the consumer side of the event bus.
type Subscriber interface {
	Subscribe(fn events.Handler, kinds ...events.Kind) func()
}

// Inlet feeds externally delivered RequestReceived events into the queue.
// Envelopes published by the queue itself are ignored.
type Inlet struct {
	queue *Queue
	log   *slog.Logger
	stop  func()
}

// NewInlet subscribes q to inbound request notifications on sub.
func NewInlet(q *Queue, sub Subscriber, log *slog.Logger) *Inlet {
	in := &Inlet{queue: q, log: logutil.NoopIfNil(log)}
	in.stop = sub.Subscribe(in.handle, events.KindRequestReceived)
	return in
}

// Close removes the subscription.
func (in *Inlet) Close() { in.stop() }

func (in *Inlet) handle(env events.Envelope) {
	if env.Source == events.SourceQueue {
		return
	}
	ev, ok := env.Event.(events.RequestReceived)
	if !ok {
		return
	}
	receivedAt, err := NormalizeReceivedAt(ev.ReceivedAt, in.queue.clock())
	if err == nil {
		err = in.queue.Submit(ev.RequesterID, ev.DisplayName, receivedAt)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateRequest):
		in.log.Debug("duplicate pair request dropped", "requester_id", ev.RequesterID, "source", env.Source)
	default:
		in.log.Warn("inbound pair request rejected", "requester_id", ev.RequesterID, "source", env.Source, "error", err)
	}
}

// CommandRelay turns each resolution into the matching backend command,
// AcceptPairRequest or DenyPairRequest.
type CommandRelay struct {
	stop func()
}

// NewCommandRelay subscribes to resolutions on sub and publishes commands on pub.
func NewCommandRelay(sub Subscriber, pub events.Publisher) *CommandRelay {
	r := &CommandRelay{}
	r.stop = sub.Subscribe(func(env events.Envelope) {
		ev, ok := env.Event.(events.RequestResolved)
		if !ok {
			return
		}
		if ev.Accepted {
			pub.Publish(events.SourceQueue, events.AcceptPairRequest{RequesterID: ev.RequesterID})
			return
		}
		pub.Publish(events.SourceQueue, events.DenyPairRequest{RequesterID: ev.RequesterID})
	}, events.KindRequestResolved)
	return r
}

// Close removes the subscription.
func (r *CommandRelay) Close() { r.stop() }
