package events_test

import (
	"testing"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBus() *events.Bus {
	return events.NewBus(func() time.Time { return fixedNow }, nil)
}

func TestBus_PublishStampsEnvelope(t *testing.T) {
	bus := newTestBus()

	var got []events.Envelope
	bus.Subscribe(func(env events.Envelope) { got = append(got, env) })

	env := bus.Publish(events.SourceQueue, events.RequestExpired{DisplayName: "Alice"})

	if env.ID == "" {
		t.Error("expected envelope id to be set")
	}
	if env.Kind != events.KindRequestExpired {
		t.Errorf("expected kind %s, got %s", events.KindRequestExpired, env.Kind)
	}
	if !env.At.Equal(fixedNow) {
		t.Errorf("expected At %v, got %v", fixedNow, env.At)
	}
	if env.Source != events.SourceQueue {
		t.Errorf("expected source %q, got %q", events.SourceQueue, env.Source)
	}
	if len(got) != 1 || got[0].ID != env.ID {
		t.Fatalf("expected subscriber to receive the published envelope, got %+v", got)
	}
}

func TestBus_KindFilter(t *testing.T) {
	bus := newTestBus()

	var resolved, all int
	bus.Subscribe(func(events.Envelope) { resolved++ }, events.KindRequestResolved)
	bus.Subscribe(func(events.Envelope) { all++ })

	bus.Publish(events.SourceQueue, events.RequestReceived{RequesterID: "u1"})
	bus.Publish(events.SourceQueue, events.RequestResolved{RequesterID: "u1", Accepted: true})

	if resolved != 1 {
		t.Errorf("expected filtered subscriber to see 1 event, got %d", resolved)
	}
	if all != 2 {
		t.Errorf("expected catch-all subscriber to see 2 events, got %d", all)
	}
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := newTestBus()

	var order []string
	bus.Subscribe(func(events.Envelope) { order = append(order, "first") })
	bus.Subscribe(func(events.Envelope) { order = append(order, "second") })

	bus.Publish(events.SourceAPI, events.DenyPairRequest{RequesterID: "u1"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected [first second], got %v", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(events.Envelope) { calls++ })
	bus.Publish(events.SourceQueue, events.AcceptPairRequest{RequesterID: "u1"})

	unsubscribe()
	unsubscribe()
	bus.Publish(events.SourceQueue, events.AcceptPairRequest{RequesterID: "u1"})

	if calls != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", calls)
	}
	if bus.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", bus.Subscribers())
	}
}

func TestBus_PanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	bus := newTestBus()

	delivered := false
	bus.Subscribe(func(events.Envelope) { panic("boom") })
	bus.Subscribe(func(events.Envelope) { delivered = true })

	bus.Publish(events.SourceQueue, events.RequestReceived{RequesterID: "u1"})

	if !delivered {
		t.Error("expected later subscriber to still receive the event")
	}
}

func TestBus_SubscriberMayPublish(t *testing.T) {
	bus := newTestBus()

	var commands int
	bus.Subscribe(func(env events.Envelope) {
		bus.Publish(events.SourceQueue, events.AcceptPairRequest{RequesterID: "u1"})
	}, events.KindRequestResolved)
	bus.Subscribe(func(events.Envelope) { commands++ }, events.KindAcceptPairRequest)

	bus.Publish(events.SourceQueue, events.RequestResolved{RequesterID: "u1", Accepted: true})

	if commands != 1 {
		t.Errorf("expected nested publish to be delivered once, got %d", commands)
	}
}

func TestRequestResolved_Outcome(t *testing.T) {
	if got := (events.RequestResolved{Accepted: true}).Outcome(); got != "accepted" {
		t.Errorf("expected accepted, got %s", got)
	}
	if got := (events.RequestResolved{}).Outcome(); got != "denied" {
		t.Errorf("expected denied, got %s", got)
	}
}
