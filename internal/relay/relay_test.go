package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"flipsol-keeper/internal/events"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestRelayPublishesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	r := newRelay(pub, "flipsol:events", 8)
	go r.Run(context.Background())

	r.OnEvent(events.Event{ID: "a", Type: events.TypeRoundStarted, RoundID: 1})
	r.OnEvent(events.Event{ID: "b", Type: events.TypeRoundSettled, RoundID: 1})
	r.Close()

	if len(pub.payloads) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.payloads))
	}
	var first events.Event
	if err := json.Unmarshal(pub.payloads[0], &first); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if first.Type != events.TypeRoundStarted || pub.channels[1] != "flipsol:events" {
		t.Fatalf("first = %+v, channel = %s", first, pub.channels[1])
	}

	// After Close events are ignored.
	r.OnEvent(events.Event{ID: "c", Type: events.TypeRoundStatus})
	r.Close()
}

func TestRelayDropsWhenFull(t *testing.T) {
	r := newRelay(&fakePublisher{}, "c", 1)
	before := metricDropped.Value()
	r.OnEvent(events.Event{ID: "a"})
	r.OnEvent(events.Event{ID: "b"})
	if got := metricDropped.Value() - before; got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	go r.Run(context.Background())
	r.Close()
}

func TestRelaySurvivesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	r := newRelay(pub, "c", 4)
	before := metricPublishErrors.Value()
	go r.Run(context.Background())
	r.OnEvent(events.Event{ID: "a"})
	r.OnEvent(events.Event{ID: "b"})
	r.Close()
	if got := metricPublishErrors.Value() - before; got != 2 {
		t.Fatalf("publish errors = %d, want 2", got)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	r := newRelay(&fakePublisher{}, "c", 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
	select {
	case <-r.done:
	default:
		t.Fatal("Run should close done on return")
	}
}
