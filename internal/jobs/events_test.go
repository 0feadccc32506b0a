package jobs

import (
	"testing"

	"video-summary/internal/domain"
)

// TestPublishAssignsIncreasingSequence checks sequence numbering.
func TestPublishAssignsIncreasingSequence(t *testing.T) {
	bus := NewEventBus(10)

	first := bus.Publish(Event{Type: EventTypeStatus, Status: domain.RunStatusFetchingCaptions})
	second := bus.Publish(Event{Type: EventTypeProgress, SegmentCount: 1})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() || second.Timestamp.IsZero() {
		t.Fatal("expected timestamps to be assigned")
	}
}

// TestSinceReturnsOnlyNewerEvents checks incremental reads.
func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	bus := NewEventBus(10)

	bus.Publish(Event{Type: EventTypeStatus, Message: "one"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "two"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "three"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Message != "two" || events[1].Message != "three" {
		t.Fatalf("unexpected events: %+v", events)
	}

	if got := bus.Since(3); len(got) != 0 {
		t.Fatalf("Since(3) = %d events, want 0", len(got))
	}
}

// TestSinceOnEmptyBus checks the zero-event case.
func TestSinceOnEmptyBus(t *testing.T) {
	bus := NewEventBus(10)
	if got := bus.Since(0); got != nil {
		t.Fatalf("Since(0) = %v, want nil", got)
	}
}

// TestPublishTrimsToCapacity checks the bounded buffer.
func TestPublishTrimsToCapacity(t *testing.T) {
	bus := NewEventBus(3)

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeProgress, SegmentCount: i + 1})
	}

	events := bus.Since(0)
	if len(events) != 3 {
		t.Fatalf("retained = %d events, want 3", len(events))
	}
	if events[0].Seq != 3 || events[2].Seq != 5 {
		t.Fatalf("retained seqs = %d..%d, want 3..5", events[0].Seq, events[2].Seq)
	}
}
