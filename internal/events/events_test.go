package events

import (
	"encoding/json"
	"testing"
)

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingConfirmed, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := BookingEventPayload{
		BookingID: 42,
		UserID:    7,
		CourtID:   3,
		Status:    "confirmed",
		Price:     120,
	}
	if err := bus.PublishJSON(EventBookingConfirmed, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventBookingConfirmed {
		t.Errorf("expected type %s, got %s", EventBookingConfirmed, received.Type)
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.BookingID != 42 || decoded.Price != 120 {
		t.Errorf("payload round-trip mismatch: %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventWalletCredited, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventWalletCredited, func(_ *Event) error { count2++; return nil })
	bus.Subscribe(EventWalletDebited, func(_ *Event) error { t.Error("wrong type delivered"); return nil })

	bus.Publish(&Event{Type: EventWalletCredited})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Must not panic.
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventGameCancelled, GameEventPayload{GameID: 1}); err != nil {
		t.Errorf("nil bus PublishJSON failed: %v", err)
	}
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventGameCreated, GameEventPayload{GameID: 9, CurrentPlayers: 1})
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}

	if event.Type != EventGameCreated {
		t.Errorf("expected %s, got %s", EventGameCreated, event.Type)
	}
	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded GameEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.GameID != 9 {
		t.Errorf("expected GameID 9, got %d", decoded.GameID)
	}
}
