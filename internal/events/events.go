package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingLocked    = "booking_locked"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventBookingCompleted = "booking_completed"
	EventWalletCredited   = "wallet_credited"
	EventWalletDebited    = "wallet_debited"
	EventGameCreated      = "game_created"
	EventGameCancelled    = "game_cancelled"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	UserID     int64     `json:"user_id"`
	CourtID    int64     `json:"court_id"`
	SlotStart  time.Time `json:"slot_start"`
	SlotEnd    time.Time `json:"slot_end"`
	Status     string    `json:"status"`
	Price      float64   `json:"price"`
	AmountPaid float64   `json:"amount_paid,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// WalletEventPayload describes a ledger movement.
type WalletEventPayload struct {
	UserID      int64   `json:"user_id"`
	Amount      float64 `json:"amount"`
	Balance     float64 `json:"balance"`
	Description string  `json:"description,omitempty"`
	ReferenceID string  `json:"reference_id,omitempty"`
}

// GameEventPayload describes a group game transition.
type GameEventPayload struct {
	GameID         int64  `json:"game_id"`
	CourtID        int64  `json:"court_id"`
	Status         string `json:"status"`
	CurrentPlayers int    `json:"current_players"`
	MinPlayers     int    `json:"min_players"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
