package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventEntryAdded  EventType = "entry_added"
	EventEntryEdited EventType = "entry_edited"
	EventDayClosed   EventType = "day_closed"
	EventReset       EventType = "reset"
)

// CounterEvent describes one counter mutation. Fields that do not apply to
// the event type are omitted from the JSON body.
type CounterEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	EntryID       string    `json:"entry_id,omitempty"`
	Count         int64     `json:"count,omitempty"`
	Delta         int64     `json:"delta,omitempty"`
	BusinessDate  string    `json:"business_date"`
	ClosedDate    string    `json:"closed_date,omitempty"`
	ClosedTotal   int64     `json:"closed_total,omitempty"`
	TotalCount    int64     `json:"total_count"`
	LifetimeTotal int64     `json:"lifetime_total"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewCounterEvent creates an event with a fresh id and the current time.
func NewCounterEvent(t EventType) *CounterEvent {
	return &CounterEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *CounterEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// CounterEventFromJSON decodes an event from JSON bytes
func CounterEventFromJSON(data []byte) (*CounterEvent, error) {
	var evt CounterEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
