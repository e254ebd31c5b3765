package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType labels what happened to an expense.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent is the lightweight message published on expense changes.
// It carries only the ID; the worker fetches the current row from the
// database, so a stale message never exports stale data.
type ExpenseEvent struct {
	Event     EventType `json:"event"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event for the given expense, stamped now.
func NewExpenseEvent(event EventType, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Event:     event,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON parses an event from JSON bytes.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Event == "" || e.ID == 0 {
		return nil, fmt.Errorf("incomplete expense event: %s", data)
	}
	return &e, nil
}
