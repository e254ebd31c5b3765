package amqp

import (
	"testing"
	"time"
)

func TestNewExpenseEvent(t *testing.T) {
	e := NewExpenseEvent(EventExpenseCreated, 42)

	if e.Event != EventExpenseCreated {
		t.Errorf("Event = %q, want %q", e.Event, EventExpenseCreated)
	}
	if e.ID != 42 {
		t.Errorf("ID = %d, want 42", e.ID)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(e.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestExpenseEventJSONRoundTrip(t *testing.T) {
	e := &ExpenseEvent{
		Event:     EventExpenseDeleted,
		ID:        7,
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := ExpenseEventFromJSON(data)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON() error = %v", err)
	}
	if got.Event != e.Event || got.ID != e.ID || !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("round trip = %+v, want %+v", got, e)
	}
}

func TestExpenseEventFromJSONRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"event": "expense.created", "id": "nope"}`},
		{"missing event", `{"id": 1}`},
		{"missing id", `{"event": "expense.created"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExpenseEventFromJSON([]byte(tt.data)); err == nil {
				t.Errorf("ExpenseEventFromJSON(%s) expected error", tt.data)
			}
		})
	}
}
