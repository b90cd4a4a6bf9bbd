package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensegroups/internal/core"
)

// EventType names the mutation an ExpenseEvent reports.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted:
		return true
	}
	return false
}

// ExpenseEvent carries the full expense record as it was after the
// mutation, or just before it for deletions.
type ExpenseEvent struct {
	Type      EventType    `json:"type"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewExpenseEvent(t EventType, e core.Expense, at time.Time) ExpenseEvent {
	return ExpenseEvent{Type: t, Expense: e, Timestamp: at}
}

func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes an event and rejects unknown types or events
// without an expense id.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return ExpenseEvent{}, err
	}
	if !msg.Type.IsValid() {
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.Expense.ID == "" {
		return ExpenseEvent{}, fmt.Errorf("event without expense id")
	}
	return msg, nil
}
