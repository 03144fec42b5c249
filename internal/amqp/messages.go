package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published on the expense events exchange.
const (
	KindPaymentRecorded = "payment.recorded"
	KindExpenseSettled  = "expense.settled"
)

// ExpenseEvent is the message published after a payment commits.
// It carries enough to archive a settlement without a ledger lookup:
// a settled unique expense is already gone by the time the worker
// consumes the event.
type ExpenseEvent struct {
	Kind        string    `json:"kind"`
	ExpenseID   string    `json:"expense_id"`
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title"`
	AmountCents int64     `json:"amount_cents"`
	ExpenseType string    `json:"expense_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewPaymentRecordedEvent builds the event for one member's payment.
func NewPaymentRecordedEvent(expenseID, householdID, userID, title string, amountCents int64, expenseType string) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:        KindPaymentRecorded,
		ExpenseID:   expenseID,
		HouseholdID: householdID,
		UserID:      userID,
		Title:       title,
		AmountCents: amountCents,
		ExpenseType: expenseType,
		Timestamp:   time.Now(),
	}
}

// NewExpenseSettledEvent builds the event for a fully collected expense.
// AmountCents carries the expense total here.
func NewExpenseSettledEvent(expenseID, householdID, title string, totalCents int64, expenseType string) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:        KindExpenseSettled,
		ExpenseID:   expenseID,
		HouseholdID: householdID,
		Title:       title,
		AmountCents: totalCents,
		ExpenseType: expenseType,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON creates an event from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
